package outcryapi

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/outcry/ledger"
)

func fullAuction() AuctionState {
	return AuctionState{
		Seller:           ledger.ProgramAddress("seller"),
		AssetMint:        ledger.ProgramAddress("mint"),
		ReservePrice:     ^uint64(0),
		DurationSeconds:  ^uint64(0),
		CurrentBid:       ^uint64(0),
		HighestBidder:    ledger.ProgramAddress("bidder"),
		StartTime:        -1 << 63,
		EndTime:          1<<63 - 1,
		ExtensionSeconds: ^uint32(0),
		ExtensionWindow:  ^uint32(0),
		MinBidIncrement:  ^uint64(0),
		Status:           StatusCancelled,
		BidCount:         ^uint32(0),
		Bump:             255,
	}
}

func TestEncodeDecode_AuctionState(t *testing.T) {
	in := fullAuction()
	data, err := Encode(in)
	assert.NoError(t, err)

	var out AuctionState
	assert.NoError(t, Decode(data, &out))
	check.Equal(t, in, out)
	check.True(t, IsRecord(data, AuctionState{}))
	check.False(t, IsRecord(data, BidderDeposit{}))
}

func TestEncode_FitsAllocatedSpace(t *testing.T) {
	a, b := ledger.ProgramAddress("a"), ledger.ProgramAddress("b")
	tests := []struct {
		record Record
		space  int
	}{
		{fullAuction(), AuctionStateSpace},
		{AuctionVault{Auction: a, Bump: 255}, AuctionVaultSpace},
		{BidderDeposit{Auction: a, Bidder: b, Amount: ^uint64(0), Bump: 255}, BidderDepositSpace},
		{SessionToken{Auction: a, Bidder: b, SessionSigner: a, CreatedAt: 1<<63 - 1, Bump: 255}, SessionTokenSpace},
		{DelegationRecord{Auction: a, Seller: b, DelegatedAt: 1<<63 - 1}, DelegationRecordSpace},
		{Mint{Decimals: 255, Supply: ^uint64(0), Authority: a}, MintSpace},
		{TokenAccount{Mint: a, Owner: b, Amount: ^uint64(0)}, TokenAccountSpace},
	}
	for _, tt := range tests {
		t.Run(tt.record.RecordName(), func(t *testing.T) {
			data, err := Encode(tt.record)
			assert.NoError(t, err)
			check.True(t, len(data) <= tt.space)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	data, err := Encode(BidderDeposit{Amount: 5})
	assert.NoError(t, err)

	var auction AuctionState
	check.True(t, errors.Is(Decode(data, &auction), ErrInvalidAccountData))

	var dep BidderDeposit
	check.True(t, errors.Is(Decode(data[:4], &dep), ErrInvalidAccountData))

	bumped := append([]byte(nil), data...)
	bumped[8] = RecordVersion + 1
	check.True(t, errors.Is(Decode(bumped, &dep), ErrInvalidAccountData))

	garbage := append(append([]byte(nil), data[:9]...), 0xff, 0xff)
	check.True(t, errors.Is(Decode(garbage, &dep), ErrInvalidAccountData))
}

func TestAuctionStatus_String(t *testing.T) {
	check.Equal(t, "active", StatusActive.String())
	check.Equal(t, "status(9)", AuctionStatus(9).String())
}
