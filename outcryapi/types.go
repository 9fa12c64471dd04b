package outcryapi

import (
	"fmt"

	"github.com/cloudx-io/outcry/ledger"
)

// AuctionStatus is the lifecycle state of an auction record.
type AuctionStatus uint8

const (
	// StatusCreated: asset escrowed, accepting deposits
	StatusCreated AuctionStatus = iota
	// StatusActive: timer running, accepting bids
	StatusActive
	// StatusEnded: timer expired, awaiting settlement or forfeiture
	StatusEnded
	// StatusSettled: asset and proceeds distributed (or forfeited)
	StatusSettled
	// StatusCancelled: seller withdrew the asset before any bid
	StatusCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	case StatusSettled:
		return "settled"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// AuctionState is the durable state machine instance for one auction.
// Invariant: CurrentBid == 0 <=> HighestBidder is zero <=> BidCount == 0.
type AuctionState struct {
	// Seller created the auction and receives proceeds
	Seller ledger.Address `cbor:"1,keyasint"`
	// AssetMint identifies the unique asset being auctioned
	AssetMint ledger.Address `cbor:"2,keyasint"`
	// ReservePrice is the minimum acceptable first bid (lamports)
	ReservePrice uint64 `cbor:"3,keyasint"`
	// DurationSeconds is applied by start to compute the end time
	DurationSeconds uint64 `cbor:"4,keyasint"`
	// CurrentBid is the highest bid so far, 0 if no bids
	CurrentBid uint64 `cbor:"5,keyasint"`
	// HighestBidder is the current winner, zero if no bids
	HighestBidder ledger.Address `cbor:"6,keyasint"`
	// StartTime is the unix time the auction went Active (0 until then)
	StartTime int64 `cbor:"7,keyasint"`
	// EndTime is when bidding stops; only ever extended
	EndTime int64 `cbor:"8,keyasint"`
	// ExtensionSeconds is added to EndTime when anti-snipe triggers
	ExtensionSeconds uint32 `cbor:"9,keyasint"`
	// ExtensionWindow is the trailing window before EndTime that triggers anti-snipe
	ExtensionWindow uint32 `cbor:"10,keyasint"`
	// MinBidIncrement is the minimum raise over CurrentBid
	MinBidIncrement uint64        `cbor:"11,keyasint"`
	Status          AuctionStatus `cbor:"12,keyasint"`
	BidCount        uint32        `cbor:"13,keyasint"`
	// Bump is the derivation tag of the record's address
	Bump uint8 `cbor:"14,keyasint"`
}

// HasBids reports whether at least one bid was accepted.
func (a *AuctionState) HasBids() bool { return a.BidCount > 0 }

// AuctionVault holds bidder collateral for one auction. The custodial balance
// is the vault account's lamports above its storage deposit.
type AuctionVault struct {
	Auction ledger.Address `cbor:"1,keyasint"`
	Bump    uint8          `cbor:"2,keyasint"`
}

// BidderDeposit records the cumulative collateral one bidder placed for one auction.
type BidderDeposit struct {
	Auction ledger.Address `cbor:"1,keyasint"`
	Bidder  ledger.Address `cbor:"2,keyasint"`
	Amount  uint64         `cbor:"3,keyasint"`
	Bump    uint8          `cbor:"4,keyasint"`
}

// SessionToken binds an ephemeral signing key to a real bidder for fast-tier
// bidding. It attests identity only and never grants custody.
type SessionToken struct {
	Auction       ledger.Address `cbor:"1,keyasint"`
	Bidder        ledger.Address `cbor:"2,keyasint"`
	SessionSigner ledger.Address `cbor:"3,keyasint"`
	CreatedAt     int64          `cbor:"4,keyasint"`
	Bump          uint8          `cbor:"5,keyasint"`
}

// DelegationRecord is written on the durable tier while an auction record is
// resident on the fast tier.
type DelegationRecord struct {
	Auction     ledger.Address `cbor:"1,keyasint"`
	Seller      ledger.Address `cbor:"2,keyasint"`
	DelegatedAt int64          `cbor:"3,keyasint"`
}

// Mint describes an asset class. A unique asset has Decimals == 0 and Supply == 1.
type Mint struct {
	Decimals  uint8          `cbor:"1,keyasint"`
	Supply    uint64         `cbor:"2,keyasint"`
	Authority ledger.Address `cbor:"3,keyasint"`
}

// TokenAccount holds units of one mint on behalf of Owner.
type TokenAccount struct {
	Mint   ledger.Address `cbor:"1,keyasint"`
	Owner  ledger.Address `cbor:"2,keyasint"`
	Amount uint64         `cbor:"3,keyasint"`
}
