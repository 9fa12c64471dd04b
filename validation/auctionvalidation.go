package validation

import (
	"errors"
	"fmt"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcry"
	"github.com/cloudx-io/outcry/outcryapi"
)

// AuctionValidationInput contains all inputs needed for auction validation
type AuctionValidationInput struct {
	Durable *ledger.Snapshot
	Fast    *ledger.Snapshot // nil = single-tier deployment
	Auction ledger.Address
	// MaxExtension bounds total anti-snipe extension (0 = core.DefaultMaxExtension)
	MaxExtension int64
}

// ValidateAuction checks one auction's committed state:
// - Record decodes on the tier that owns it
// - Bid state is consistent (count, amount, bidder agree; end time within bounds)
// - Vault covers every recorded deposit
// - Custody holds the asset exactly while the auction is unresolved
//
// Returns:
//   - AuctionValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (missing snapshot or auction)
func ValidateAuction(input *AuctionValidationInput) (*AuctionValidationResult, error) {
	if input.Durable == nil {
		return nil, errors.New("durable snapshot is required")
	}
	acct, ok := input.Durable.Account(input.Auction)
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", input.Auction, core.ErrAuctionNotFound)
	}

	result := &AuctionValidationResult{Auction: input.Auction.String()}

	st, err := outcry.DecodeAuction(acct)
	if errors.Is(err, core.ErrAuctionDelegated) {
		result.Delegated = true
		st, err = readDelegated(input, result)
	}
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction record unreadable: %v", err))
		return result, nil
	}
	result.RecordValid = true
	result.Status = st.Status

	result.BidStateValid = validateBidState(input, st, result)
	result.EscrowValid = validateEscrow(input, result)
	result.CustodyValid = validateCustody(input, st, result)
	return result, nil
}

// ValidateLedger validates every auction recorded in the durable snapshot.
func ValidateLedger(durable, fast *ledger.Snapshot, maxExtension int64) (*LedgerValidationResult, error) {
	if durable == nil {
		return nil, errors.New("durable snapshot is required")
	}
	var auctions []ledger.Address
	var deposits []outcryapi.BidderDeposit
	durable.Each(func(addr ledger.Address, acct *ledger.Account) bool {
		if acct.Owner == ledger.DelegationProgram || outcryapi.IsRecord(acct.Data, outcryapi.AuctionState{}) {
			auctions = append(auctions, addr)
		} else if acct.Owner == outcry.ProgramID && outcryapi.IsRecord(acct.Data, outcryapi.BidderDeposit{}) {
			var dep outcryapi.BidderDeposit
			if err := outcryapi.Decode(acct.Data, &dep); err == nil {
				deposits = append(deposits, dep)
			}
		}
		return true
	})

	result := &LedgerValidationResult{}
	known := make(map[ledger.Address]bool, len(auctions))
	for _, addr := range auctions {
		known[addr] = true
		r, err := ValidateAuction(&AuctionValidationInput{
			Durable:      durable,
			Fast:         fast,
			Auction:      addr,
			MaxExtension: maxExtension,
		})
		if err != nil {
			return nil, err
		}
		result.Auctions = append(result.Auctions, r)
	}
	for _, dep := range deposits {
		if !known[dep.Auction] {
			result.OrphanDeposits = append(result.OrphanDeposits, fmt.Sprintf("%s/%s", dep.Auction, dep.Bidder))
		}
	}
	return result, nil
}

func readDelegated(input *AuctionValidationInput, result *AuctionValidationResult) (*outcryapi.AuctionState, error) {
	if _, ok := input.Durable.Account(outcry.DelegationAddress(input.Auction)); !ok {
		return nil, fmt.Errorf("delegated without record: %w", core.ErrAuctionNotDelegated)
	}
	if input.Fast == nil {
		return nil, errors.New("auction is delegated but no fast-tier snapshot was given")
	}
	acct, ok := input.Fast.Account(input.Auction)
	if !ok {
		return nil, fmt.Errorf("fast tier: %w", core.ErrAuctionNotFound)
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid state read from %s tier", input.Fast.Tier()))
	return outcry.DecodeAuction(acct)
}

func validateBidState(input *AuctionValidationInput, st *outcryapi.AuctionState, result *AuctionValidationResult) bool {
	valid := true
	noBids := st.BidCount == 0
	if noBids != (st.CurrentBid == 0) || noBids != st.HighestBidder.IsZero() {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"Bid state inconsistent: count=%d current=%d bidder=%s", st.BidCount, st.CurrentBid, st.HighestBidder))
		valid = false
	}
	if !noBids && st.CurrentBid < st.ReservePrice {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"Current bid %d below reserve %d", st.CurrentBid, st.ReservePrice))
		valid = false
	}
	if st.Seller == st.HighestBidder {
		result.ValidationDetails = append(result.ValidationDetails, "Seller is the highest bidder")
		valid = false
	}

	if st.StartTime == 0 {
		if st.Status != outcryapi.StatusCreated && st.Status != outcryapi.StatusCancelled {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Status %s without a start time", st.Status))
			valid = false
		}
		return valid
	}

	maxExt := input.MaxExtension
	if maxExt == 0 {
		maxExt = core.DefaultMaxExtension
	}
	dur := int64(st.DurationSeconds)
	scheduled := st.StartTime + dur
	limit := scheduled + min(dur, maxExt)
	if st.EndTime < scheduled || st.EndTime > limit {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"End time %d outside [%d, %d]", st.EndTime, scheduled, limit))
		valid = false
	}
	return valid
}

func validateEscrow(input *AuctionValidationInput, result *AuctionValidationResult) bool {
	vault, _ := outcry.VaultAddress(input.Auction)
	acct, ok := input.Durable.Account(vault)
	if !ok {
		result.ValidationDetails = append(result.ValidationDetails, "Vault account missing")
		return false
	}
	if rent := input.Durable.Options().MinimumBalance(acct.Space); acct.Lamports > rent {
		result.VaultBalance = acct.Lamports - rent
	}

	var overflow bool
	input.Durable.Each(func(_ ledger.Address, a *ledger.Account) bool {
		if a.Owner != outcry.ProgramID || !outcryapi.IsRecord(a.Data, outcryapi.BidderDeposit{}) {
			return true
		}
		var dep outcryapi.BidderDeposit
		if err := outcryapi.Decode(a.Data, &dep); err != nil || dep.Auction != input.Auction {
			return true
		}
		sum, err := core.CheckedAdd(result.TotalDeposits, dep.Amount)
		if err != nil {
			overflow = true
			return false
		}
		result.TotalDeposits = sum
		result.Deposits++
		return true
	})
	if overflow {
		result.ValidationDetails = append(result.ValidationDetails, "Recorded deposits overflow")
		return false
	}
	if result.VaultBalance < result.TotalDeposits {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"Vault holds %d but %d entries record %d", result.VaultBalance, result.Deposits, result.TotalDeposits))
		return false
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
		"Vault holds %d covering %d entries totalling %d", result.VaultBalance, result.Deposits, result.TotalDeposits))
	return true
}

func validateCustody(input *AuctionValidationInput, st *outcryapi.AuctionState, result *AuctionValidationResult) bool {
	var held uint64
	if acct, ok := input.Durable.Account(outcry.CustodyAddress(input.Auction, st.AssetMint)); ok {
		var ta outcryapi.TokenAccount
		if acct.Owner != outcry.TokenProgram || outcryapi.Decode(acct.Data, &ta) != nil {
			result.ValidationDetails = append(result.ValidationDetails, "Custody account malformed")
			return false
		}
		held = ta.Amount
	}

	want := uint64(0)
	switch st.Status {
	case outcryapi.StatusCreated, outcryapi.StatusActive, outcryapi.StatusEnded:
		want = 1
	}
	if held != want {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"Custody holds %d while %s, expected %d", held, st.Status, want))
		return false
	}
	return true
}
