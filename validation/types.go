package validation

import "github.com/cloudx-io/outcry/outcryapi"

// BaseValidationResult contains the checks run for every auction record
type BaseValidationResult struct {
	RecordValid       bool
	BidStateValid     bool
	ValidationDetails []string
}

// AuctionValidationResult contains validation results for one auction
// across both tiers
type AuctionValidationResult struct {
	BaseValidationResult
	EscrowValid  bool
	CustodyValid bool

	Auction   string                  `json:"auction"`
	Status    outcryapi.AuctionStatus `json:"status"`
	Delegated bool                    `json:"delegated"`
	// Custodial lamports in the vault and the sum of recorded deposits
	VaultBalance  uint64 `json:"vault_balance"`
	TotalDeposits uint64 `json:"total_deposits"`
	Deposits      int    `json:"deposits"`
}

// IsValid returns true if all auction validation checks passed
func (r *AuctionValidationResult) IsValid() bool {
	return r.RecordValid && r.BidStateValid && r.EscrowValid && r.CustodyValid
}

// LedgerValidationResult aggregates the per-auction results of a snapshot
type LedgerValidationResult struct {
	Auctions []*AuctionValidationResult `json:"auctions"`
	// Deposit entries left behind by a force close; reported, not invalid
	OrphanDeposits []string `json:"orphan_deposits,omitempty"`
}

// IsValid returns true if every auction passed
func (r *LedgerValidationResult) IsValid() bool {
	for _, a := range r.Auctions {
		if !a.IsValid() {
			return false
		}
	}
	return true
}
