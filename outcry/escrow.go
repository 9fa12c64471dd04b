package outcry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

// Deposit adds amount of bidder's lamports to the auction vault and to the
// bidder's deposit entry, creating the entry on first use.
//
// The auction must be Created or Active. While the record is delegated to the
// fast tier it cannot be read here; the deposit is then accepted only if the
// auction's delegation record exists.
func (p *Program) Deposit(tx *ledger.Txn, auction, bidder ledger.Address, amount uint64) error {
	if err := requireSigner(tx, bidder); err != nil {
		return err
	}
	if amount == 0 {
		return core.ErrInvalidDepositAmount
	}

	st, err := loadAuction(tx, auction)
	switch {
	case errors.Is(err, core.ErrAuctionDelegated):
		if !tx.Exists(DelegationAddress(auction)) {
			return fmt.Errorf("auction %s delegated without record: %w", auction, core.ErrAuctionNotDelegated)
		}
	case err != nil:
		return err
	case !core.DepositOpen(st.Status):
		return fmt.Errorf("deposit while %s: %w", st.Status, core.ErrInvalidAuctionStatus)
	}

	vault, _ := VaultAddress(auction)
	addr, bump := DepositAddress(auction, bidder)
	dep, exists, err := loadDeposit(tx, addr)
	if err != nil {
		return err
	}
	if !exists {
		dep = &outcryapi.BidderDeposit{Auction: auction, Bidder: bidder, Bump: bump}
		if err := createRecord(tx, bidder, addr, dep, outcryapi.BidderDepositSpace); err != nil {
			return fmt.Errorf("open deposit entry: %w", err)
		}
	}
	if dep.Amount, err = core.CheckedAdd(dep.Amount, amount); err != nil {
		return err
	}
	if err := storeRecord(tx, addr, dep); err != nil {
		return err
	}
	if err := tx.Transfer(bidder, vault, amount); err != nil {
		return fmt.Errorf("fund vault: %w", err)
	}

	tx.Emit(outcryapi.EventDepositMade, outcryapi.DepositMade{
		Auction:      auction,
		Bidder:       bidder,
		Amount:       amount,
		TotalDeposit: dep.Amount,
	})
	log.Info().
		Str("auction", auction.String()).
		Str("bidder", bidder.String()).
		Uint64("amount", amount).
		Uint64("total", dep.Amount).
		Msg("deposit made")
	return nil
}

// ClaimRefund returns bidder's outstanding deposit.
func (p *Program) ClaimRefund(tx *ledger.Txn, auction, bidder ledger.Address) error {
	return p.ClaimRefundFor(tx, auction, bidder, bidder)
}

// ClaimRefundFor refunds bidder's deposit on the bidder's behalf. Anyone may
// pay for it; the funds and the entry's storage deposit always go to bidder.
func (p *Program) ClaimRefundFor(tx *ledger.Txn, auction, payer, bidder ledger.Address) error {
	if err := requireSigner(tx, payer); err != nil {
		return err
	}
	st, err := loadAuction(tx, auction)
	if err != nil {
		return err
	}
	if !core.RefundOpen(st.Status) {
		return fmt.Errorf("refund while %s: %w", st.Status, core.ErrRefundNotAvailable)
	}

	addr, _ := DepositAddress(auction, bidder)
	dep, exists, err := loadDeposit(tx, addr)
	if err != nil {
		return err
	}
	if !exists || dep.Amount == 0 {
		return core.ErrNothingToRefund
	}

	amount := dep.Amount
	if _, err := tx.CloseAccount(addr, bidder); err != nil {
		return fmt.Errorf("reclaim deposit entry: %w", err)
	}
	vault, _ := VaultAddress(auction)
	if err := payFromVault(tx, vault, bidder, amount); err != nil {
		return err
	}

	tx.Emit(outcryapi.EventRefundClaimed, outcryapi.RefundClaimed{
		Auction: auction,
		Bidder:  bidder,
		Amount:  amount,
		Payer:   payer,
	})
	log.Info().
		Str("auction", auction.String()).
		Str("bidder", bidder.String()).
		Str("payer", payer.String()).
		Uint64("amount", amount).
		Msg("refund claimed")
	return nil
}
