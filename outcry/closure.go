package outcry

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

// CloseAuction deletes a finished auction's custody account, record and
// vault, returning their storage deposits to the seller. Every bidder must
// have been refunded first.
func (p *Program) CloseAuction(tx *ledger.Txn, auction, seller ledger.Address) (uint64, error) {
	st, err := p.sellerAuction(tx, auction, seller)
	if err != nil {
		return 0, err
	}
	if _, err := core.Transition(st.Status, core.TriggerClose); err != nil {
		return 0, err
	}
	if err := requireEmptyCustody(tx, auction, st.AssetMint); err != nil {
		return 0, err
	}
	vault, _ := VaultAddress(auction)
	outstanding, err := vaultBalance(tx, vault)
	if err != nil {
		return 0, err
	}
	if outstanding > 0 {
		return 0, fmt.Errorf("vault holds %d: %w", outstanding, core.ErrOutstandingDeposits)
	}

	reclaimed, err := closeAuctionAccounts(tx, auction, st)
	if err != nil {
		return 0, err
	}

	tx.Emit(outcryapi.EventAuctionClosed, outcryapi.AuctionClosed{Auction: auction, Seller: seller, Reclaimed: reclaimed})
	log.Info().Str("auction", auction.String()).Uint64("reclaimed", reclaimed).Msg("auction closed")
	return reclaimed, nil
}

// ForceCloseAuction closes a finished auction once its grace period has
// elapsed, sweeping unclaimed deposits to the seller. Anyone may call it.
func (p *Program) ForceCloseAuction(tx *ledger.Txn, auction, payer ledger.Address) (uint64, error) {
	if err := requireSigner(tx, payer); err != nil {
		return 0, err
	}
	st, err := loadAuction(tx, auction)
	if err != nil {
		return 0, err
	}
	if _, err := core.Transition(st.Status, core.TriggerForceClose); err != nil {
		return 0, err
	}
	deadline, err := core.GraceDeadline(*st, p.cfg.GracePeriod)
	if err != nil {
		return 0, err
	}
	if now := tx.Now(); now < deadline {
		return 0, fmt.Errorf("%ds until %d: %w", deadline-now, deadline, core.ErrGracePeriodActive)
	}
	if err := requireEmptyCustody(tx, auction, st.AssetMint); err != nil {
		return 0, err
	}

	vault, _ := VaultAddress(auction)
	drained, err := vaultBalance(tx, vault)
	if err != nil {
		return 0, err
	}
	if err := payFromVault(tx, vault, st.Seller, drained); err != nil {
		return 0, fmt.Errorf("sweep vault: %w", err)
	}
	if _, err := closeAuctionAccounts(tx, auction, st); err != nil {
		return 0, err
	}

	tx.Emit(outcryapi.EventAuctionForceClosed, outcryapi.AuctionForceClosed{
		Auction:         auction,
		Seller:          st.Seller,
		DrainedLamports: drained,
	})
	log.Warn().
		Str("auction", auction.String()).
		Str("payer", payer.String()).
		Uint64("drained", drained).
		Msg("auction force closed")
	return drained, nil
}

func requireEmptyCustody(tx *ledger.Txn, auction, mint ledger.Address) error {
	held, _, err := custodyAmount(tx, auction, mint)
	if err != nil {
		return err
	}
	if held != 0 {
		return core.ErrEscrowNotEmpty
	}
	return nil
}

// closeAuctionAccounts deletes custody, record and vault, crediting the seller.
func closeAuctionAccounts(tx *ledger.Txn, auction ledger.Address, st *outcryapi.AuctionState) (uint64, error) {
	vault, _ := VaultAddress(auction)
	targets := []ledger.Address{CustodyAddress(auction, st.AssetMint), auction, vault}

	var reclaimed uint64
	for _, addr := range targets {
		if !tx.Exists(addr) {
			continue
		}
		n, err := tx.CloseAccount(addr, st.Seller)
		if err != nil {
			return 0, fmt.Errorf("close %s: %w", addr, err)
		}
		if reclaimed, err = core.CheckedAdd(reclaimed, n); err != nil {
			return 0, err
		}
	}
	return reclaimed, nil
}
