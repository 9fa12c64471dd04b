package outcry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

func isDelegated(err error) bool { return errors.Is(err, core.ErrAuctionDelegated) }

// CheckDelegate verifies that seller may hand an auction to the fast tier.
func (p *Program) CheckDelegate(tx *ledger.Txn, auction, seller ledger.Address) (*outcryapi.AuctionState, error) {
	st, err := p.sellerAuction(tx, auction, seller)
	if err != nil {
		return nil, err
	}
	if st.Status != outcryapi.StatusActive {
		return nil, fmt.Errorf("delegate while %s: %w", st.Status, core.ErrInvalidAuctionStatus)
	}
	return st, nil
}

// DelegateAuction runs on the durable tier. It writes the delegation record
// and hands the auction account to the delegation program, after which the
// durable copy can no longer be written by this program.
func (p *Program) DelegateAuction(tx *ledger.Txn, auction, seller ledger.Address) (*ledger.Account, error) {
	if _, err := p.CheckDelegate(tx, auction, seller); err != nil {
		return nil, err
	}
	rec := outcryapi.DelegationRecord{Auction: auction, Seller: seller, DelegatedAt: tx.Now()}
	if err := createRecord(tx, seller, DelegationAddress(auction), rec, outcryapi.DelegationRecordSpace); err != nil {
		return nil, fmt.Errorf("write delegation record: %w", err)
	}

	acct, _ := tx.Account(auction)
	snapshot := acct.Clone()
	acct.Owner = ledger.DelegationProgram
	if err := tx.SetAccount(auction, acct); err != nil {
		return nil, err
	}

	tx.Emit(outcryapi.EventAuctionDelegated, outcryapi.AuctionDelegated{Auction: auction, Tier: tx.Tier()})
	log.Info().Str("auction", auction.String()).Msg("auction delegated")
	return snapshot, nil
}

// ResumeDelegation runs on the durable tier for an auction whose account is
// already owned by the delegation program. It returns the record as it stood
// when delegated, so an interrupted hand-off can clone it again. It fails
// with core.ErrAuctionNotDelegated if the auction was never delegated.
func (p *Program) ResumeDelegation(tx *ledger.Txn, auction, seller ledger.Address) (*ledger.Account, error) {
	acct, ok := tx.Account(auction)
	if !ok {
		return nil, fmt.Errorf("%s: %w", auction, core.ErrAuctionNotFound)
	}
	if acct.Owner != ledger.DelegationProgram {
		return nil, fmt.Errorf("%s: %w", auction, core.ErrAuctionNotDelegated)
	}
	if err := requireSigner(tx, seller); err != nil {
		return nil, err
	}
	recAcct, ok := tx.Account(DelegationAddress(auction))
	if !ok {
		return nil, fmt.Errorf("%s delegated without record: %w", auction, core.ErrAuctionNotDelegated)
	}
	var rec outcryapi.DelegationRecord
	if err := outcryapi.Decode(recAcct.Data, &rec); err != nil {
		return nil, fmt.Errorf("delegation record: %w", err)
	}
	if rec.Seller != seller {
		return nil, core.ErrUnauthorizedSeller
	}

	snapshot := acct.Clone()
	snapshot.Owner = ProgramID
	if _, err := DecodeAuction(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// CheckUndelegate verifies that seller may commit an auction back from the
// fast tier.
func (p *Program) CheckUndelegate(tx *ledger.Txn, auction, seller ledger.Address) (*outcryapi.AuctionState, error) {
	st, err := p.sellerAuction(tx, auction, seller)
	if err != nil {
		return nil, err
	}
	if st.Status != outcryapi.StatusEnded {
		return nil, fmt.Errorf("undelegate while %s: %w", st.Status, core.ErrInvalidAuctionStatus)
	}
	return st, nil
}

// ReleaseAuction runs on the fast tier. It checks the undelegate guard and
// removes the fast-tier copies of the auction record and of the given
// session tokens, returning the final record.
func (p *Program) ReleaseAuction(tx *ledger.Txn, auction, seller ledger.Address, sessions []ledger.Address) (*ledger.Account, error) {
	if _, err := p.CheckUndelegate(tx, auction, seller); err != nil {
		return nil, err
	}
	final, _ := tx.Account(auction)
	for _, addr := range append([]ledger.Address{auction}, sessions...) {
		if !tx.Exists(addr) {
			continue
		}
		if _, err := tx.CloseAccount(addr, seller); err != nil {
			return nil, err
		}
	}
	return final, nil
}

// CommitAuction runs on the durable tier. It installs the fast tier's final
// record, returns the account to this program and removes the delegation
// record.
func (p *Program) CommitAuction(tx *ledger.Txn, auction ledger.Address, final *ledger.Account) error {
	acct, ok := tx.Account(auction)
	if !ok {
		return fmt.Errorf("%s: %w", auction, core.ErrAuctionNotFound)
	}
	if acct.Owner != ledger.DelegationProgram {
		return fmt.Errorf("%s: %w", auction, core.ErrAuctionNotDelegated)
	}
	committed := &ledger.Account{Lamports: acct.Lamports, Owner: ProgramID, Data: final.Data, Space: acct.Space}
	st, err := DecodeAuction(committed)
	if err != nil {
		return err
	}
	if err := tx.SetAccount(auction, committed); err != nil {
		return err
	}
	if _, err := tx.CloseAccount(DelegationAddress(auction), st.Seller); err != nil {
		return fmt.Errorf("remove delegation record: %w", err)
	}

	tx.Emit(outcryapi.EventAuctionUndelegated, outcryapi.AuctionUndelegated{Auction: auction})
	log.Info().
		Str("auction", auction.String()).
		Str("status", st.Status.String()).
		Uint64("final_bid", st.CurrentBid).
		Msg("auction undelegated")
	return nil
}
