package outcry

import (
	"errors"
	"fmt"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

// Program implements every auction instruction. Each method runs inside a
// single ledger transaction and either fully applies or returns an error.
type Program struct {
	cfg Config
}

// New returns a program with the given configuration.
func New(cfg Config) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Program{cfg: cfg}, nil
}

// Config returns the program's parameters.
func (p *Program) Config() Config { return p.cfg }

func requireSigner(tx *ledger.Txn, addr ledger.Address) error {
	if !tx.IsSigner(addr) {
		return fmt.Errorf("%s: %w", addr, core.ErrMissingSigner)
	}
	return nil
}

// DecodeAuction decodes an auction account. It fails with
// core.ErrAuctionDelegated while the account is owned by the delegation
// program.
func DecodeAuction(acct *ledger.Account) (*outcryapi.AuctionState, error) {
	switch acct.Owner {
	case ProgramID:
	case ledger.DelegationProgram:
		return nil, core.ErrAuctionDelegated
	default:
		return nil, fmt.Errorf("auction owned by %s: %w", acct.Owner, core.ErrInvalidAuctionAccount)
	}
	var st outcryapi.AuctionState
	if err := outcryapi.Decode(acct.Data, &st); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidAuctionAccount, err)
	}
	return &st, nil
}

func loadAuction(tx *ledger.Txn, addr ledger.Address) (*outcryapi.AuctionState, error) {
	acct, ok := tx.Account(addr)
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, core.ErrAuctionNotFound)
	}
	return DecodeAuction(acct)
}

func storeAuction(tx *ledger.Txn, addr ledger.Address, st *outcryapi.AuctionState) error {
	return storeRecord(tx, addr, st)
}

func storeRecord(tx *ledger.Txn, addr ledger.Address, r outcryapi.Record) error {
	data, err := outcryapi.Encode(r)
	if err != nil {
		return err
	}
	return tx.WriteData(addr, ProgramID, data)
}

func createRecord(tx *ledger.Txn, payer, addr ledger.Address, r outcryapi.Record, space int) error {
	data, err := outcryapi.Encode(r)
	if err != nil {
		return err
	}
	return tx.CreateAccount(payer, addr, ProgramID, data, space)
}

// loadDeposit reads a bidder's deposit entry. A missing entry reads as zero;
// data that does not decode fails with core.ErrInvalidDepositAccount.
func loadDeposit(tx *ledger.Txn, addr ledger.Address) (*outcryapi.BidderDeposit, bool, error) {
	acct, ok := tx.Account(addr)
	if !ok {
		return &outcryapi.BidderDeposit{}, false, nil
	}
	if acct.Owner != ProgramID {
		return nil, false, fmt.Errorf("deposit owned by %s: %w", acct.Owner, core.ErrInvalidDepositAccount)
	}
	var d outcryapi.BidderDeposit
	if err := outcryapi.Decode(acct.Data, &d); err != nil {
		return nil, false, fmt.Errorf("%w: %w", core.ErrInvalidDepositAccount, err)
	}
	return &d, true, nil
}

// vaultBalance is the vault's custodial balance: lamports above its storage deposit.
func vaultBalance(tx *ledger.Txn, vault ledger.Address) (uint64, error) {
	acct, ok := tx.Account(vault)
	if !ok {
		return 0, fmt.Errorf("vault %s: %w", vault, ledger.ErrAccountNotFound)
	}
	rent := tx.MinimumBalance(acct.Space)
	if acct.Lamports < rent {
		return 0, nil
	}
	return acct.Lamports - rent, nil
}

// payFromVault moves custodial lamports out of the vault.
func payFromVault(tx *ledger.Txn, vault, to ledger.Address, amount uint64) error {
	err := tx.Transfer(vault, to, amount)
	if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, ledger.ErrBelowStorageDeposit) {
		return fmt.Errorf("pay %d to %s: %w", amount, to, core.ErrInsufficientVaultBalance)
	}
	return err
}
