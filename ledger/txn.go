package ledger

import (
	"context"
	"fmt"

	"github.com/google/btree"
	"github.com/google/uuid"
)

// Txn is the view a handler has of the ledger while its transaction runs.
// Writes go to a private copy of the account tree and become visible only when
// the transaction commits.
type Txn struct {
	ctx      context.Context
	id       uuid.UUID
	ledger   *Ledger
	accounts *btree.BTreeG[entry]
	signers  map[Address]bool
	now      int64
	events   []Event
}

// Context returns the context the transaction was submitted with.
func (t *Txn) Context() context.Context { return t.ctx }

// ID is the transaction identifier assigned at submission.
func (t *Txn) ID() uuid.UUID { return t.id }

// Tier names the ledger executing the transaction.
func (t *Txn) Tier() string { return t.ledger.name }

// Now is the ledger clock, fixed for the lifetime of the transaction.
func (t *Txn) Now() int64 { return t.now }

// IsSigner reports whether addr signed the transaction.
func (t *Txn) IsSigner(addr Address) bool { return t.signers[addr] }

// MinimumBalance is the storage deposit for an account with the given capacity.
func (t *Txn) MinimumBalance(space int) uint64 { return t.ledger.opts.MinimumBalance(space) }

// Account returns a copy of the account at addr as seen by this transaction.
func (t *Txn) Account(addr Address) (*Account, bool) {
	e, ok := t.accounts.Get(entry{addr: addr})
	if !ok {
		return nil, false
	}
	return e.acct.Clone(), true
}

// Exists reports whether an account is present at addr.
func (t *Txn) Exists(addr Address) bool {
	return t.accounts.Has(entry{addr: addr})
}

// SetAccount stores acct at addr.
func (t *Txn) SetAccount(addr Address, acct *Account) error {
	if len(acct.Data) > acct.Space {
		return fmt.Errorf("write %s (%d > %d bytes): %w", addr, len(acct.Data), acct.Space, ErrDataTooLarge)
	}
	t.accounts.ReplaceOrInsert(entry{addr: addr, acct: acct.Clone()})
	return nil
}

// WriteData replaces the data of an existing account owned by owner.
func (t *Txn) WriteData(addr, owner Address, data []byte) error {
	acct, ok := t.Account(addr)
	if !ok {
		return fmt.Errorf("write %s: %w", addr, ErrAccountNotFound)
	}
	if acct.Owner != owner {
		return fmt.Errorf("write %s: %w", addr, ErrIllegalOwner)
	}
	acct.Data = data
	return t.SetAccount(addr, acct)
}

// CreateAccount allocates a new account of the given capacity at addr, owned by
// owner, funding its storage deposit from payer.
func (t *Txn) CreateAccount(payer, addr, owner Address, data []byte, space int) error {
	if t.Exists(addr) {
		existing, _ := t.Account(addr)
		// A bare system wallet holding lamports may still be allocated.
		if existing.Owner != SystemProgram || existing.Space != 0 {
			return fmt.Errorf("create %s: %w", addr, ErrAccountExists)
		}
	}
	if space < len(data) {
		space = len(data)
	}
	rent := t.MinimumBalance(space)
	acct, ok := t.Account(addr)
	if !ok {
		acct = &Account{}
	}
	if acct.Lamports < rent {
		if err := t.Transfer(payer, addr, rent-acct.Lamports); err != nil {
			return fmt.Errorf("fund storage for %s: %w", addr, err)
		}
		acct, _ = t.Account(addr)
	}
	acct.Owner = owner
	acct.Space = space
	acct.Data = append([]byte(nil), data...)
	return t.SetAccount(addr, acct)
}

// CloseAccount deletes the account at addr and moves all of its lamports to
// dest. It returns the amount moved.
func (t *Txn) CloseAccount(addr, dest Address) (uint64, error) {
	acct, ok := t.Account(addr)
	if !ok {
		return 0, fmt.Errorf("close %s: %w", addr, ErrAccountNotFound)
	}
	if err := t.credit(dest, acct.Lamports); err != nil {
		return 0, err
	}
	t.accounts.Delete(entry{addr: addr})
	return acct.Lamports, nil
}

// Transfer moves lamports between accounts. Debiting a system wallet requires
// its signature; debiting a program account never lets it fall below its
// storage deposit.
func (t *Txn) Transfer(from, to Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, ok := t.Account(from)
	if !ok {
		return fmt.Errorf("transfer from %s: %w", from, ErrAccountNotFound)
	}
	if src.Owner == SystemProgram && src.Space == 0 && !t.IsSigner(from) {
		return fmt.Errorf("transfer from %s: %w", from, ErrMissingSignature)
	}
	if src.Lamports < amount {
		return fmt.Errorf("transfer %d from %s holding %d: %w", amount, from, src.Lamports, ErrInsufficientFunds)
	}
	if src.Lamports-amount < t.MinimumBalance(src.Space) {
		return fmt.Errorf("transfer %d from %s: %w", amount, from, ErrBelowStorageDeposit)
	}
	src.Lamports -= amount
	if err := t.SetAccount(from, src); err != nil {
		return err
	}
	return t.credit(to, amount)
}

func (t *Txn) credit(to Address, amount uint64) error {
	dst, ok := t.Account(to)
	if !ok {
		dst = &Account{Owner: SystemProgram}
	}
	sum := dst.Lamports + amount
	if sum < dst.Lamports {
		return fmt.Errorf("credit %s: %w", to, ErrLamportOverflow)
	}
	dst.Lamports = sum
	return t.SetAccount(to, dst)
}

// Emit records a notification to be published if the transaction commits.
func (t *Txn) Emit(name string, payload any) {
	t.events = append(t.events, Event{Name: name, Payload: payload})
}
