package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type entry struct {
	addr Address
	acct *Account
}

func entryLess(a, b entry) bool { return a.addr.Less(b.addr) }

// Event is a notification emitted by a committed transaction.
type Event struct {
	TxID    uuid.UUID
	Slot    uint64
	Tier    string
	Name    string
	Payload any
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxID   uuid.UUID
	Slot   uint64
	Events []Event
}

// Ledger is one execution tier: a set of accounts mutated only through
// all-or-nothing transactions. Transactions are applied one at a time, so of
// two conflicting transactions exactly one commits first and the other runs
// against the committed result.
type Ledger struct {
	name  string
	opts  Options
	clock Clock

	mu       sync.Mutex
	accounts *btree.BTreeG[entry]
	slot     uint64
	events   []Event

	pending chan struct{}
}

// New returns an empty ledger tier.
func New(name string, clock Clock, opts Options) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultOptions().MaxPending
	}
	return &Ledger{
		name:     name,
		opts:     opts,
		clock:    clock,
		accounts: btree.NewG(32, entryLess),
		pending:  make(chan struct{}, opts.MaxPending),
	}
}

// Name identifies the tier in logs and events.
func (l *Ledger) Name() string { return l.name }

// Options returns the ledger's storage and admission settings.
func (l *Ledger) Options() Options { return l.opts }

// Clock returns the ledger's time source.
func (l *Ledger) Clock() Clock { return l.clock }

// Execute runs fn as a single transaction signed by signers. If fn returns an
// error nothing it did is kept; otherwise every account write and event is
// committed together.
func (l *Ledger) Execute(ctx context.Context, signers []Address, fn func(*Txn) error) (*Receipt, error) {
	// Acquire admission slot - immediate rejection if the queue is full
	select {
	case l.pending <- struct{}{}:
		defer func() { <-l.pending }()
	default:
		log.Warn().Str("tier", l.name).Msg("rejecting transaction, pending limit reached")
		return nil, ErrBusy
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn := &Txn{
		ctx:      ctx,
		id:       uuid.New(),
		ledger:   l,
		accounts: l.accounts.Clone(),
		signers:  make(map[Address]bool, len(signers)),
		now:      l.clock.Now(),
	}
	for _, s := range signers {
		txn.signers[s] = true
	}

	if err := runTxn(txn, fn); err != nil {
		log.Debug().Str("tier", l.name).Str("tx", txn.id.String()).Err(err).Msg("transaction aborted")
		return nil, err
	}

	l.slot++
	l.accounts = txn.accounts
	receipt := &Receipt{TxID: txn.id, Slot: l.slot, Events: make([]Event, 0, len(txn.events))}
	for _, ev := range txn.events {
		ev.TxID = txn.id
		ev.Slot = l.slot
		ev.Tier = l.name
		receipt.Events = append(receipt.Events, ev)
	}
	l.events = append(l.events, receipt.Events...)
	return receipt, nil
}

func runTxn(txn *Txn, fn func(*Txn) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("tx", txn.id.String()).Msg("panic recovered in transaction")
			err = fmt.Errorf("transaction panicked: %v", r)
		}
	}()
	return fn(txn)
}

// Account returns a copy of the committed account at addr.
func (l *Ledger) Account(addr Address) (*Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.accounts.Get(entry{addr: addr})
	if !ok {
		return nil, false
	}
	return e.acct.Clone(), true
}

// Balance returns the committed lamports at addr (0 if absent).
func (l *Ledger) Balance(addr Address) uint64 {
	acct, ok := l.Account(addr)
	if !ok {
		return 0
	}
	return acct.Lamports
}

// Fund credits lamports to a system-owned wallet, creating it if needed.
func (l *Ledger) Fund(addr Address, lamports uint64) error {
	_, err := l.Execute(context.Background(), nil, func(tx *Txn) error {
		acct, ok := tx.Account(addr)
		if !ok {
			acct = &Account{Owner: SystemProgram}
		}
		sum := acct.Lamports + lamports
		if sum < acct.Lamports {
			return ErrLamportOverflow
		}
		acct.Lamports = sum
		return tx.SetAccount(addr, acct)
	})
	return err
}

// Events returns every event committed so far, oldest first.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Snapshot is an immutable, ordered view of a ledger's committed accounts.
type Snapshot struct {
	tier     string
	now      int64
	opts     Options
	accounts *btree.BTreeG[entry]
}

// Snapshot captures the committed state.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Snapshot{tier: l.name, now: l.clock.Now(), opts: l.opts, accounts: l.accounts.Clone()}
}

// Tier names the ledger the snapshot was taken from.
func (s *Snapshot) Tier() string { return s.tier }

// Now is the ledger clock when the snapshot was taken.
func (s *Snapshot) Now() int64 { return s.now }

// Options returns the captured ledger's storage settings.
func (s *Snapshot) Options() Options { return s.opts }

// Account returns a copy of the account at addr.
func (s *Snapshot) Account(addr Address) (*Account, bool) {
	e, ok := s.accounts.Get(entry{addr: addr})
	if !ok {
		return nil, false
	}
	return e.acct.Clone(), true
}

// Each visits every account in address order until fn returns false.
func (s *Snapshot) Each(fn func(Address, *Account) bool) {
	s.accounts.Ascend(func(e entry) bool {
		return fn(e.addr, e.acct.Clone())
	})
}

// Len is the number of accounts in the snapshot.
func (s *Snapshot) Len() int { return s.accounts.Len() }
