package ledger

// Account is a single addressed entry in a ledger tier.
type Account struct {
	Lamports uint64
	Owner    Address
	Data     []byte
	// Space is the data capacity fixed at creation; Data may never outgrow it.
	Space int
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := &Account{Lamports: a.Lamports, Owner: a.Owner, Space: a.Space}
	if a.Data != nil {
		out.Data = append([]byte(nil), a.Data...)
	}
	return out
}

// Options tune storage-deposit accounting and admission control.
type Options struct {
	// LamportsPerByte is the storage price of one byte of account data.
	LamportsPerByte uint64
	// AccountOverhead is charged per account on top of its data length.
	AccountOverhead uint64
	// MaxPending bounds the number of transactions waiting on the ledger.
	MaxPending int
}

// DefaultOptions mirrors the reference runtime's rent schedule.
func DefaultOptions() Options {
	return Options{
		LamportsPerByte: 6960,
		AccountOverhead: 128,
		MaxPending:      256,
	}
}

// MinimumBalance is the storage deposit an account with the given data
// capacity must keep.
func (o Options) MinimumBalance(space int) uint64 {
	if space <= 0 {
		return 0
	}
	return (o.AccountOverhead + uint64(space)) * o.LamportsPerByte
}
