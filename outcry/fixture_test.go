package outcry

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/assert"

	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
	"github.com/cloudx-io/outcry/outcryapi/parsing"
)

const (
	startTime   int64  = 1_700_000_000
	initialFund uint64 = 10_000_000_000
)

var (
	seller  = ledger.ProgramAddress("test-seller")
	alice   = ledger.ProgramAddress("test-alice")
	bob     = ledger.ProgramAddress("test-bob")
	carol   = ledger.ProgramAddress("test-carol")
	cranker = ledger.ProgramAddress("test-cranker")
	artist  = ledger.ProgramAddress("test-artist")
	curator = ledger.ProgramAddress("test-curator")
)

func vaultOf(auction ledger.Address) ledger.Address {
	v, _ := VaultAddress(auction)
	return v
}

type fixture struct {
	t     *testing.T
	l     *ledger.Ledger
	clock *ledger.ManualClock
	p     *Program
	mint  ledger.Address
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	p, err := New(cfg)
	assert.NoError(t, err)

	clock := ledger.NewManualClock(startTime)
	f := &fixture{
		t:     t,
		l:     ledger.New("durable", clock, ledger.DefaultOptions()),
		clock: clock,
		p:     p,
		mint:  ledger.ProgramAddress("test-mint-" + t.Name()),
	}
	for _, a := range []ledger.Address{seller, alice, bob, carol, cranker} {
		assert.NoError(t, f.l.Fund(a, initialFund))
	}
	assert.NoError(t, f.exec([]ledger.Address{seller}, func(tx *ledger.Txn) error {
		if err := CreateMint(tx, seller, f.mint, seller); err != nil {
			return err
		}
		return MintTo(tx, f.mint, seller, seller, 1)
	}))
	return f
}

func (f *fixture) exec(signers []ledger.Address, fn func(*ledger.Txn) error) error {
	_, err := f.l.Execute(context.Background(), signers, fn)
	return err
}

func (f *fixture) receipt(signers []ledger.Address, fn func(*ledger.Txn) error) (*ledger.Receipt, error) {
	return f.l.Execute(context.Background(), signers, fn)
}

func defaultParams() CreateAuctionParams {
	return CreateAuctionParams{
		ReservePrice:     100,
		DurationSeconds:  300,
		ExtensionSeconds: 60,
		ExtensionWindow:  30,
		MinBidIncrement:  10,
	}
}

func (f *fixture) create(params CreateAuctionParams) ledger.Address {
	f.t.Helper()
	var auction ledger.Address
	assert.NoError(f.t, f.exec([]ledger.Address{seller}, func(tx *ledger.Txn) error {
		var err error
		auction, err = f.p.CreateAuction(tx, seller, f.mint, params)
		return err
	}))
	return auction
}

func (f *fixture) createAndStart() ledger.Address {
	f.t.Helper()
	auction := f.create(defaultParams())
	assert.NoError(f.t, f.start(auction))
	return auction
}

func (f *fixture) start(auction ledger.Address) error {
	return f.exec([]ledger.Address{seller}, func(tx *ledger.Txn) error {
		return f.p.StartAuction(tx, auction, seller)
	})
}

func (f *fixture) deposit(auction, bidder ledger.Address, amount uint64) error {
	return f.exec([]ledger.Address{bidder}, func(tx *ledger.Txn) error {
		return f.p.Deposit(tx, auction, bidder, amount)
	})
}

func (f *fixture) bid(auction, bidder ledger.Address, amount uint64) error {
	return f.exec([]ledger.Address{bidder}, func(tx *ledger.Txn) error {
		_, err := f.p.PlaceBid(tx, auction, bidder, amount)
		return err
	})
}

// finish moves the clock to the auction's end time and ends it.
func (f *fixture) finish(auction ledger.Address) {
	f.t.Helper()
	f.clock.Set(f.auction(auction).EndTime)
	assert.NoError(f.t, f.exec([]ledger.Address{cranker}, func(tx *ledger.Txn) error {
		return f.p.EndAuction(tx, auction)
	}))
}

func (f *fixture) settle(auction ledger.Address, params SettleParams) error {
	if params.Payer.IsZero() {
		params.Payer = cranker
	}
	return f.exec([]ledger.Address{params.Payer}, func(tx *ledger.Txn) error {
		_, err := f.p.SettleAuction(tx, auction, params)
		return err
	})
}

func (f *fixture) forfeit(auction ledger.Address) error {
	return f.exec([]ledger.Address{cranker}, func(tx *ledger.Txn) error {
		_, err := f.p.ForfeitAuction(tx, auction, cranker)
		return err
	})
}

func (f *fixture) refund(auction, bidder ledger.Address) error {
	return f.exec([]ledger.Address{bidder}, func(tx *ledger.Txn) error {
		return f.p.ClaimRefund(tx, auction, bidder)
	})
}

func (f *fixture) auction(addr ledger.Address) *outcryapi.AuctionState {
	f.t.Helper()
	acct, ok := f.l.Account(addr)
	assert.True(f.t, ok)
	st, err := DecodeAuction(acct)
	assert.NoError(f.t, err)
	return st
}

func (f *fixture) depositOf(auction, bidder ledger.Address) uint64 {
	f.t.Helper()
	addr, _ := DepositAddress(auction, bidder)
	acct, ok := f.l.Account(addr)
	if !ok {
		return 0
	}
	var d outcryapi.BidderDeposit
	assert.NoError(f.t, outcryapi.Decode(acct.Data, &d))
	return d.Amount
}

func (f *fixture) vaultCustody(auction ledger.Address) uint64 {
	acct, ok := f.l.Account(vaultOf(auction))
	if !ok {
		return 0
	}
	return acct.Lamports - f.l.Options().MinimumBalance(acct.Space)
}

func (f *fixture) tokens(owner ledger.Address) uint64 {
	var n uint64
	_ = f.exec(nil, func(tx *ledger.Txn) error {
		n = TokenBalance(tx, owner, f.mint)
		return nil
	})
	return n
}

func (f *fixture) putMetadata(md *parsing.AssetMetadata) {
	f.t.Helper()
	f.putRawMetadata(parsing.EncodeMetadata(md))
}

func (f *fixture) putRawMetadata(data []byte) {
	f.t.Helper()
	assert.NoError(f.t, f.exec([]ledger.Address{seller}, func(tx *ledger.Txn) error {
		return PutMetadata(tx, seller, f.mint, data)
	}))
}
