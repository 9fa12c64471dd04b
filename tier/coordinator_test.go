package tier

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcry"
	"github.com/cloudx-io/outcry/outcryapi"
	"github.com/cloudx-io/outcry/session"
)

const startTime int64 = 1_700_000_000

var (
	seller  = ledger.ProgramAddress("tier-seller")
	alice   = ledger.ProgramAddress("tier-alice")
	bob     = ledger.ProgramAddress("tier-bob")
	cranker = ledger.ProgramAddress("tier-cranker")
	mint    = ledger.ProgramAddress("tier-mint")
)

type harness struct {
	c       *Coordinator
	clock   *ledger.ManualClock
	auction ledger.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, ledger.DefaultOptions())
}

func newHarnessWith(t *testing.T, opts ledger.Options) *harness {
	t.Helper()
	p, err := outcry.New(outcry.DefaultConfig())
	assert.NoError(t, err)

	clock := ledger.NewManualClock(startTime)
	durable := ledger.New("durable", clock, opts)
	fast := ledger.New("fast", clock, opts)
	for _, a := range []ledger.Address{seller, alice, bob, cranker} {
		assert.NoError(t, durable.Fund(a, 10_000_000_000))
	}

	var auction ledger.Address
	_, err = durable.Execute(context.Background(), []ledger.Address{seller}, func(tx *ledger.Txn) error {
		if err := outcry.CreateMint(tx, seller, mint, seller); err != nil {
			return err
		}
		if err := outcry.MintTo(tx, mint, seller, seller, 1); err != nil {
			return err
		}
		var err error
		auction, err = p.CreateAuction(tx, seller, mint, outcry.CreateAuctionParams{
			ReservePrice:     100,
			DurationSeconds:  300,
			ExtensionSeconds: 60,
			ExtensionWindow:  30,
			MinBidIncrement:  10,
		})
		if err != nil {
			return err
		}
		return p.StartAuction(tx, auction, seller)
	})
	assert.NoError(t, err)
	return &harness{c: New(durable, fast, p), clock: clock, auction: auction}
}

func (h *harness) deposit(bidder ledger.Address, amount uint64) error {
	_, err := h.c.Durable.Execute(context.Background(), []ledger.Address{bidder}, func(tx *ledger.Txn) error {
		return h.c.Program.Deposit(tx, h.auction, bidder, amount)
	})
	return err
}

// occupy holds l's only admission slot until the returned func is called.
func occupy(l *ledger.Ledger) func() {
	entered, release, finished := make(chan struct{}), make(chan struct{}), make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = l.Execute(context.Background(), nil, func(*ledger.Txn) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	return func() {
		close(release)
		<-finished
	}
}

func (h *harness) settle(ctx context.Context) error {
	_, err := h.c.Durably(ctx, h.auction, []ledger.Address{cranker}, func(tx *ledger.Txn) error {
		_, err := h.c.Program.SettleAuction(tx, h.auction, outcry.SettleParams{Payer: cranker})
		return err
	})
	return err
}

func TestCoordinator_DelegatedBidding(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	assert.NoError(t, h.deposit(alice, 500))

	check.True(t, errors.Is(h.c.Delegate(ctx, h.auction, alice), core.ErrUnauthorizedSeller))
	assert.NoError(t, h.c.Delegate(ctx, h.auction, seller))
	check.True(t, h.c.Delegated(h.auction))
	check.True(t, h.c.Resident(h.auction) == h.c.Fast)

	// The durable copy is frozen
	_, err := ReadAuction(h.c.Durable, h.auction)
	check.True(t, IsDelegated(err))
	_, err = h.c.Durable.Execute(ctx, []ledger.Address{bob}, func(tx *ledger.Txn) error {
		_, err := h.c.Program.PlaceBid(tx, h.auction, bob, 100)
		return err
	})
	check.True(t, errors.Is(err, core.ErrAuctionDelegated))

	ev, err := h.c.PlaceBid(ctx, h.auction, bob, 100)
	assert.NoError(t, err)
	check.Equal(t, uint32(1), ev.BidCount)
	_, err = h.c.PlaceBid(ctx, h.auction, alice, 105)
	check.True(t, errors.Is(err, core.ErrBidTooLow))
	_, err = h.c.PlaceBid(ctx, h.auction, alice, 110)
	assert.NoError(t, err)

	st, err := h.c.Auction(h.auction)
	assert.NoError(t, err)
	check.Equal(t, uint64(110), st.CurrentBid)
	check.Equal(t, alice, st.HighestBidder)

	// Deposits still reach the durable vault while bidding is remote
	assert.NoError(t, h.deposit(bob, 200))

	_, err = h.c.Durably(ctx, h.auction, []ledger.Address{cranker}, func(tx *ledger.Txn) error {
		_, err := h.c.Program.SettleAuction(tx, h.auction, outcry.SettleParams{Payer: cranker})
		return err
	})
	check.True(t, IsDelegated(err))
}

func TestCoordinator_UndelegateAndSettle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	assert.NoError(t, h.deposit(alice, 500))
	assert.NoError(t, h.c.Delegate(ctx, h.auction, seller))
	_, err := h.c.PlaceBid(ctx, h.auction, alice, 150)
	assert.NoError(t, err)

	// Still Active on the fast tier
	check.True(t, errors.Is(h.c.Undelegate(ctx, h.auction, seller), core.ErrInvalidAuctionStatus))
	check.True(t, errors.Is(h.c.End(ctx, h.auction, cranker), core.ErrAuctionStillActive))

	h.clock.Set(startTime + 300)
	assert.NoError(t, h.c.End(ctx, h.auction, cranker))
	assert.NoError(t, h.c.Undelegate(ctx, h.auction, seller))
	check.False(t, h.c.Delegated(h.auction))

	_, ok := h.c.Fast.Account(h.auction)
	check.False(t, ok)
	_, ok = h.c.Durable.Account(outcry.DelegationAddress(h.auction))
	check.False(t, ok)

	st, err := ReadAuction(h.c.Durable, h.auction)
	assert.NoError(t, err)
	check.Equal(t, outcryapi.StatusEnded, st.Status)
	check.Equal(t, uint64(150), st.CurrentBid)
	check.Equal(t, alice, st.HighestBidder)

	sellerBefore := h.c.Durable.Balance(seller)
	_, err = h.c.Durably(ctx, h.auction, []ledger.Address{cranker}, func(tx *ledger.Txn) error {
		_, err := h.c.Program.SettleAuction(tx, h.auction, outcry.SettleParams{Payer: cranker})
		return err
	})
	assert.NoError(t, err)
	check.Equal(t, sellerBefore+150, h.c.Durable.Balance(seller))

	check.True(t, errors.Is(h.c.Undelegate(ctx, h.auction, seller), core.ErrAuctionNotDelegated))
}

func TestCoordinator_SessionBids(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	early, err := session.NewKey()
	assert.NoError(t, err)
	late, err := session.NewKey()
	assert.NoError(t, err)

	// Registered before delegation: cloned with the record
	assert.NoError(t, h.c.CreateSession(ctx, h.auction, alice, early.Address()))
	assert.NoError(t, h.c.Delegate(ctx, h.auction, seller))
	// Registered while delegated: cloned on creation
	assert.NoError(t, h.c.CreateSession(ctx, h.auction, bob, late.Address()))
	check.True(t, errors.Is(h.c.CreateSession(ctx, h.auction, bob, late.Address()), core.ErrSessionExists))

	env, err := session.SignBid(early, session.Bid{Auction: h.auction, Bidder: alice, Amount: 100})
	assert.NoError(t, err)
	ev, err := h.c.PlaceBidSigned(ctx, env)
	assert.NoError(t, err)
	check.Equal(t, alice, ev.Bidder)

	ev, err = h.c.PlaceBidSession(ctx, h.auction, bob, late.Address(), 120)
	assert.NoError(t, err)
	check.Equal(t, bob, ev.Bidder)

	// A key registered for alice cannot bid as bob
	forged, err := session.SignBid(early, session.Bid{Auction: h.auction, Bidder: bob, Amount: 200})
	assert.NoError(t, err)
	_, err = h.c.PlaceBidSigned(ctx, forged)
	check.True(t, errors.Is(err, core.ErrSessionSignerMismatch))

	_, err = h.c.PlaceBidSigned(ctx, env[:len(env)-1])
	check.True(t, errors.Is(err, session.ErrInvalidEnvelope))

	h.clock.Set(startTime + 300)
	assert.NoError(t, h.c.End(ctx, h.auction, cranker))
	assert.NoError(t, h.c.Undelegate(ctx, h.auction, seller))

	// Session copies leave the fast tier with the record
	for _, bidder := range []ledger.Address{alice, bob} {
		addr, _ := outcry.SessionAddress(h.auction, bidder)
		_, ok := h.c.Fast.Account(addr)
		check.False(t, ok)
		_, ok = h.c.Durable.Account(addr)
		check.True(t, ok)
	}
}

func TestCoordinator_DelegateRetry(t *testing.T) {
	ctx := context.Background()
	opts := ledger.DefaultOptions()
	opts.MaxPending = 1
	h := newHarnessWith(t, opts)
	assert.NoError(t, h.deposit(alice, 500))
	key, err := session.NewKey()
	assert.NoError(t, err)
	assert.NoError(t, h.c.CreateSession(ctx, h.auction, alice, key.Address()))

	// The durable hand-off commits, the fast clone is refused
	release := occupy(h.c.Fast)
	err = h.c.Delegate(ctx, h.auction, seller)
	release()
	check.True(t, errors.Is(err, ledger.ErrBusy))
	check.False(t, h.c.Delegated(h.auction))
	_, err = ReadAuction(h.c.Durable, h.auction)
	check.True(t, IsDelegated(err))
	_, ok := h.c.Fast.Account(h.auction)
	check.False(t, ok)

	// Funds may still arrive and a rejected stranger leaves it pending
	assert.NoError(t, h.deposit(bob, 300))
	check.True(t, errors.Is(h.c.Delegate(ctx, h.auction, alice), core.ErrUnauthorizedSeller))
	_, err = h.c.PlaceBid(ctx, h.auction, bob, 120)
	check.True(t, IsDelegated(err))

	assert.NoError(t, h.c.Delegate(ctx, h.auction, seller))
	check.True(t, h.c.Delegated(h.auction))
	check.True(t, IsDelegated(h.c.Delegate(ctx, h.auction, seller)))
	addr, _ := outcry.SessionAddress(h.auction, alice)
	_, ok = h.c.Fast.Account(addr)
	check.True(t, ok)

	_, err = h.c.PlaceBid(ctx, h.auction, bob, 120)
	assert.NoError(t, err)
	_, err = h.c.PlaceBidSession(ctx, h.auction, alice, key.Address(), 150)
	assert.NoError(t, err)

	h.clock.Set(startTime + 300)
	assert.NoError(t, h.c.End(ctx, h.auction, cranker))
	assert.NoError(t, h.c.Undelegate(ctx, h.auction, seller))
	sellerBefore := h.c.Durable.Balance(seller)
	assert.NoError(t, h.settle(ctx))
	check.Equal(t, sellerBefore+150, h.c.Durable.Balance(seller))
}

func TestCoordinator_UndelegateRetry(t *testing.T) {
	ctx := context.Background()
	opts := ledger.DefaultOptions()
	opts.MaxPending = 1
	h := newHarnessWith(t, opts)
	assert.NoError(t, h.deposit(alice, 500))
	assert.NoError(t, h.c.Delegate(ctx, h.auction, seller))
	_, err := h.c.PlaceBid(ctx, h.auction, alice, 150)
	assert.NoError(t, err)
	h.clock.Set(startTime + 300)
	assert.NoError(t, h.c.End(ctx, h.auction, cranker))

	// The durable commit is refused; the final record stays on the fast tier
	release := occupy(h.c.Durable)
	err = h.c.Undelegate(ctx, h.auction, seller)
	release()
	check.True(t, errors.Is(err, ledger.ErrBusy))
	check.True(t, h.c.Delegated(h.auction))
	st, err := ReadAuction(h.c.Fast, h.auction)
	assert.NoError(t, err)
	check.Equal(t, outcryapi.StatusEnded, st.Status)
	check.True(t, IsDelegated(h.settle(ctx)))

	assert.NoError(t, h.c.Undelegate(ctx, h.auction, seller))
	check.False(t, h.c.Delegated(h.auction))
	st, err = ReadAuction(h.c.Durable, h.auction)
	assert.NoError(t, err)
	check.Equal(t, uint64(150), st.CurrentBid)
	check.Equal(t, alice, st.HighestBidder)

	sellerBefore := h.c.Durable.Balance(seller)
	assert.NoError(t, h.settle(ctx))
	check.Equal(t, sellerBefore+150, h.c.Durable.Balance(seller))
}

func TestCoordinator_AdoptsHandoff(t *testing.T) {
	ctx := context.Background()
	opts := ledger.DefaultOptions()
	opts.MaxPending = 1
	h := newHarnessWith(t, opts)
	assert.NoError(t, h.deposit(alice, 500))

	release := occupy(h.c.Fast)
	check.True(t, errors.Is(h.c.Delegate(ctx, h.auction, seller), ledger.ErrBusy))
	release()

	// A fresh coordinator finishes the interrupted delegation
	c := New(h.c.Durable, h.c.Fast, h.c.Program)
	check.True(t, errors.Is(c.Undelegate(ctx, h.auction, seller), core.ErrAuctionNotDelegated))
	assert.NoError(t, c.Delegate(ctx, h.auction, seller))
	check.True(t, c.Delegated(h.auction))
	_, err := c.PlaceBid(ctx, h.auction, alice, 150)
	assert.NoError(t, err)
	h.clock.Set(startTime + 300)
	assert.NoError(t, c.End(ctx, h.auction, cranker))

	// The final record reaches the durable tier but the fast copy remains
	final, ok := c.Fast.Account(h.auction)
	assert.True(t, ok)
	_, err = c.Durable.Execute(ctx, nil, func(tx *ledger.Txn) error {
		return c.Program.CommitAuction(tx, h.auction, final)
	})
	assert.NoError(t, err)

	c = New(h.c.Durable, h.c.Fast, h.c.Program)
	check.False(t, c.Delegated(h.auction))
	assert.NoError(t, c.Undelegate(ctx, h.auction, seller))
	_, ok = c.Fast.Account(h.auction)
	check.False(t, ok)
	check.True(t, errors.Is(c.Undelegate(ctx, h.auction, seller), core.ErrAuctionNotDelegated))

	st, err := ReadAuction(c.Durable, h.auction)
	assert.NoError(t, err)
	check.Equal(t, uint64(150), st.CurrentBid)
}

func TestCoordinator_SessionDuringUndelegate(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		h := newHarness(t)
		assert.NoError(t, h.c.Delegate(ctx, h.auction, seller))
		h.clock.Set(startTime + 300)
		assert.NoError(t, h.c.End(ctx, h.auction, cranker))
		key, err := session.NewKey()
		assert.NoError(t, err)

		var created error
		var g errgroup.Group
		g.Go(func() error { return h.c.Undelegate(ctx, h.auction, seller) })
		g.Go(func() error {
			created = h.c.CreateSession(ctx, h.auction, bob, key.Address())
			return nil
		})
		assert.NoError(t, g.Wait())

		// Either the token was created before the commit and left with the
		// record, or the commit came first and refused it.
		addr, _ := outcry.SessionAddress(h.auction, bob)
		_, onFast := h.c.Fast.Account(addr)
		check.False(t, onFast)
		_, onDurable := h.c.Durable.Account(addr)
		if created == nil {
			check.True(t, onDurable)
		} else {
			check.True(t, errors.Is(created, core.ErrInvalidAuctionStatus))
			check.False(t, onDurable)
		}
	}
}
