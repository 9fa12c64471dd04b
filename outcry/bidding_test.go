package outcry

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcryapi"
)

func TestPlaceBid_ReserveAndIncrement(t *testing.T) {
	// reserve=100, duration=300, increment=10
	f := newFixture(t, DefaultConfig())
	auction := f.createAndStart()

	assert.NoError(t, f.bid(auction, alice, 100))
	check.True(t, errors.Is(f.bid(auction, bob, 105), core.ErrBidTooLow))
	assert.NoError(t, f.bid(auction, bob, 110))

	st := f.auction(auction)
	check.Equal(t, uint64(110), st.CurrentBid)
	check.Equal(t, bob, st.HighestBidder)
	check.Equal(t, uint32(2), st.BidCount)
}

func TestPlaceBid_Rejections(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.create(defaultParams())

	check.True(t, errors.Is(f.bid(auction, alice, 100), core.ErrAuctionNotStarted))
	assert.NoError(t, f.start(auction))

	check.True(t, errors.Is(f.bid(auction, alice, 99), core.ErrBelowReserve))
	check.True(t, errors.Is(f.bid(auction, seller, 500), core.ErrSellerCannotBid))

	err := f.exec(nil, func(tx *ledger.Txn) error {
		_, err := f.p.PlaceBid(tx, auction, alice, 100)
		return err
	})
	check.True(t, errors.Is(err, core.ErrMissingSigner))

	f.clock.Set(f.auction(auction).EndTime)
	check.True(t, errors.Is(f.bid(auction, alice, 100), core.ErrAuctionEnded))

	st := f.auction(auction)
	check.Equal(t, uint64(0), st.CurrentBid)
	check.Equal(t, uint32(0), st.BidCount)
	check.True(t, st.HighestBidder.IsZero())
}

func TestPlaceBid_AntiSnipe(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.createAndStart()
	end := f.auction(auction).EndTime

	// window=30, extension=60
	f.clock.Set(end - 31)
	assert.NoError(t, f.bid(auction, alice, 100))
	check.Equal(t, end, f.auction(auction).EndTime)

	f.clock.Set(end - 10)
	var ev outcryapi.BidPlaced
	assert.NoError(t, f.exec([]ledger.Address{bob}, func(tx *ledger.Txn) error {
		var err error
		ev, err = f.p.PlaceBid(tx, auction, bob, 110)
		return err
	}))
	check.Equal(t, end+60, f.auction(auction).EndTime)
	check.Equal(t, end+60, ev.NewEndTime)
	check.Equal(t, uint64(100), ev.PreviousBid)

	// Total extension is capped at min(duration, 3600) past the original end
	amount := uint64(120)
	for i := 0; i < 20; i++ {
		f.clock.Set(f.auction(auction).EndTime - 1)
		assert.NoError(t, f.bid(auction, alice, amount))
		amount += 10
	}
	check.Equal(t, startTime+300+300, f.auction(auction).EndTime)
}

const sessionSigner = "test-session-signer"

func TestPlaceBidSession(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.createAndStart()
	signer := ledger.ProgramAddress(sessionSigner)

	assert.NoError(t, f.exec([]ledger.Address{alice}, func(tx *ledger.Txn) error {
		_, err := f.p.CreateSession(tx, auction, alice, signer)
		return err
	}))

	var ev outcryapi.BidPlaced
	assert.NoError(t, f.exec([]ledger.Address{signer}, func(tx *ledger.Txn) error {
		var err error
		ev, err = f.p.PlaceBidSession(tx, auction, alice, 100)
		return err
	}))
	check.Equal(t, alice, ev.Bidder)
	check.Equal(t, alice, f.auction(auction).HighestBidder)

	// Same economic rules as a direct bid
	err := f.exec([]ledger.Address{signer}, func(tx *ledger.Txn) error {
		_, err := f.p.PlaceBidSession(tx, auction, alice, 105)
		return err
	})
	check.True(t, errors.Is(err, core.ErrBidTooLow))

	// Another key cannot use alice's session
	err = f.exec([]ledger.Address{bob}, func(tx *ledger.Txn) error {
		_, err := f.p.PlaceBidSession(tx, auction, alice, 200)
		return err
	})
	check.True(t, errors.Is(err, core.ErrSessionSignerMismatch))

	// Bob has no session
	err = f.exec([]ledger.Address{signer}, func(tx *ledger.Txn) error {
		_, err := f.p.PlaceBidSession(tx, auction, bob, 200)
		return err
	})
	check.True(t, errors.Is(err, core.ErrSessionNotFound))
}

func TestCreateSession_Rejections(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.createAndStart()
	signer := ledger.ProgramAddress(sessionSigner)

	create := func(bidder, s ledger.Address) error {
		return f.exec([]ledger.Address{bidder}, func(tx *ledger.Txn) error {
			_, err := f.p.CreateSession(tx, auction, bidder, s)
			return err
		})
	}

	assert.NoError(t, create(alice, signer))
	check.True(t, errors.Is(create(alice, signer), core.ErrSessionExists))
	check.True(t, errors.Is(create(seller, signer), core.ErrSellerCannotBid))
	check.True(t, errors.Is(create(bob, ledger.Zero), core.ErrSessionSignerMismatch))

	f.finish(auction)
	check.True(t, errors.Is(create(bob, signer), core.ErrInvalidAuctionStatus))
}

func TestDelegatedAuction_DurableView(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.createAndStart()
	assert.NoError(t, f.deposit(auction, alice, 100))

	assert.NoError(t, f.exec([]ledger.Address{seller}, func(tx *ledger.Txn) error {
		_, err := f.p.DelegateAuction(tx, auction, seller)
		return err
	}))

	// Bids must go to the fast tier
	check.True(t, errors.Is(f.bid(auction, alice, 100), core.ErrAuctionDelegated))
	// Deposits stay on the durable tier
	assert.NoError(t, f.deposit(auction, alice, 50))
	check.Equal(t, uint64(150), f.depositOf(auction, alice))
	// Sessions can still be registered
	assert.NoError(t, f.exec([]ledger.Address{bob}, func(tx *ledger.Txn) error {
		_, err := f.p.CreateSession(tx, auction, bob, ledger.ProgramAddress(sessionSigner))
		return err
	}))
	// Settlement cannot read the record
	check.True(t, errors.Is(f.settle(auction, SettleParams{}), core.ErrAuctionDelegated))
	check.True(t, errors.Is(f.refund(auction, alice), core.ErrAuctionDelegated))
}

func TestDelegateAuction_Guards(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.create(defaultParams())

	delegate := func(who ledger.Address) error {
		return f.exec([]ledger.Address{who}, func(tx *ledger.Txn) error {
			_, err := f.p.DelegateAuction(tx, auction, who)
			return err
		})
	}
	check.True(t, errors.Is(delegate(seller), core.ErrInvalidAuctionStatus))
	assert.NoError(t, f.start(auction))
	check.True(t, errors.Is(delegate(alice), core.ErrUnauthorizedSeller))
	assert.NoError(t, delegate(seller))
	check.True(t, errors.Is(delegate(seller), core.ErrAuctionDelegated))
}

func TestResumeDelegation(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	auction := f.create(defaultParams())
	assert.NoError(t, f.start(auction))

	resume := func(who ledger.Address) (*ledger.Account, error) {
		var snapshot *ledger.Account
		err := f.exec([]ledger.Address{who}, func(tx *ledger.Txn) error {
			var err error
			snapshot, err = f.p.ResumeDelegation(tx, auction, who)
			return err
		})
		return snapshot, err
	}
	_, err := resume(seller)
	check.True(t, errors.Is(err, core.ErrAuctionNotDelegated))

	var delegated *ledger.Account
	assert.NoError(t, f.exec([]ledger.Address{seller}, func(tx *ledger.Txn) error {
		var err error
		delegated, err = f.p.DelegateAuction(tx, auction, seller)
		return err
	}))

	_, err = resume(alice)
	check.True(t, errors.Is(err, core.ErrUnauthorizedSeller))

	// The snapshot matches what the original hand-off produced
	snapshot, err := resume(seller)
	assert.NoError(t, err)
	check.Equal(t, ProgramID, snapshot.Owner)
	check.Equal(t, delegated.Data, snapshot.Data)
	st, err := DecodeAuction(snapshot)
	assert.NoError(t, err)
	check.Equal(t, outcryapi.StatusActive, st.Status)
}
