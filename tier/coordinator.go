// Package tier coordinates an auction's two execution tiers. The durable
// tier holds custody of every value; the fast tier holds the auction record
// alone while bidding is live.
package tier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcry"
	"github.com/cloudx-io/outcry/outcryapi"
	"github.com/cloudx-io/outcry/session"
)

// Coordinator routes each operation to the tier that is authoritative for the
// auction's current phase.
type Coordinator struct {
	Durable *ledger.Ledger
	Fast    *ledger.Ledger
	Program *outcry.Program

	mu       sync.Mutex
	resident map[ledger.Address]*residency
}

// handoff tracks how far an auction's move between tiers has progressed.
type handoff int

const (
	// handoffPending: the durable record belongs to the delegation program
	// but the fast tier may not hold a copy yet.
	handoffPending handoff = iota
	// handoffLive: the fast tier is authoritative.
	handoffLive
	// handoffCommitted: the final record is back on the durable tier and the
	// fast copies still need removing.
	handoffCommitted
	// handoffDone: the entry has left the residency map.
	handoffDone
)

// residency is one auction's hand-off. mu serializes the hand-off steps and
// session cloning; state is guarded by Coordinator.mu.
type residency struct {
	mu    sync.Mutex
	state handoff
}

// New returns a coordinator over the two tiers.
func New(durable, fast *ledger.Ledger, program *outcry.Program) *Coordinator {
	return &Coordinator{
		Durable:  durable,
		Fast:     fast,
		Program:  program,
		resident: make(map[ledger.Address]*residency),
	}
}

// Resident returns the ledger authoritative for auction's bid state.
func (c *Coordinator) Resident(auction ledger.Address) *ledger.Ledger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res, ok := c.resident[auction]; ok && res.state == handoffLive {
		return c.Fast
	}
	return c.Durable
}

// Delegated reports whether auction currently lives on the fast tier.
func (c *Coordinator) Delegated(auction ledger.Address) bool {
	return c.Resident(auction) == c.Fast
}

func (c *Coordinator) stateOf(res *residency) handoff {
	c.mu.Lock()
	defer c.mu.Unlock()
	return res.state
}

func (c *Coordinator) setState(auction ledger.Address, res *residency, state handoff) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res.state = state
	if state == handoffDone && c.resident[auction] == res {
		delete(c.resident, auction)
	}
}

// acquire returns auction's residency with its hand-off lock held, creating
// an entry in state if none is tracked.
func (c *Coordinator) acquire(auction ledger.Address, state handoff) *residency {
	for {
		c.mu.Lock()
		res, ok := c.resident[auction]
		if !ok {
			res = &residency{state: state}
			c.resident[auction] = res
		}
		c.mu.Unlock()

		res.mu.Lock()
		if c.stateOf(res) != handoffDone {
			return res
		}
		res.mu.Unlock()
	}
}

// Delegate hands an Active auction to the fast tier and clones its session
// tokens there. It is safe to call again after a failure: an auction whose
// durable record already belongs to the delegation program is cloned from
// that record instead of being delegated a second time.
func (c *Coordinator) Delegate(ctx context.Context, auction, seller ledger.Address) error {
	res := c.acquire(auction, handoffPending)
	defer res.mu.Unlock()
	if state := c.stateOf(res); state != handoffPending {
		return fmt.Errorf("delegate %s: %w", auction, core.ErrAuctionDelegated)
	}

	var snapshot *ledger.Account
	_, err := c.Durable.Execute(ctx, []ledger.Address{seller}, func(tx *ledger.Txn) error {
		var err error
		snapshot, err = c.Program.ResumeDelegation(tx, auction, seller)
		if errors.Is(err, core.ErrAuctionNotDelegated) {
			snapshot, err = c.Program.DelegateAuction(tx, auction, seller)
		}
		return err
	})
	if err != nil {
		// Nothing was handed off unless the durable record changed owner.
		if owner, ok := c.durableOwner(auction); !ok || owner != ledger.DelegationProgram {
			c.setState(auction, res, handoffDone)
		}
		return fmt.Errorf("delegate %s: %w", auction, err)
	}

	sessions := sessionsOf(c.Durable.Snapshot(), auction)
	_, err = c.Fast.Execute(ctx, nil, func(tx *ledger.Txn) error {
		// A copy left by an earlier attempt may already hold bids.
		if !tx.Exists(auction) {
			if err := tx.SetAccount(auction, snapshot); err != nil {
				return err
			}
			tx.Emit(outcryapi.EventAuctionDelegated, outcryapi.AuctionDelegated{Auction: auction, Tier: tx.Tier()})
		}
		for addr, acct := range sessions {
			if tx.Exists(addr) {
				continue
			}
			if err := tx.SetAccount(addr, acct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("auction", auction.String()).Msg("fast tier clone failed, delegation pending")
		return fmt.Errorf("clone %s into %s: %w", auction, c.Fast.Name(), err)
	}
	c.setState(auction, res, handoffLive)

	log.Info().
		Str("auction", auction.String()).
		Int("sessions", len(sessions)).
		Msg("auction resident on fast tier")
	return nil
}

func (c *Coordinator) durableOwner(auction ledger.Address) (ledger.Address, bool) {
	acct, ok := c.Durable.Account(auction)
	if !ok {
		return ledger.Zero, false
	}
	return acct.Owner, true
}

// sessionsOf collects every session token of auction held by one tier.
func sessionsOf(snap *ledger.Snapshot, auction ledger.Address) map[ledger.Address]*ledger.Account {
	out := make(map[ledger.Address]*ledger.Account)
	snap.Each(func(addr ledger.Address, acct *ledger.Account) bool {
		if acct.Owner != outcry.ProgramID || !outcryapi.IsRecord(acct.Data, outcryapi.SessionToken{}) {
			return true
		}
		var tok outcryapi.SessionToken
		if err := outcryapi.Decode(acct.Data, &tok); err == nil && tok.Auction == auction {
			out[addr] = acct
		}
		return true
	})
	return out
}

// adopt rebuilds the hand-off state of an auction this coordinator is not
// tracking, such as one delegated by an earlier process.
func (c *Coordinator) adopt(auction ledger.Address) (handoff, bool) {
	owner, ok := c.durableOwner(auction)
	if !ok {
		return handoffDone, false
	}
	_, onFast := c.Fast.Account(auction)
	switch {
	case owner == ledger.DelegationProgram && onFast:
		return handoffLive, true
	case owner == ledger.DelegationProgram:
		return handoffPending, true
	case owner == outcry.ProgramID && onFast:
		return handoffCommitted, true
	}
	return handoffDone, false
}

// Undelegate commits the fast tier's final record back to the durable tier
// and then removes the fast copies. The auction must have Ended on the fast
// tier. The durable commit happens first, so a failure at any step leaves a
// state that calling Undelegate again completes.
func (c *Coordinator) Undelegate(ctx context.Context, auction, seller ledger.Address) error {
	c.mu.Lock()
	_, tracked := c.resident[auction]
	c.mu.Unlock()
	state := handoffLive
	if !tracked {
		var ok bool
		if state, ok = c.adopt(auction); !ok {
			return fmt.Errorf("undelegate %s: %w", auction, core.ErrAuctionNotDelegated)
		}
	}
	res := c.acquire(auction, state)
	defer res.mu.Unlock()

	switch c.stateOf(res) {
	case handoffPending:
		return fmt.Errorf("undelegate %s: fast tier copy missing, delegate again: %w", auction, core.ErrAuctionNotDelegated)
	case handoffLive:
		var final *ledger.Account
		_, err := c.Fast.Execute(ctx, []ledger.Address{seller}, func(tx *ledger.Txn) error {
			if _, err := c.Program.CheckUndelegate(tx, auction, seller); err != nil {
				return err
			}
			final, _ = tx.Account(auction)
			return nil
		})
		if err != nil {
			return fmt.Errorf("undelegate %s: %w", auction, err)
		}
		if _, err := c.Durable.Execute(ctx, nil, func(tx *ledger.Txn) error {
			return c.Program.CommitAuction(tx, auction, final)
		}); err != nil {
			return fmt.Errorf("commit %s to %s: %w", auction, c.Durable.Name(), err)
		}
		c.setState(auction, res, handoffCommitted)
	}

	sessions := sessionsOf(c.Fast.Snapshot(), auction)
	addrs := make([]ledger.Address, 0, len(sessions))
	for addr := range sessions {
		addrs = append(addrs, addr)
	}
	if _, err := c.Fast.Execute(ctx, []ledger.Address{seller}, func(tx *ledger.Txn) error {
		_, err := c.Program.ReleaseAuction(tx, auction, seller, addrs)
		return err
	}); err != nil {
		return fmt.Errorf("release %s from %s: %w", auction, c.Fast.Name(), err)
	}
	c.setState(auction, res, handoffDone)
	return nil
}

// CreateSession registers a session on the durable tier and, if the auction
// is delegated, clones the new token into the fast tier.
func (c *Coordinator) CreateSession(ctx context.Context, auction, bidder, signer ledger.Address) error {
	var addr ledger.Address
	_, err := c.Durable.Execute(ctx, []ledger.Address{bidder}, func(tx *ledger.Txn) error {
		var err error
		addr, err = c.Program.CreateSession(tx, auction, bidder, signer)
		return err
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	res, tracked := c.resident[auction]
	c.mu.Unlock()
	if !tracked {
		return nil
	}
	// Waits out a hand-off in progress. A pending delegation picks the token
	// up when it is retried; a committed one no longer needs it.
	res.mu.Lock()
	defer res.mu.Unlock()
	if c.stateOf(res) != handoffLive {
		return nil
	}
	acct, ok := c.Durable.Account(addr)
	if !ok {
		return fmt.Errorf("session %s: %w", addr, ledger.ErrAccountNotFound)
	}
	if _, err := c.Fast.Execute(ctx, nil, func(tx *ledger.Txn) error {
		return tx.SetAccount(addr, acct)
	}); err != nil {
		return fmt.Errorf("clone session into %s: %w", c.Fast.Name(), err)
	}
	return nil
}

// PlaceBid places a direct bid on the authoritative tier.
func (c *Coordinator) PlaceBid(ctx context.Context, auction, bidder ledger.Address, amount uint64) (outcryapi.BidPlaced, error) {
	var ev outcryapi.BidPlaced
	_, err := c.Resident(auction).Execute(ctx, []ledger.Address{bidder}, func(tx *ledger.Txn) error {
		var err error
		ev, err = c.Program.PlaceBid(tx, auction, bidder, amount)
		return err
	})
	return ev, err
}

// PlaceBidSession places a session bid on the authoritative tier. signer is
// the ephemeral key that signs the transaction.
func (c *Coordinator) PlaceBidSession(ctx context.Context, auction, bidder, signer ledger.Address, amount uint64) (outcryapi.BidPlaced, error) {
	var ev outcryapi.BidPlaced
	_, err := c.Resident(auction).Execute(ctx, []ledger.Address{signer}, func(tx *ledger.Txn) error {
		var err error
		ev, err = c.Program.PlaceBidSession(tx, auction, bidder, amount)
		return err
	})
	return ev, err
}

// PlaceBidSigned verifies a session bid envelope and places the bid it
// carries, with the envelope's signer as the transaction signer.
func (c *Coordinator) PlaceBidSigned(ctx context.Context, envelope []byte) (outcryapi.BidPlaced, error) {
	bid, signer, err := session.VerifyBid(envelope)
	if err != nil {
		return outcryapi.BidPlaced{}, err
	}
	return c.PlaceBidSession(ctx, bid.Auction, bid.Bidder, signer, bid.Amount)
}

// End closes bidding on the authoritative tier.
func (c *Coordinator) End(ctx context.Context, auction, payer ledger.Address) error {
	_, err := c.Resident(auction).Execute(ctx, []ledger.Address{payer}, func(tx *ledger.Txn) error {
		return c.Program.EndAuction(tx, auction)
	})
	return err
}

// Auction reads auction's record from the authoritative tier.
func (c *Coordinator) Auction(auction ledger.Address) (*outcryapi.AuctionState, error) {
	return ReadAuction(c.Resident(auction), auction)
}

// ReadAuction reads the committed auction record from one tier.
func ReadAuction(l *ledger.Ledger, auction ledger.Address) (*outcryapi.AuctionState, error) {
	acct, ok := l.Account(auction)
	if !ok {
		return nil, fmt.Errorf("%s on %s: %w", auction, l.Name(), core.ErrAuctionNotFound)
	}
	return outcry.DecodeAuction(acct)
}

// Durably runs fn as a durable-tier transaction. It refuses to run while the
// auction is delegated, so settlement and refunds never see stale bid state.
func (c *Coordinator) Durably(ctx context.Context, auction ledger.Address, signers []ledger.Address, fn func(*ledger.Txn) error) (*ledger.Receipt, error) {
	if c.Delegated(auction) {
		return nil, fmt.Errorf("%s: %w", auction, core.ErrAuctionDelegated)
	}
	return c.Durable.Execute(ctx, signers, fn)
}

// IsDelegated reports whether err was caused by an auction being resident
// on the fast tier.
func IsDelegated(err error) bool { return errors.Is(err, core.ErrAuctionDelegated) }
