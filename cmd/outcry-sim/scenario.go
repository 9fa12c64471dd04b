package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/outcry/core"
	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcry"
	"github.com/cloudx-io/outcry/session"
	"github.com/cloudx-io/outcry/tier"
	"github.com/cloudx-io/outcry/validation"
)

// Scenario names accepted by --scenario.
const (
	ScenarioSettle  = "settle"
	ScenarioForfeit = "forfeit"
	ScenarioCancel  = "cancel"
	ScenarioAbandon = "abandon"
)

var scenarios = []string{ScenarioSettle, ScenarioForfeit, ScenarioCancel, ScenarioAbandon}

// simConfig parameterizes one simulated auction.
type simConfig struct {
	Program  outcry.Config
	Params   outcry.CreateAuctionParams
	Ledger   ledger.Options
	Start    int64
	Fund     uint64
	Bidders  int
	Rounds   int
	Crankers int
	Delegate bool
	Sessions bool
}

// checkpoint is a named invariant check over both tiers.
type checkpoint struct {
	Name   string                             `json:"name"`
	Result *validation.LedgerValidationResult `json:"result"`
}

// report summarizes a scenario run.
type report struct {
	Scenario      string       `json:"scenario"`
	Auction       string       `json:"auction"`
	Winner        string       `json:"winner,omitempty"`
	FinalPrice    uint64       `json:"final_price"`
	Bids          int          `json:"bids"`
	EndTime       int64        `json:"end_time"`
	Extended      bool         `json:"extended"`
	EndCranks     int32        `json:"end_cranks"`
	SettleCranks  int32        `json:"settle_cranks"`
	Refunds       int          `json:"refunds"`
	Reclaimed     uint64       `json:"reclaimed"`
	Drained       uint64       `json:"drained"`
	DurableEvents int          `json:"durable_events"`
	FastEvents    int          `json:"fast_events"`
	Checkpoints   []checkpoint `json:"checkpoints"`
}

// IsValid returns true if every checkpoint passed and each race had exactly
// one winner.
func (r *report) IsValid() bool {
	for _, c := range r.Checkpoints {
		if !c.Result.IsValid() {
			return false
		}
	}
	switch r.Scenario {
	case ScenarioSettle, ScenarioForfeit, ScenarioAbandon:
		return r.EndCranks == 1 && r.SettleCranks == 1
	}
	return true
}

type simulation struct {
	cfg     simConfig
	clock   *ledger.ManualClock
	coord   *tier.Coordinator
	seller  ledger.Address
	mint    ledger.Address
	bidders []ledger.Address
	keys    []*session.Key
	crank   []ledger.Address
	auction ledger.Address
	rep     *report
}

func newSimulation(cfg simConfig, scenario string) (*simulation, error) {
	if cfg.Bidders < 1 || cfg.Crankers < 1 || cfg.Rounds < 1 {
		return nil, errors.New("bidders, rounds and crankers must be positive")
	}
	program, err := outcry.New(cfg.Program)
	if err != nil {
		return nil, err
	}
	clock := ledger.NewManualClock(cfg.Start)
	durable := ledger.New("durable", clock, cfg.Ledger)
	fast := ledger.New("fast", clock, cfg.Ledger)

	s := &simulation{
		cfg:    cfg,
		clock:  clock,
		coord:  tier.New(durable, fast, program),
		seller: ledger.ProgramAddress("sim-seller"),
		mint:   ledger.ProgramAddress("sim-mint-" + scenario),
		rep:    &report{Scenario: scenario},
	}
	wallets := []ledger.Address{s.seller}
	for i := 0; i < cfg.Bidders; i++ {
		s.bidders = append(s.bidders, ledger.ProgramAddress(fmt.Sprintf("sim-bidder-%d", i)))
	}
	for i := 0; i < cfg.Crankers; i++ {
		s.crank = append(s.crank, ledger.ProgramAddress(fmt.Sprintf("sim-cranker-%d", i)))
	}
	wallets = append(wallets, s.bidders...)
	wallets = append(wallets, s.crank...)
	for _, w := range wallets {
		if err := durable.Fund(w, cfg.Fund); err != nil {
			return nil, fmt.Errorf("fund %s: %w", w, err)
		}
	}
	return s, nil
}

// runScenario drives one auction through the named scenario.
func runScenario(ctx context.Context, cfg simConfig, scenario string) (*report, error) {
	s, err := newSimulation(cfg, scenario)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	switch scenario {
	case ScenarioCancel:
		err = s.runCancel(ctx)
	case ScenarioSettle, ScenarioForfeit, ScenarioAbandon:
		err = s.runBidding(ctx, scenario)
	default:
		err = fmt.Errorf("unknown scenario %q", scenario)
	}
	if err != nil {
		return nil, err
	}

	s.rep.DurableEvents = len(s.coord.Durable.Events())
	s.rep.FastEvents = len(s.coord.Fast.Events())
	return s.rep, nil
}

func (s *simulation) create(ctx context.Context) error {
	_, err := s.coord.Durable.Execute(ctx, []ledger.Address{s.seller}, func(tx *ledger.Txn) error {
		if err := outcry.CreateMint(tx, s.seller, s.mint, s.seller); err != nil {
			return err
		}
		if err := outcry.MintTo(tx, s.mint, s.seller, s.seller, 1); err != nil {
			return err
		}
		var err error
		s.auction, err = s.coord.Program.CreateAuction(tx, s.seller, s.mint, s.cfg.Params)
		return err
	})
	if err == nil {
		s.rep.Auction = s.auction.String()
	}
	return err
}

// maxPrice is the highest bid the bidding rounds will reach.
func (s *simulation) maxPrice() uint64 {
	n := uint64(s.cfg.Bidders * s.cfg.Rounds)
	return s.cfg.Params.ReservePrice + (n-1)*s.cfg.Params.MinBidIncrement
}

func (s *simulation) depositAll(ctx context.Context, amount uint64) error {
	for _, b := range s.bidders {
		_, err := s.coord.Durable.Execute(ctx, []ledger.Address{b}, func(tx *ledger.Txn) error {
			return s.coord.Program.Deposit(tx, s.auction, b, amount)
		})
		if err != nil {
			return fmt.Errorf("deposit %s: %w", b, err)
		}
	}
	return nil
}

func (s *simulation) runBidding(ctx context.Context, scenario string) error {
	deposit := s.maxPrice()
	if scenario == ScenarioForfeit {
		// The winning bid always exceeds the winner's collateral
		if deposit < 2 {
			return errors.New("forfeit needs a final price of at least 2")
		}
		deposit--
	}
	if err := s.depositAll(ctx, deposit); err != nil {
		return err
	}
	if _, err := s.coord.Durable.Execute(ctx, []ledger.Address{s.seller}, func(tx *ledger.Txn) error {
		return s.coord.Program.StartAuction(tx, s.auction, s.seller)
	}); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if s.cfg.Sessions {
		if err := s.openSessions(ctx); err != nil {
			return err
		}
	}
	if s.cfg.Delegate {
		if err := s.coord.Delegate(ctx, s.auction, s.seller); err != nil {
			return err
		}
	}
	if err := s.bid(ctx); err != nil {
		return err
	}
	s.check("bidding")

	if err := s.end(ctx); err != nil {
		return err
	}
	if s.cfg.Delegate {
		if err := s.coord.Undelegate(ctx, s.auction, s.seller); err != nil {
			return err
		}
	}
	s.check("ended")

	if err := s.crankSettlement(ctx, scenario == ScenarioForfeit); err != nil {
		return err
	}
	s.check("settled")

	if scenario == ScenarioAbandon {
		return s.forceClose(ctx)
	}
	if err := s.refundAll(ctx); err != nil {
		return err
	}
	return s.close(ctx)
}

func (s *simulation) runCancel(ctx context.Context) error {
	if err := s.depositAll(ctx, s.maxPrice()); err != nil {
		return err
	}
	if _, err := s.coord.Durable.Execute(ctx, []ledger.Address{s.seller}, func(tx *ledger.Txn) error {
		return s.coord.Program.CancelAuction(tx, s.auction, s.seller)
	}); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	s.check("cancelled")
	if err := s.refundAll(ctx); err != nil {
		return err
	}
	// Never started, so no grace period applies
	return s.forceClose(ctx)
}

func (s *simulation) openSessions(ctx context.Context) error {
	for _, b := range s.bidders {
		key, err := session.NewKey()
		if err != nil {
			return err
		}
		if err := s.coord.CreateSession(ctx, s.auction, b, key.Address()); err != nil {
			return fmt.Errorf("session for %s: %w", b, err)
		}
		s.keys = append(s.keys, key)
	}
	return nil
}

// bid runs the bidding rounds. Bidders raise by the minimum increment in
// turn; the last bid lands one second before the end to trigger anti-snipe.
func (s *simulation) bid(ctx context.Context) error {
	st, err := s.coord.Auction(s.auction)
	if err != nil {
		return err
	}
	scheduledEnd := st.EndTime

	amount := s.cfg.Params.ReservePrice
	total := s.cfg.Bidders * s.cfg.Rounds
	for i := 0; i < total; i++ {
		if i == total-1 {
			s.clock.Set(scheduledEnd - 1)
		}
		idx := i % s.cfg.Bidders
		if err := s.placeBid(ctx, idx, amount); err != nil {
			return fmt.Errorf("bid %d by %s: %w", i, s.bidders[idx], err)
		}
		s.rep.Bids++
		amount += s.cfg.Params.MinBidIncrement
	}

	st, err = s.coord.Auction(s.auction)
	if err != nil {
		return err
	}
	s.rep.Winner = st.HighestBidder.String()
	s.rep.FinalPrice = st.CurrentBid
	s.rep.EndTime = st.EndTime
	s.rep.Extended = st.EndTime > scheduledEnd
	return nil
}

func (s *simulation) placeBid(ctx context.Context, idx int, amount uint64) error {
	if !s.cfg.Sessions {
		_, err := s.coord.PlaceBid(ctx, s.auction, s.bidders[idx], amount)
		return err
	}
	env, err := session.SignBid(s.keys[idx], session.Bid{Auction: s.auction, Bidder: s.bidders[idx], Amount: amount})
	if err != nil {
		return err
	}
	_, err = s.coord.PlaceBidSigned(ctx, env)
	return err
}

// race runs fn once per cranker concurrently and counts the successes. Any
// failure other than the expected loser error aborts the race.
func (s *simulation) race(ctx context.Context, name string, fn func(ctx context.Context, cranker ledger.Address) error) (int32, error) {
	var wins atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range s.crank {
		c := c
		g.Go(func() error {
			err := fn(ctx, c)
			switch {
			case err == nil:
				wins.Add(1)
				return nil
			case errors.Is(err, core.ErrInvalidAuctionStatus), errors.Is(err, ledger.ErrBusy):
				log.Debug().Str("crank", name).Str("cranker", c.String()).Err(err).Msg("crank lost race")
				return nil
			default:
				return fmt.Errorf("%s by %s: %w", name, c, err)
			}
		})
	}
	err := g.Wait()
	log.Info().Str("crank", name).Int32("wins", wins.Load()).Int("crankers", len(s.crank)).Msg("crank race finished")
	return wins.Load(), err
}

func (s *simulation) end(ctx context.Context) error {
	st, err := s.coord.Auction(s.auction)
	if err != nil {
		return err
	}
	s.clock.Set(st.EndTime)
	s.rep.EndCranks, err = s.race(ctx, "end", func(ctx context.Context, c ledger.Address) error {
		return s.coord.End(ctx, s.auction, c)
	})
	return err
}

func (s *simulation) crankSettlement(ctx context.Context, forfeit bool) error {
	var err error
	s.rep.SettleCranks, err = s.race(ctx, "settle", func(ctx context.Context, c ledger.Address) error {
		_, err := s.coord.Durably(ctx, s.auction, []ledger.Address{c}, func(tx *ledger.Txn) error {
			var err error
			if forfeit {
				_, err = s.coord.Program.ForfeitAuction(tx, s.auction, c)
			} else {
				_, err = s.coord.Program.SettleAuction(tx, s.auction, outcry.SettleParams{
					Payer:    c,
					Treasury: s.cfg.Program.Treasury,
				})
			}
			return err
		})
		return err
	})
	return err
}

func (s *simulation) refundAll(ctx context.Context) error {
	payer := s.crank[0]
	for _, b := range s.bidders {
		_, err := s.coord.Durably(ctx, s.auction, []ledger.Address{payer}, func(tx *ledger.Txn) error {
			return s.coord.Program.ClaimRefundFor(tx, s.auction, payer, b)
		})
		switch {
		case err == nil:
			s.rep.Refunds++
		case errors.Is(err, core.ErrNothingToRefund):
		default:
			return fmt.Errorf("refund %s: %w", b, err)
		}
	}
	return nil
}

func (s *simulation) close(ctx context.Context) error {
	_, err := s.coord.Durably(ctx, s.auction, []ledger.Address{s.seller}, func(tx *ledger.Txn) error {
		var err error
		s.rep.Reclaimed, err = s.coord.Program.CloseAuction(tx, s.auction, s.seller)
		return err
	})
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	s.check("closed")
	return nil
}

func (s *simulation) forceClose(ctx context.Context) error {
	st, err := s.coord.Auction(s.auction)
	if err != nil {
		return err
	}
	deadline, err := core.GraceDeadline(*st, s.cfg.Program.GracePeriod)
	if err != nil {
		return err
	}
	if deadline > s.clock.Now() {
		s.clock.Set(deadline)
	}
	payer := s.crank[0]
	_, err = s.coord.Durably(ctx, s.auction, []ledger.Address{payer}, func(tx *ledger.Txn) error {
		var err error
		s.rep.Drained, err = s.coord.Program.ForceCloseAuction(tx, s.auction, payer)
		return err
	})
	if err != nil {
		return fmt.Errorf("force close: %w", err)
	}
	s.check("force closed")
	return nil
}

func (s *simulation) check(name string) {
	result, err := validation.ValidateLedger(s.coord.Durable.Snapshot(), s.coord.Fast.Snapshot(), s.cfg.Program.MaxExtension)
	if err != nil {
		log.Error().Err(err).Str("checkpoint", name).Msg("validation could not run")
		failed := &validation.AuctionValidationResult{Auction: s.auction.String()}
		failed.ValidationDetails = []string{err.Error()}
		result = &validation.LedgerValidationResult{Auctions: []*validation.AuctionValidationResult{failed}}
	}
	if !result.IsValid() {
		log.Warn().Str("checkpoint", name).Msg("invariant violated")
	}
	s.rep.Checkpoints = append(s.rep.Checkpoints, checkpoint{Name: name, Result: result})
}
