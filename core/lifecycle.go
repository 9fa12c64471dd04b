package core

import (
	"fmt"

	"github.com/cloudx-io/outcry/outcryapi"
)

// Trigger names an operation that moves an auction between lifecycle states.
type Trigger string

const (
	TriggerStart      Trigger = "start"
	TriggerEnd        Trigger = "end"
	TriggerCancel     Trigger = "cancel"
	TriggerSettle     Trigger = "settle"
	TriggerForfeit    Trigger = "forfeit"
	TriggerClose      Trigger = "close"
	TriggerForceClose Trigger = "force_close"
)

// transitions maps each trigger to the states it may fire from and the
// state it leads to. Close and force_close lead to deletion of the record,
// represented here by keeping the source status.
var transitions = map[Trigger]struct {
	from []outcryapi.AuctionStatus
	to   outcryapi.AuctionStatus
}{
	TriggerStart:      {from: []outcryapi.AuctionStatus{outcryapi.StatusCreated}, to: outcryapi.StatusActive},
	TriggerEnd:        {from: []outcryapi.AuctionStatus{outcryapi.StatusActive}, to: outcryapi.StatusEnded},
	TriggerCancel:     {from: []outcryapi.AuctionStatus{outcryapi.StatusCreated, outcryapi.StatusEnded}, to: outcryapi.StatusCancelled},
	TriggerSettle:     {from: []outcryapi.AuctionStatus{outcryapi.StatusEnded}, to: outcryapi.StatusSettled},
	TriggerForfeit:    {from: []outcryapi.AuctionStatus{outcryapi.StatusEnded}, to: outcryapi.StatusSettled},
	TriggerClose:      {from: []outcryapi.AuctionStatus{outcryapi.StatusSettled, outcryapi.StatusCancelled}},
	TriggerForceClose: {from: []outcryapi.AuctionStatus{outcryapi.StatusSettled, outcryapi.StatusCancelled}},
}

// Transition returns the status an auction in state from moves to when
// trigger fires. Close triggers return from unchanged.
func Transition(from outcryapi.AuctionStatus, trigger Trigger) (outcryapi.AuctionStatus, error) {
	t, ok := transitions[trigger]
	if !ok {
		return from, fmt.Errorf("unknown trigger %q: %w", trigger, ErrInvalidAuctionStatus)
	}
	for _, s := range t.from {
		if s == from {
			if trigger == TriggerClose || trigger == TriggerForceClose {
				return from, nil
			}
			return t.to, nil
		}
	}
	return from, fmt.Errorf("%s from %s: %w", trigger, from, ErrInvalidAuctionStatus)
}

// CheckCancel applies the cancel guard: Created, or Ended without bids.
func CheckCancel(a outcryapi.AuctionState) error {
	if _, err := Transition(a.Status, TriggerCancel); err != nil {
		return err
	}
	if a.HasBids() {
		return ErrCannotCancelWithBids
	}
	return nil
}

// CheckCrank verifies the shared preconditions of settle and forfeit:
// status Ended and at least one bid.
func CheckCrank(a outcryapi.AuctionState, trigger Trigger) error {
	if _, err := Transition(a.Status, trigger); err != nil {
		return err
	}
	if !a.HasBids() {
		return ErrNoBidsToSettle
	}
	return nil
}

// RefundOpen reports whether deposits may be refunded in status s.
func RefundOpen(s outcryapi.AuctionStatus) bool {
	return s == outcryapi.StatusSettled || s == outcryapi.StatusCancelled
}

// DepositOpen reports whether deposits are accepted in status s.
func DepositOpen(s outcryapi.AuctionStatus) bool {
	return s == outcryapi.StatusCreated || s == outcryapi.StatusActive
}

// GraceDeadline returns the earliest time force_close may run.
//
//   - Settled: end_time + grace
//   - Cancelled after starting: start_time + grace
//   - Cancelled before starting: immediately (0)
func GraceDeadline(a outcryapi.AuctionState, grace int64) (int64, error) {
	switch a.Status {
	case outcryapi.StatusSettled:
		return CheckedAddInt64(a.EndTime, grace)
	case outcryapi.StatusCancelled:
		if a.StartTime == 0 {
			return 0, nil
		}
		return CheckedAddInt64(a.StartTime, grace)
	default:
		return 0, fmt.Errorf("force close from %s: %w", a.Status, ErrInvalidAuctionStatus)
	}
}

// BidStateOf extracts the bidding fields of an auction record.
func BidStateOf(a outcryapi.AuctionState) BidState {
	return BidState{
		ReservePrice:     a.ReservePrice,
		MinBidIncrement:  a.MinBidIncrement,
		CurrentBid:       a.CurrentBid,
		BidCount:         a.BidCount,
		DurationSeconds:  a.DurationSeconds,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		ExtensionSeconds: a.ExtensionSeconds,
		ExtensionWindow:  a.ExtensionWindow,
	}
}

// Apply copies the mutable bidding fields back onto an auction record.
func (s BidState) Apply(a *outcryapi.AuctionState) {
	a.CurrentBid = s.CurrentBid
	a.BidCount = s.BidCount
	a.EndTime = s.EndTime
}
