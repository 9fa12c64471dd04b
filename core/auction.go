package core

// DefaultMaxExtension is the fixed ceiling on total anti-snipe extension.
const DefaultMaxExtension int64 = 3600

// ApplyBid validates amount against s at time now and, if accepted, updates
// s in place. It is the single bidding algorithm shared by every way a bid
// reaches an auction.
//
// Processing flow:
//  1. Reject bids at or after the end time
//  2. Enforce the reserve (first bid) or current bid + increment
//  3. Record the new highest bid and increment the bid count
//  4. Apply the anti-snipe extension when inside the extension window
//
// Deposit sufficiency is not checked here; it is enforced at settlement.
func ApplyBid(s *BidState, amount uint64, now int64, maxExtension int64) (BidResult, error) {
	if now >= s.EndTime {
		return BidResult{}, ErrAuctionEnded
	}
	if err := EnforceMinimumBid(*s, amount); err != nil {
		return BidResult{}, err
	}

	count := s.BidCount + 1
	if count == 0 {
		return BidResult{}, ErrArithmeticOverflow
	}

	newEnd, extended, err := ExtendEndTime(*s, now, maxExtension)
	if err != nil {
		return BidResult{}, err
	}

	result := BidResult{PreviousBid: s.CurrentBid, NewEndTime: newEnd, Extended: extended}
	s.CurrentBid = amount
	s.BidCount = count
	s.EndTime = newEnd
	return result, nil
}

// ExtendEndTime computes the end time after a bid at now. If the bid arrives
// less than ExtensionWindow seconds before EndTime, the end moves out by
// ExtensionSeconds, capped at
//
//	StartTime + DurationSeconds + min(DurationSeconds, maxExtension)
//
// The result never precedes the current EndTime.
func ExtendEndTime(s BidState, now int64, maxExtension int64) (int64, bool, error) {
	if now < 0 || s.EndTime < 0 {
		return 0, false, ErrArithmeticOverflow
	}
	remaining := s.EndTime - now
	if remaining >= int64(s.ExtensionWindow) {
		return s.EndTime, false, nil
	}

	duration, err := secondsToInt64(s.DurationSeconds)
	if err != nil {
		return 0, false, err
	}
	capExtension := min(duration, maxExtension)
	maxEnd, err := CheckedAddInt64(s.StartTime, duration)
	if err != nil {
		return 0, false, err
	}
	if maxEnd, err = CheckedAddInt64(maxEnd, capExtension); err != nil {
		return 0, false, err
	}
	proposed, err := CheckedAddInt64(s.EndTime, int64(s.ExtensionSeconds))
	if err != nil {
		return 0, false, err
	}

	newEnd := max(min(proposed, maxEnd), s.EndTime)
	return newEnd, newEnd > s.EndTime, nil
}
