package core

// MinimumBid returns the smallest amount the next bid may carry: the reserve
// price for the first bid, otherwise the current bid plus the increment.
func MinimumBid(s BidState) (uint64, error) {
	if s.BidCount == 0 {
		return s.ReservePrice, nil
	}
	return CheckedAdd(s.CurrentBid, s.MinBidIncrement)
}

// EnforceMinimumBid rejects amount if it is below the reserve (first bid) or
// below the current bid plus the minimum increment.
func EnforceMinimumBid(s BidState, amount uint64) error {
	floor, err := MinimumBid(s)
	if err != nil {
		return err
	}
	if amount >= floor {
		return nil
	}
	if s.BidCount == 0 {
		return ErrBelowReserve
	}
	return ErrBidTooLow
}

// CheckedAdd returns a+b or ErrArithmeticOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrArithmeticOverflow if b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

// CheckedAddInt64 returns a+b or ErrArithmeticOverflow.
func CheckedAddInt64(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func secondsToInt64(s uint64) (int64, error) {
	if s > 1<<63-1 {
		return 0, ErrArithmeticOverflow
	}
	return int64(s), nil
}
