package core

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func activeState(reserve, increment, duration uint64, start int64) BidState {
	return BidState{
		ReservePrice:     reserve,
		MinBidIncrement:  increment,
		DurationSeconds:  duration,
		StartTime:        start,
		EndTime:          start + int64(duration),
		ExtensionSeconds: 300,
		ExtensionWindow:  300,
	}
}

func TestApplyBid_ReserveThenIncrement(t *testing.T) {
	// reserve=100, duration=300, increment=10
	s := activeState(100, 10, 300, 1000)

	res, err := ApplyBid(&s, 100, 1010, DefaultMaxExtension)
	assert.NoError(t, err)
	check.Equal(t, uint64(0), res.PreviousBid)
	check.Equal(t, uint64(100), s.CurrentBid)
	check.Equal(t, uint32(1), s.BidCount)

	_, err = ApplyBid(&s, 105, 1020, DefaultMaxExtension)
	check.True(t, errors.Is(err, ErrBidTooLow))
	check.Equal(t, uint64(100), s.CurrentBid)
	check.Equal(t, uint32(1), s.BidCount)

	res, err = ApplyBid(&s, 110, 1030, DefaultMaxExtension)
	assert.NoError(t, err)
	check.Equal(t, uint64(100), res.PreviousBid)
	check.Equal(t, uint64(110), s.CurrentBid)
	check.Equal(t, uint32(2), s.BidCount)
}

func TestApplyBid_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		state  BidState
		amount uint64
		now    int64
		want   error
	}{
		{
			name:   "below reserve",
			state:  activeState(100, 10, 300, 1000),
			amount: 99,
			now:    1001,
			want:   ErrBelowReserve,
		},
		{
			name:   "at end time",
			state:  activeState(100, 10, 300, 1000),
			amount: 500,
			now:    1300,
			want:   ErrAuctionEnded,
		},
		{
			name: "increment overflows",
			state: BidState{
				ReservePrice: 1, MinBidIncrement: 10, CurrentBid: ^uint64(0) - 5,
				BidCount: 3, DurationSeconds: 300, StartTime: 1000, EndTime: 1300,
			},
			amount: ^uint64(0),
			now:    1001,
			want:   ErrArithmeticOverflow,
		},
		{
			name: "equal to current bid",
			state: BidState{
				ReservePrice: 1, MinBidIncrement: 1, CurrentBid: 50,
				BidCount: 1, DurationSeconds: 300, StartTime: 1000, EndTime: 1300,
			},
			amount: 50,
			now:    1001,
			want:   ErrBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.state
			_, err := ApplyBid(&tt.state, tt.amount, tt.now, DefaultMaxExtension)
			check.True(t, errors.Is(err, tt.want))
			check.Equal(t, before, tt.state)
		})
	}
}

func TestApplyBid_ExtensionCap(t *testing.T) {
	// duration=3600, window=300, extension=300, cap=3600
	s := activeState(1, 1, 3600, 0)
	maxEnd := s.StartTime + 3600 + 3600

	amount := uint64(1)
	lastEnd := s.EndTime
	for i := 0; i < 100; i++ {
		now := s.EndTime - 1
		res, err := ApplyBid(&s, amount, now, DefaultMaxExtension)
		assert.NoError(t, err)
		check.True(t, s.EndTime >= lastEnd)
		check.True(t, s.EndTime <= maxEnd)
		check.Equal(t, s.EndTime, res.NewEndTime)
		lastEnd = s.EndTime
		amount++
	}
	check.Equal(t, maxEnd, s.EndTime)
}

func TestExtendEndTime(t *testing.T) {
	tests := []struct {
		name         string
		state        BidState
		now          int64
		maxExtension int64
		wantEnd      int64
		wantExtended bool
	}{
		{
			name:    "outside window",
			state:   activeState(1, 1, 3600, 0),
			now:     100,
			wantEnd: 3600,
		},
		{
			name:         "inside window",
			state:        activeState(1, 1, 3600, 0),
			now:          3500,
			wantEnd:      3900,
			wantExtended: true,
		},
		{
			name:         "exactly at window edge does not extend",
			state:        activeState(1, 1, 3600, 0),
			now:          3300,
			wantEnd:      3600,
			wantExtended: false,
		},
		{
			name:         "short auction capped by its own duration",
			state:        activeState(1, 1, 60, 0),
			now:          59,
			wantEnd:      120,
			wantExtended: true,
		},
		{
			name:         "lower ceiling",
			state:        activeState(1, 1, 3600, 0),
			now:          3599,
			maxExtension: 100,
			wantEnd:      3700,
			wantExtended: true,
		},
		{
			name: "never moves backwards",
			state: BidState{
				DurationSeconds: 3600, StartTime: 0, EndTime: 8000,
				ExtensionSeconds: 300, ExtensionWindow: 300,
			},
			now:     7900,
			wantEnd: 8000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxExt := tt.maxExtension
			if maxExt == 0 {
				maxExt = DefaultMaxExtension
			}
			end, extended, err := ExtendEndTime(tt.state, tt.now, maxExt)
			assert.NoError(t, err)
			check.Equal(t, tt.wantEnd, end)
			check.Equal(t, tt.wantExtended, extended)
		})
	}
}

func TestApplyBid_CurrentBidMonotonic(t *testing.T) {
	s := activeState(10, 5, 600, 0)
	amounts := []uint64{10, 12, 15, 14, 40, 44, 45, 100}
	last := uint64(0)
	for i, a := range amounts {
		_, _ = ApplyBid(&s, a, int64(i), DefaultMaxExtension)
		check.True(t, s.CurrentBid >= last)
		check.Equal(t, s.CurrentBid > 0, s.BidCount > 0)
		last = s.CurrentBid
	}
	check.Equal(t, uint64(100), s.CurrentBid)
}
