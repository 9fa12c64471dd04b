package core

import (
	"github.com/shopspring/decimal"
)

const (
	// BasisPoints is the denominator for royalty and fee rates.
	BasisPoints = 10000
	// PercentDenominator is the denominator for creator shares.
	PercentDenominator = 100
)

var (
	bpsDecimal     = decimal.NewFromInt(BasisPoints)
	percentDecimal = decimal.NewFromInt(PercentDenominator)
	maxUint64      = decimal.NewFromUint64(^uint64(0))
)

// MulDiv returns floor(a * b / d). The intermediate product is computed with
// arbitrary precision so it never overflows; the result must fit a uint64.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrArithmeticOverflow
	}
	product := decimal.NewFromUint64(a).Mul(decimal.NewFromUint64(b))
	q, _ := product.QuoRem(decimal.NewFromUint64(d), 0)
	if q.GreaterThan(maxUint64) {
		return 0, ErrArithmeticOverflow
	}
	return q.BigInt().Uint64(), nil
}

// TotalRoyalty returns bid * royaltyBps / 10000, rounded down.
func TotalRoyalty(bid uint64, royaltyBps uint16) (uint64, error) {
	if royaltyBps > BasisPoints {
		return 0, ErrInvalidMetadata
	}
	return MulDiv(bid, uint64(royaltyBps), BasisPoints)
}

// SplitProceeds divides a winning bid between creators, the protocol treasury
// and the seller.
//
// Each creator with a non-zero share receives total * share / 100 where total
// is bid * royaltyBps / 10000. The protocol fee, bid * feeBps / 10000, comes
// out of what is left after royalties. The seller receives the remainder, so
// rounding dust always stays with the seller.
func SplitProceeds(bid uint64, royaltyBps uint16, shares []Share, feeBps uint16) (Proceeds, error) {
	if feeBps > BasisPoints {
		return Proceeds{}, ErrInvalidConfig
	}
	total, err := TotalRoyalty(bid, royaltyBps)
	if err != nil {
		return Proceeds{}, err
	}

	p := Proceeds{Bid: bid, TotalRoyalty: total}
	totalDecimal := decimal.NewFromUint64(total)
	var percentSum uint64
	for _, s := range shares {
		if s.Percent == 0 {
			continue
		}
		percentSum += uint64(s.Percent)
		if percentSum > PercentDenominator {
			return Proceeds{}, ErrInvalidMetadata
		}
		amount, _ := totalDecimal.Mul(decimal.NewFromInt(int64(s.Percent))).QuoRem(percentDecimal, 0)
		payout := amount.BigInt().Uint64()
		p.Payouts = append(p.Payouts, Payout{Recipient: s.Recipient, Amount: payout})
		if p.RoyaltiesPaid, err = CheckedAdd(p.RoyaltiesPaid, payout); err != nil {
			return Proceeds{}, err
		}
	}

	remaining, err := CheckedSub(bid, p.RoyaltiesPaid)
	if err != nil {
		return Proceeds{}, err
	}
	if feeBps > 0 {
		fee, _ := decimal.NewFromUint64(bid).Mul(decimal.NewFromInt(int64(feeBps))).QuoRem(bpsDecimal, 0)
		p.ProtocolFee = fee.BigInt().Uint64()
	}
	if p.SellerReceives, err = CheckedSub(remaining, p.ProtocolFee); err != nil {
		return Proceeds{}, err
	}
	return p, nil
}
