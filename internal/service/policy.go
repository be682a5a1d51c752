package service

import (
	"fmt"
	"math"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultMinIncrement = 1
	defaultMinDuration  = time.Hour
	defaultMaxDuration  = 7 * 24 * time.Hour
)

var (
	hundred   = decimal.NewFromInt(100) //nolint:mnd
	maxInt64D = decimal.NewFromInt(math.MaxInt64)
)

// BidPolicy configurable auction rules. The minimum step is the larger of MinIncrement and
// MinIncrementPercent of the amount being beaten, rounded up to a whole Zen.
type BidPolicy struct {
	MinIncrement        int64
	MinIncrementPercent decimal.Decimal
	MinDuration         time.Duration
	MaxDuration         time.Duration
}

func DefaultBidPolicy() BidPolicy {
	return BidPolicy{
		MinIncrement:        defaultMinIncrement,
		MinIncrementPercent: decimal.Zero,
		MinDuration:         defaultMinDuration,
		MaxDuration:         defaultMaxDuration,
	}
}

// MinimumNextBid returns the smallest amount that beats base. The result saturates at math.MaxInt64,
// so callers still have to check that the amount is above base.
func (p BidPolicy) MinimumNextBid(base int64) int64 {
	step := decimal.NewFromInt(max(p.MinIncrement, 1))
	if p.MinIncrementPercent.IsPositive() {
		step = decimal.Max(step, decimal.NewFromInt(base).Mul(p.MinIncrementPercent).Div(hundred).Ceil())
	}
	next := decimal.NewFromInt(base).Add(step)
	if next.GreaterThan(maxInt64D) {
		return math.MaxInt64
	}
	return next.IntPart()
}

// ValidateDuration checks the auction length against the configured bounds.
func (p BidPolicy) ValidateDuration(d time.Duration) error {
	if d < p.MinDuration || (p.MaxDuration > 0 && d > p.MaxDuration) {
		return fmt.Errorf(
			"%w: %s is outside [%s, %s]",
			domain.ErrInvalidDuration, d, p.MinDuration, p.MaxDuration,
		)
	}
	return nil
}
