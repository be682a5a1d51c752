package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
)

const conflictRetryPause = 25 * time.Millisecond

// jitter spreads value by a random percentage within [1-minPercent, 1+maxPercent].
// E.g. minPercent=0.15, maxPercent=0.15 gives [0.85*value, 1.15*value].
//
// minPercent and maxPercent must be >= 0 (0.1 = 10%). Otherwise both fall back to 0.15.
func jitter(value, minPercent, maxPercent float64) float64 {
	if minPercent < 0 || maxPercent < 0 {
		minPercent = 0.15
		maxPercent = 0.15
	}
	factor := 1 - minPercent + rand.Float64()*(minPercent+maxPercent) // nolint:gosec
	return value * factor
}

// retryOnConflict runs fn and, if it lost an optimistic lock race, runs it exactly once more after a
// short jittered pause. Losing the second time is reported as domain.ErrConcurrentUpdate.
// fn must be a whole unit of work so that a failed attempt leaves nothing behind.
func retryOnConflict(ctx context.Context, fn func() error) error {
	err := fn()
	if !errors.Is(err, domain.ErrVersionConflict) {
		return err
	}

	pause := time.Duration(jitter(float64(conflictRetryPause), 0.5, 0.5)) //nolint:mnd
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case <-time.After(pause):
	}

	err = fn()
	if errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, err.Error())
	}
	return err
}
