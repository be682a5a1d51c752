// Package scheduler closes auctions whose deadline has passed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceTimeout         = 3 * time.Second
	defaultSettleTimeout          = 10 * time.Second
	defaultInterval               = 5 * time.Second
	defaultLimitPerIteration uint = 50
	defaultSettleWorkers     uint = 4
)

// Processor periodically asks for due auctions and settles them with a pool of workers.
// Any number of processors may run against the same storage: the settlement service decides which
// one gets each auction.
type Processor struct {
	svs               Settler
	l                 *logrus.Entry
	interval          time.Duration
	limitPerIteration uint
	settleWorkers     uint
	settleTimeout     time.Duration
}

func New(svs Settler, l *logrus.Logger) *Processor {
	loggerEntry := l.WithFields(logrus.Fields{
		"component": "scheduler",
		"module":    "processor",
	})

	return &Processor{
		svs:               svs,
		l:                 loggerEntry,
		interval:          defaultInterval,
		limitPerIteration: defaultLimitPerIteration,
		settleWorkers:     defaultSettleWorkers,
		settleTimeout:     defaultSettleTimeout,
	}
}

// SetInterval sets the pause between two polls when there is nothing left to settle.
func (p *Processor) SetInterval(interval time.Duration) *Processor {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

// SetLimitPerIteration sets how many auctions one iteration takes.
func (p *Processor) SetLimitPerIteration(limit uint) *Processor {
	if limit > 0 {
		p.limitPerIteration = limit
	}
	return p
}

func (p *Processor) SetSettleWorkers(workers uint) *Processor {
	if workers > 0 {
		p.settleWorkers = workers
	}
	return p
}

func (p *Processor) SetSettleTimeout(timeout time.Duration) *Processor {
	if timeout > 0 {
		p.settleTimeout = timeout
	}
	return p
}

// Run settles due auctions until ctx is cancelled. A batch that was settled in full is followed by the
// next one right away, otherwise the processor waits for the next tick.
func (p *Processor) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"interval":          p.interval,
		"limitPerIteration": p.limitPerIteration,
		"settleWorkers":     p.settleWorkers,
	}).Info("Starting")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		settled, err := p.process(ctx)
		if err != nil && !errors.Is(err, ErrNoDueAuctions) && !errors.Is(err, context.Canceled) {
			p.l.WithError(err).Error("process error")
		}
		if err == nil && uint(settled) >= p.limitPerIteration { //nolint:gosec
			if ctx.Err() != nil {
				p.l.Info("Got stop signal, exiting...")
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		case <-ticker.C:
		}
	}
}

// process runs one iteration and returns how many auctions were closed by it.
func (p *Processor) process(ctx context.Context) (int, error) {
	auctions, err := p.produce(ctx)
	if err != nil {
		return 0, fmt.Errorf("process: %w", err)
	}

	var failed, settled int
	for _, result := range p.runWorkers(ctx, auctions) {
		l := p.l.WithFields(logrus.Fields{
			"worker":    result.WorkerID,
			"auctionID": result.AuctionID,
		})
		if result.Error != nil {
			failed++
			l.WithError(result.Error).Error("settle auction")
			continue
		}
		switch result.Outcome {
		case domain.SettlementSold, domain.SettlementUnsold:
			settled++
			l.WithField("outcome", result.Outcome).Info("Settled")
		default:
			l.WithField("outcome", result.Outcome).Debug("Nothing to do")
		}
	}

	if failed == len(auctions) {
		return 0, fmt.Errorf("process: all %d settlements failed", failed)
	}
	return settled, nil
}

type workerResult struct {
	WorkerID  uint
	AuctionID int64
	Outcome   domain.SettlementOutcomeType
	Error     error
}

// runWorkers fans the auctions out to the workers and collects every result.
func (p *Processor) runWorkers(ctx context.Context, auctions []domain.Auction) []workerResult {
	var taskCh = make(chan int64, len(auctions))
	for _, auction := range auctions {
		taskCh <- auction.ID
	}
	close(taskCh)

	workers := min(p.settleWorkers, uint(len(auctions)))
	wg := new(sync.WaitGroup)
	wg.Add(int(workers)) // nolint:gosec

	var resultCh = make(chan workerResult, len(auctions))
	for i := range workers {
		go p.worker(ctx, wg, i+1, taskCh, resultCh)
	}
	wg.Wait()
	close(resultCh)

	var results = make([]workerResult, 0, len(auctions))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}

func (p *Processor) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	workerID uint,
	taskCh <-chan int64,
	resultCh chan<- workerResult,
) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case auctionID, ok := <-taskCh:
			if !ok {
				return
			}
			resultCh <- p.processWorkerTask(ctx, workerID, auctionID)
		}
	}
}

func (p *Processor) processWorkerTask(ctx context.Context, workerID uint, auctionID int64) workerResult {
	settleCtx, cancel := context.WithTimeout(ctx, p.settleTimeout)
	defer cancel()

	result := workerResult{WorkerID: workerID, AuctionID: auctionID}
	settled, err := p.svs.Settle(settleCtx, auctionID)
	if err != nil {
		result.Error = err
		return result
	}
	result.Outcome = settled.Outcome
	return result
}

// produce returns due auctions or ErrNoDueAuctions.
func (p *Processor) produce(ctx context.Context) ([]domain.Auction, error) {
	produceCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	auctions, err := p.svs.DueAuctions(produceCtx, p.limitPerIteration)
	if err != nil {
		return nil, fmt.Errorf("produce: %w", err)
	}
	if len(auctions) == 0 {
		return nil, ErrNoDueAuctions
	}
	return auctions, nil
}

var _ Settler = (*service.SettlementService)(nil)
