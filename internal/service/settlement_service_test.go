package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/memrepo"
	"github.com/fsdevblog/zenauction/pkg/uow"
)

var errStorageDown = errors.New("connection reset by peer")

// failingStorage fails one chosen top-level unit of work before it starts.
type failingStorage struct {
	*memrepo.UnitOfWork
	mu     sync.Mutex
	seen   int
	failAt int
}

// failUnit makes the n-th unit of work from now fail.
func (f *failingStorage) failUnit(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt = f.seen + n
}

func (f *failingStorage) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	if _, nested := uow.TXFromContext(ctx, f.UnitOfWork); !nested {
		f.mu.Lock()
		f.seen++
		fail := f.seen == f.failAt
		f.mu.Unlock()
		if fail {
			return errStorageDown
		}
	}
	return f.UnitOfWork.Do(ctx, fn)
}

func (s *EngineTestSuite) TestOutbidAuctionSettlesToHighestBidder() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)

	xBid := s.mustBid(auction.ID, bidderX, 15)

	_, err := s.bid(auction.ID, bidderY, 15)
	var tooLow *domain.BidTooLowError
	s.Require().ErrorAs(err, &tooLow)
	s.Equal(int64(16), tooLow.Minimum)

	yBid := s.mustBid(auction.ID, bidderY, 20)

	// the outbid reservation stays in place until X withdraws or the auction closes
	s.Equal(&UserBalance{UserID: bidderX, Available: 85, Reserved: 15}, s.balance(bidderX))
	s.Equal(&UserBalance{UserID: bidderY, Available: 80, Reserved: 20}, s.balance(bidderY))
	s.Equal(domain.BidStatePending, s.bidState(auction.ID, xBid.ID))

	s.expire(auction)
	result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementSold, result.Outcome)
	s.Require().NotNil(result.WinnerID)
	s.Equal(bidderY, *result.WinnerID)
	s.Equal(int64(20), result.Amount)

	s.Equal(int64(20), s.balance(sellerID).Available)
	s.Equal(&UserBalance{UserID: bidderX, Available: 100}, s.balance(bidderX))
	s.Equal(&UserBalance{UserID: bidderY, Available: 80}, s.balance(bidderY))
	s.requireLedgerConsistent(sellerID, bidderX, bidderY)

	s.Equal(domain.BidStateLost, s.bidState(auction.ID, xBid.ID))
	s.Equal(domain.BidStateWon, s.bidState(auction.ID, yBid.ID))

	card, err := s.services.Cards.Get(s.ctx(), auction.CardInstanceID)
	s.Require().NoError(err)
	s.Equal(bidderY, card.OwnerID)
	s.Equal(domain.CardStateOwned, card.State)

	closed := s.auction(auction.ID)
	s.Equal(domain.AuctionStateClosed, closed.State)
	s.NotNil(closed.ClosedAt)

	s.ElementsMatch(
		[]domain.NotificationType{domain.NotificationBidAccepted, domain.NotificationBidOutbid, domain.NotificationBidLost},
		s.inboxTypes(bidderX),
	)
	s.ElementsMatch(
		[]domain.NotificationType{domain.NotificationBidAccepted, domain.NotificationAuctionClosedWon},
		s.inboxTypes(bidderY),
	)
	s.Equal([]domain.NotificationType{domain.NotificationAuctionClosedWon}, s.inboxTypes(sellerID))
}

func (s *EngineTestSuite) TestAuctionWithoutBidsClosesUnsold() {
	auction := s.open(sellerID, 10)

	due, err := s.services.Settlement.DueAuctions(s.ctx(), 10)
	s.Require().NoError(err)
	s.Empty(due)

	s.expire(auction)
	due, err = s.services.Settlement.DueAuctions(s.ctx(), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(auction.ID, due[0].ID)

	result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementUnsold, result.Outcome)
	s.Nil(result.WinnerID)

	card, err := s.services.Cards.Get(s.ctx(), auction.CardInstanceID)
	s.Require().NoError(err)
	s.Equal(sellerID, card.OwnerID)
	s.Equal(domain.CardStateOwned, card.State)
	s.Equal(domain.AuctionStateClosed, s.auction(auction.ID).State)

	txs, err := s.services.Ledger.Transactions(s.ctx(), sellerID)
	s.Require().NoError(err)
	s.Empty(txs)
	s.Equal([]domain.NotificationType{domain.NotificationAuctionClosedUnsold}, s.inboxTypes(sellerID))

	// the card can be listed again
	_, err = s.services.Auctions.Open(s.ctx(), OpenAuctionArgs{
		SellerID:       sellerID,
		CardInstanceID: auction.CardInstanceID,
		StartPrice:     5,
		Duration:       time.Hour,
	})
	s.Require().NoError(err)
}

func (s *EngineTestSuite) TestSettleIsIdempotent() {
	s.fund(bidderX, 50)
	auction := s.open(sellerID, 10)
	s.mustBid(auction.ID, bidderX, 30)
	s.expire(auction)

	first, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementSold, first.Outcome)

	for range 3 {
		again, settleErr := s.services.Settlement.Settle(s.ctx(), auction.ID)
		s.Require().NoError(settleErr)
		s.Equal(domain.SettlementAlreadyFinal, again.Outcome)
	}

	s.Equal(int64(30), s.balance(sellerID).Available)
	s.Equal(int64(20), s.balance(bidderX).Available)
	s.requireLedgerConsistent(sellerID, bidderX)
	s.Len(s.inboxTypes(sellerID), 1)
}

func (s *EngineTestSuite) TestSettleSkipsAuctionsNotDue() {
	auction := s.open(sellerID, 10)

	result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementSkipped, result.Outcome)
	s.Equal(domain.AuctionStateActive, s.auction(auction.ID).State)

	_, err = s.services.Settlement.Settle(s.ctx(), auction.ID+1000)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *EngineTestSuite) TestInterruptedSettlementIsFinishedAfterLease() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)
	s.mustBid(auction.ID, bidderX, 30)
	s.mustBid(auction.ID, bidderY, 40)
	s.expire(auction)

	// a worker claims the auction, pays out and dies before handing the card over
	claimed, err := s.services.Settlement.claim(s.ctx(), auction.ID)
	s.Require().NoError(err)
	_, err = s.services.Settlement.settleFunds(s.ctx(), claimed)
	s.Require().NoError(err)

	s.Equal(domain.AuctionStateClosing, s.auction(auction.ID).State)
	s.Equal(int64(40), s.balance(sellerID).Available)
	s.Equal(int64(100), s.balance(bidderX).Available)
	card, err := s.services.Cards.Get(s.ctx(), auction.CardInstanceID)
	s.Require().NoError(err)
	s.Equal(domain.CardStateOnAuction, card.State)

	// while the lease holds nobody else touches it
	result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementSkipped, result.Outcome)
	due, err := s.services.Settlement.DueAuctions(s.ctx(), 10)
	s.Require().NoError(err)
	s.Empty(due)

	s.clock.Advance(s.lease + time.Second)
	due, err = s.services.Settlement.DueAuctions(s.ctx(), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)

	result, err = s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementSold, result.Outcome)
	s.Equal(bidderY, *result.WinnerID)

	// paid exactly once
	s.Equal(int64(40), s.balance(sellerID).Available)
	s.Equal(int64(60), s.balance(bidderY).Available)
	s.requireLedgerConsistent(sellerID, bidderX, bidderY)

	card, err = s.services.Cards.Get(s.ctx(), auction.CardInstanceID)
	s.Require().NoError(err)
	s.Equal(bidderY, card.OwnerID)
	s.Equal(domain.CardStateOwned, card.State)
}

func (s *EngineTestSuite) TestFailedSettlementIsRetriedOnNextTick() {
	cases := []struct {
		name        string
		failingUnit int // claim is 1
	}{
		{name: "settling funds", failingUnit: 2},
		{name: "finalizing", failingUnit: 3},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			s.SetupTest()
			storage := &failingStorage{UnitOfWork: s.storage}
			s.services = s.newServicesOn(storage, nil)

			s.fund(bidderX, 100)
			s.fund(bidderY, 100)
			auction := s.open(sellerID, 10)
			s.mustBid(auction.ID, bidderX, 30)
			s.mustBid(auction.ID, bidderY, 40)
			s.expire(auction)

			storage.failUnit(t.failingUnit)
			_, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
			s.Require().ErrorIs(err, errStorageDown)
			s.Equal(domain.AuctionStateClosing, s.auction(auction.ID).State)

			// the clock does not move: the next tick picks it up without waiting for the lease
			due, err := s.services.Settlement.DueAuctions(s.ctx(), 10)
			s.Require().NoError(err)
			s.Require().Len(due, 1)

			result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
			s.Require().NoError(err)
			s.Equal(domain.SettlementSold, result.Outcome)
			s.Equal(bidderY, *result.WinnerID)

			s.Equal(int64(40), s.balance(sellerID).Available)
			s.Equal(int64(60), s.balance(bidderY).Available)
			s.Equal(int64(100), s.balance(bidderX).Available)
			s.requireLedgerConsistent(sellerID, bidderX, bidderY)
			s.Equal(domain.AuctionStateClosed, s.auction(auction.ID).State)
		})
	}
}

func (s *EngineTestSuite) TestWorkerThatLostTheLeaseCannotWrite() {
	s.fund(bidderX, 100)
	auction := s.open(sellerID, 10)
	s.mustBid(auction.ID, bidderX, 30)
	s.expire(auction)

	stale, err := s.services.Settlement.claim(s.ctx(), auction.ID)
	s.Require().NoError(err)

	s.clock.Advance(s.lease + time.Second)
	result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementSold, result.Outcome)

	_, err = s.services.Settlement.settleFunds(s.ctx(), stale)
	s.Require().ErrorIs(err, domain.ErrVersionConflict)
	s.Equal(int64(30), s.balance(sellerID).Available)
}

func (s *EngineTestSuite) TestConcurrentSettlementPaysOnce() {
	s.fund(bidderX, 100)
	auction := s.open(sellerID, 10)
	s.mustBid(auction.ID, bidderX, 30)
	s.expire(auction)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[domain.SettlementOutcomeType]int)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcomes["error"]++
				return
			}
			outcomes[result.Outcome]++
		}()
	}
	wg.Wait()

	s.Equal(1, outcomes[domain.SettlementSold])
	s.Equal(0, outcomes["error"])
	s.Equal(workers-1, outcomes[domain.SettlementSkipped]+outcomes[domain.SettlementAlreadyFinal])
	s.Equal(int64(30), s.balance(sellerID).Available)
	s.requireLedgerConsistent(sellerID, bidderX)
}

func (s *EngineTestSuite) TestClosingNotices() {
	auction := &domain.Auction{ID: 9, SellerID: sellerID}
	winner := bidderY
	result := &SettlementResult{AuctionID: 9, Outcome: domain.SettlementSold, WinnerID: &winner, Amount: 40}
	bids := []domain.Bid{
		{ID: 3, BidderID: bidderY, Amount: 40, State: domain.BidStateWon},
		{ID: 2, BidderID: bidderX, Amount: 30, State: domain.BidStateLost},
		{ID: 1, BidderID: bidderZ, Amount: 20, State: domain.BidStateWithdrawn},
		{ID: 4, BidderID: bidderX, Amount: 25, State: domain.BidStateLost},
	}

	notices := closingNotices(auction, result, bids)
	s.Require().Len(notices, 3)
	recipients := map[int64]domain.NotificationType{}
	for _, n := range notices {
		recipients[n.UserID] = n.Type
		s.Equal(auction.ID, *n.AuctionID)
	}
	s.Equal(domain.NotificationAuctionClosedWon, recipients[sellerID])
	s.Equal(domain.NotificationAuctionClosedWon, recipients[bidderY])
	s.Equal(domain.NotificationBidLost, recipients[bidderX])

	unsold := closingNotices(auction, &SettlementResult{Outcome: domain.SettlementUnsold}, nil)
	s.Require().Len(unsold, 1)
	s.Equal(domain.NotificationAuctionClosedUnsold, unsold[0].Type)
}
