package service

import (
	"errors"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
)

func (s *EngineTestSuite) TestPlaceBidValidation() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 5)
	auction := s.open(sellerID, 10)

	cases := []struct {
		name    string
		bidder  int64
		amount  int64
		wantErr error
	}{
		{name: "zero amount", bidder: bidderX, amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "seller bids", bidder: sellerID, amount: 50, wantErr: domain.ErrSelfBid},
		{name: "not above start price", bidder: bidderX, amount: 10, wantErr: domain.ErrBidTooLow},
		{name: "more than the balance", bidder: bidderY, amount: 11, wantErr: domain.ErrInsufficientFunds},
		{name: "no account at all", bidder: bidderZ, amount: 11, wantErr: domain.ErrInsufficientFunds},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			_, err := s.bid(auction.ID, t.bidder, t.amount)
			s.Require().ErrorIs(err, t.wantErr)
		})
	}

	_, err := s.bid(auction.ID+1000, bidderX, 50)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)

	// rejected bids leave nothing behind
	bids, err := s.services.Bids.BidsForAuction(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Empty(bids)
	s.Equal(&UserBalance{UserID: bidderY, Available: 5}, s.balance(bidderY))
	s.Nil(s.auction(auction.ID).CurrentHighestBidID)
}

func (s *EngineTestSuite) TestPlaceBidMovesLeader() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)
	version := auction.Version

	xBid := s.mustBid(auction.ID, bidderX, 11)
	current := s.auction(auction.ID)
	s.Equal(xBid.ID, *current.CurrentHighestBidID)
	s.Equal(int64(11), current.HighestAmount)
	s.Greater(current.Version, version)

	yBid := s.mustBid(auction.ID, bidderY, 12)
	current = s.auction(auction.ID)
	s.Equal(yBid.ID, *current.CurrentHighestBidID)
	s.Equal(int64(12), current.HighestAmount)
}

func (s *EngineTestSuite) TestOneOfEqualSimultaneousBidsIsRejected() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	s.fund(bidderZ, 100)
	auction := s.open(sellerID, 10)
	s.mustBid(auction.ID, bidderZ, 40)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, bidder := range []int64{bidderX, bidderY} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.bid(auction.ID, bidder, 50)
		}()
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		s.ErrorIs(err, domain.ErrBidTooLow)
	}
	s.Equal(1, accepted)
	s.Equal(int64(50), s.auction(auction.ID).HighestAmount)
	s.Equal(int64(50), s.balance(bidderX).Reserved+s.balance(bidderY).Reserved)
	s.Equal(int64(40), s.balance(bidderZ).Reserved)
	s.requireLedgerConsistent(bidderX, bidderY, bidderZ)
}

func (s *EngineTestSuite) TestRandomConcurrentBidsKeepLeaderStrictlyIncreasing() {
	faker := gofakeit.New(42)
	bidders := make([]int64, 12)
	for i := range bidders {
		bidders[i] = int64(100 + i)
		s.fund(bidders[i], 1000)
	}
	auction := s.open(sellerID, 10)

	var wg sync.WaitGroup
	for round := range 5 {
		for _, bidder := range bidders {
			amount := int64(faker.Number(11, 400)) + int64(round)*50
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.bid(auction.ID, bidder, amount)
				if err != nil {
					s.Assert().True(
						isAny(err, domain.ErrBidTooLow, domain.ErrDuplicateBid, domain.ErrConcurrentUpdate),
						"unexpected error %v", err,
					)
				}
			}()
		}
		wg.Wait()
	}

	bids, err := s.services.Bids.BidsForAuction(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(bids)

	// in acceptance order every bid beats the one before it
	slices.SortFunc(bids, func(a, b domain.Bid) int { return int(a.ID - b.ID) })
	for i := 1; i < len(bids); i++ {
		s.Greater(bids[i].Amount, bids[i-1].Amount)
	}

	last := bids[len(bids)-1]
	current := s.auction(auction.ID)
	s.Equal(last.ID, *current.CurrentHighestBidID)
	s.Equal(last.Amount, current.HighestAmount)

	// a bidder never holds two pending bids on one auction
	pendingBy := map[int64]int{}
	for _, b := range bids {
		if b.State == domain.BidStatePending {
			pendingBy[b.BidderID]++
		}
	}
	for bidder, n := range pendingBy {
		s.Equal(1, n, "bidder %d", bidder)
		s.LessOrEqual(s.balance(bidder).Reserved, int64(1000))
	}
	s.requireLedgerConsistent(bidders...)
}

func (s *EngineTestSuite) TestWithdrawLeadingBidPromotesNext() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)
	xBid := s.mustBid(auction.ID, bidderX, 20)
	yBid := s.mustBid(auction.ID, bidderY, 30)

	withdrawn, err := s.services.Bids.WithdrawBid(s.ctx(), yBid.ID, bidderY)
	s.Require().NoError(err)
	s.Equal(domain.BidStateWithdrawn, withdrawn.State)
	s.Equal(&UserBalance{UserID: bidderY, Available: 100}, s.balance(bidderY))

	current := s.auction(auction.ID)
	s.Equal(xBid.ID, *current.CurrentHighestBidID)
	s.Equal(int64(20), current.HighestAmount)

	view, err := s.services.Auctions.Get(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(int64(21), view.MinimumBid)

	_, err = s.services.Bids.WithdrawBid(s.ctx(), xBid.ID, bidderX)
	s.Require().NoError(err)
	current = s.auction(auction.ID)
	s.Nil(current.CurrentHighestBidID)
	s.Equal(int64(11), s.mustBid(auction.ID, bidderY, 11).Amount)
	s.requireLedgerConsistent(bidderX, bidderY)
}

func (s *EngineTestSuite) TestWithdrawOutbidBidKeepsLeader() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)
	xBid := s.mustBid(auction.ID, bidderX, 20)
	yBid := s.mustBid(auction.ID, bidderY, 30)
	before := s.auction(auction.ID)

	_, err := s.services.Bids.WithdrawBid(s.ctx(), xBid.ID, bidderX)
	s.Require().NoError(err)

	after := s.auction(auction.ID)
	s.Equal(yBid.ID, *after.CurrentHighestBidID)
	s.Equal(int64(30), after.HighestAmount)
	s.Greater(after.Version, before.Version)
}

func (s *EngineTestSuite) TestRebidNeedsWithdrawFirst() {
	s.fund(bidderX, 100)
	auction := s.open(sellerID, 10)
	first := s.mustBid(auction.ID, bidderX, 20)

	_, err := s.bid(auction.ID, bidderX, 30)
	s.Require().ErrorIs(err, domain.ErrDuplicateBid)

	_, err = s.services.Bids.WithdrawBid(s.ctx(), first.ID, bidderX)
	s.Require().NoError(err)
	s.mustBid(auction.ID, bidderX, 30)

	s.Equal(&UserBalance{UserID: bidderX, Available: 70, Reserved: 30}, s.balance(bidderX))
	s.requireLedgerConsistent(bidderX)
}

func (s *EngineTestSuite) TestWithdrawThenRebidSameAmount() {
	s.fund(bidderX, 20)
	auction := s.open(sellerID, 10)
	first := s.mustBid(auction.ID, bidderX, 20)
	s.Equal(&UserBalance{UserID: bidderX, Available: 0, Reserved: 20}, s.balance(bidderX))

	_, err := s.services.Bids.WithdrawBid(s.ctx(), first.ID, bidderX)
	s.Require().NoError(err)
	s.Equal(&UserBalance{UserID: bidderX, Available: 20}, s.balance(bidderX))

	second := s.mustBid(auction.ID, bidderX, 20)
	s.NotEqual(first.ID, second.ID)
	s.Equal(second.ID, *s.auction(auction.ID).CurrentHighestBidID)
	s.Equal(&UserBalance{UserID: bidderX, Available: 0, Reserved: 20}, s.balance(bidderX))
	s.requireLedgerConsistent(bidderX)
}

func (s *EngineTestSuite) TestBidsNearTheAmountLimit() {
	s.fund(bidderX, domain.MaxAmount)
	auction := s.open(sellerID, domain.MaxAmount)

	_, err := s.bid(auction.ID, bidderX, domain.MaxAmount)
	var tooLow *domain.BidTooLowError
	s.Require().ErrorAs(err, &tooLow)
	s.Equal(domain.MaxAmount+1, tooLow.Minimum)

	_, err = s.bid(auction.ID, bidderX, domain.MaxAmount+1)
	s.Require().ErrorIs(err, domain.ErrInvalidAmount)

	// a row stored before the limit existed must not let a small bid through
	repo, err := uow.GetRepositoryAs[AuctionRepository](s.storage, uow.RepositoryName(repoargs.AuctionRepoName))
	s.Require().NoError(err)
	card := s.storage.SeedCard(sellerID, 100)
	legacy, err := repo.Create(s.ctx(), repoargs.AuctionCreate{
		SellerID:       sellerID,
		CardInstanceID: card.ID,
		StartPrice:     math.MaxInt64,
		OpenedAt:       s.clock.Now(),
		ClosesAt:       s.clock.Now().Add(auctionTTL),
	})
	s.Require().NoError(err)

	for _, amount := range []int64{1, domain.MaxAmount} {
		_, err = s.bid(legacy.ID, bidderX, amount)
		s.Require().ErrorAs(err, &tooLow)
		s.Equal(int64(math.MaxInt64), tooLow.Minimum)
	}
	s.Equal(&UserBalance{UserID: bidderX, Available: domain.MaxAmount}, s.balance(bidderX))
}

func (s *EngineTestSuite) TestWithdrawBidRules() {
	s.fund(bidderX, 100)
	auction := s.open(sellerID, 10)
	xBid := s.mustBid(auction.ID, bidderX, 20)

	_, err := s.services.Bids.WithdrawBid(s.ctx(), xBid.ID, bidderY)
	s.Require().ErrorIs(err, domain.ErrNotOwner)

	_, err = s.services.Bids.WithdrawBid(s.ctx(), xBid.ID+1000, bidderX)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)

	s.expire(auction)
	_, err = s.services.Bids.WithdrawBid(s.ctx(), xBid.ID, bidderX)
	s.Require().ErrorIs(err, domain.ErrAuctionNotActive)
	_, err = s.bid(auction.ID, bidderY, 50)
	s.Require().ErrorIs(err, domain.ErrAuctionNotActive)

	_, err = s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	_, err = s.services.Bids.WithdrawBid(s.ctx(), xBid.ID, bidderX)
	s.Require().ErrorIs(err, domain.ErrNotPending)
}

func (s *EngineTestSuite) TestBidJustBeforeDeadline() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)

	s.clock.Advance(auctionTTL - time.Nanosecond)
	s.mustBid(auction.ID, bidderX, 11)

	s.clock.Advance(time.Nanosecond)
	_, err := s.bid(auction.ID, bidderY, 12)
	s.Require().ErrorIs(err, domain.ErrAuctionNotActive)
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
