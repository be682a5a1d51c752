package service

import (
	"math"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
)

func (s *EngineTestSuite) TestOpenAuction() {
	card := s.storage.SeedCard(sellerID, 100)

	auction, err := s.services.Auctions.Open(s.ctx(), OpenAuctionArgs{
		SellerID:       sellerID,
		CardInstanceID: card.ID,
		StartPrice:     25,
		Duration:       2 * time.Hour,
	})
	s.Require().NoError(err)
	s.Equal(domain.AuctionStateActive, auction.State)
	s.Equal(s.clock.Now(), auction.OpenedAt)
	s.Equal(s.clock.Now().Add(2*time.Hour), auction.ClosesAt)
	s.Nil(auction.CurrentHighestBidID)

	locked, err := s.services.Cards.Get(s.ctx(), card.ID)
	s.Require().NoError(err)
	s.Equal(domain.CardStateOnAuction, locked.State)
	s.Equal(sellerID, locked.OwnerID)
}

func (s *EngineTestSuite) TestOpenAuctionRules() {
	card := s.storage.SeedCard(sellerID, 100)
	s.open(sellerID, 10) // another card of the same seller

	cases := []struct {
		name    string
		args    OpenAuctionArgs
		wantErr error
	}{
		{
			name:    "too short",
			args:    OpenAuctionArgs{SellerID: sellerID, CardInstanceID: card.ID, Duration: 59 * time.Minute},
			wantErr: domain.ErrInvalidDuration,
		}, {
			name:    "too long",
			args:    OpenAuctionArgs{SellerID: sellerID, CardInstanceID: card.ID, Duration: 8 * 24 * time.Hour},
			wantErr: domain.ErrInvalidDuration,
		}, {
			name: "negative start price",
			args: OpenAuctionArgs{
				SellerID: sellerID, CardInstanceID: card.ID, StartPrice: -1, Duration: time.Hour,
			},
			wantErr: domain.ErrInvalidAmount,
		}, {
			name: "start price above limit",
			args: OpenAuctionArgs{
				SellerID: sellerID, CardInstanceID: card.ID, StartPrice: math.MaxInt64, Duration: time.Hour,
			},
			wantErr: domain.ErrInvalidAmount,
		}, {
			name:    "foreign card",
			args:    OpenAuctionArgs{SellerID: bidderX, CardInstanceID: card.ID, Duration: time.Hour},
			wantErr: domain.ErrNotOwner,
		}, {
			name:    "unknown card",
			args:    OpenAuctionArgs{SellerID: sellerID, CardInstanceID: card.ID + 1000, Duration: time.Hour},
			wantErr: domain.ErrRecordNotFound,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			_, err := s.services.Auctions.Open(s.ctx(), t.args)
			s.Require().ErrorIs(err, t.wantErr)
		})
	}

	untouched, err := s.services.Cards.Get(s.ctx(), card.ID)
	s.Require().NoError(err)
	s.Equal(domain.CardStateOwned, untouched.State)

	_, err = s.services.Auctions.Open(s.ctx(), OpenAuctionArgs{
		SellerID: sellerID, CardInstanceID: card.ID, Duration: time.Hour,
	})
	s.Require().NoError(err)
	_, err = s.services.Auctions.Open(s.ctx(), OpenAuctionArgs{
		SellerID: sellerID, CardInstanceID: card.ID, Duration: time.Hour,
	})
	s.Require().ErrorIs(err, domain.ErrAlreadyLocked)
}

func (s *EngineTestSuite) TestWithdrawAuctionBlockedByPendingBid() {
	s.fund(bidderX, 100)
	auction := s.open(sellerID, 10)
	xBid := s.mustBid(auction.ID, bidderX, 15)

	_, err := s.services.Auctions.Withdraw(s.ctx(), auction.ID, sellerID)
	s.Require().ErrorIs(err, domain.ErrHasActiveBids)

	_, err = s.services.Bids.WithdrawBid(s.ctx(), xBid.ID, bidderX)
	s.Require().NoError(err)

	withdrawn, err := s.services.Auctions.Withdraw(s.ctx(), auction.ID, sellerID)
	s.Require().NoError(err)
	s.Equal(domain.AuctionStateWithdrawnByOwner, withdrawn.State)
	s.NotNil(withdrawn.ClosedAt)

	card, err := s.services.Cards.Get(s.ctx(), auction.CardInstanceID)
	s.Require().NoError(err)
	s.Equal(domain.CardStateOwned, card.State)
	s.Equal(sellerID, card.OwnerID)
	s.Equal(&UserBalance{UserID: bidderX, Available: 100}, s.balance(bidderX))
	s.Contains(s.inboxTypes(sellerID), domain.NotificationAuctionCancelled)

	result, err := s.services.Settlement.Settle(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementAlreadyFinal, result.Outcome)

	_, err = s.bid(auction.ID, bidderX, 20)
	s.Require().ErrorIs(err, domain.ErrAuctionNotActive)
}

func (s *EngineTestSuite) TestWithdrawAuctionRules() {
	auction := s.open(sellerID, 10)

	_, err := s.services.Auctions.Withdraw(s.ctx(), auction.ID, bidderX)
	s.Require().ErrorIs(err, domain.ErrNotOwner)

	s.expire(auction)
	_, err = s.services.Auctions.Withdraw(s.ctx(), auction.ID, sellerID)
	s.Require().ErrorIs(err, domain.ErrAuctionNotActive)
}

func (s *EngineTestSuite) TestAuctionView() {
	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)
	s.mustBid(auction.ID, bidderX, 12)
	yBid := s.mustBid(auction.ID, bidderY, 14)
	s.clock.Advance(time.Hour)

	view, err := s.services.Auctions.Get(s.ctx(), auction.ID)
	s.Require().NoError(err)
	s.Equal(2, view.PendingBids)
	s.Equal(int64(15), view.MinimumBid)
	s.Equal(auctionTTL-time.Hour, view.TimeLeft)
	s.Require().NotNil(view.LeadingBid)
	s.Equal(yBid.ID, view.LeadingBid.ID)
	s.Require().Len(view.Bids, 2)
	s.Equal(int64(14), view.Bids[0].Amount)

	_, err = s.services.Auctions.Get(s.ctx(), auction.ID+1000)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *EngineTestSuite) TestListAuctions() {
	first := s.open(sellerID, 10)
	s.clock.Advance(time.Minute)
	s.open(sellerID, 10)
	s.open(bidderX, 10)

	_, err := s.services.Auctions.Withdraw(s.ctx(), first.ID, sellerID)
	s.Require().NoError(err)

	active := domain.AuctionStateActive
	auctions, err := s.services.Auctions.List(s.ctx(), repoargs.AuctionFilter{State: &active})
	s.Require().NoError(err)
	s.Len(auctions, 2)

	seller := sellerID
	auctions, err = s.services.Auctions.List(s.ctx(), repoargs.AuctionFilter{SellerID: &seller})
	s.Require().NoError(err)
	s.Require().Len(auctions, 2)
	s.Equal(first.ID, auctions[0].ID)

	auctions, err = s.services.Auctions.List(s.ctx(), repoargs.AuctionFilter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Len(auctions, 1)
}
