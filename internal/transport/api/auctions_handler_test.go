package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/golang/mock/gomock"
)

func (s *HandlersTestSuite) TestCreateAuction() {
	now := time.Now().UTC()
	okArgs := service.OpenAuctionArgs{
		SellerID:       sellerID,
		CardInstanceID: 10,
		StartPrice:     100,
		Duration:       2 * time.Hour,
	}
	s.mockAuctions.EXPECT().Open(gomock.Any(), okArgs).Return(&domain.Auction{
		ID:             7,
		SellerID:       sellerID,
		CardInstanceID: 10,
		StartPrice:     100,
		State:          domain.AuctionStateActive,
		OpenedAt:       now,
		ClosesAt:       now.Add(2 * time.Hour),
	}, nil).Times(1)

	lockedArgs := okArgs
	lockedArgs.CardInstanceID = 11
	s.mockAuctions.EXPECT().Open(gomock.Any(), lockedArgs).
		Return(nil, fmt.Errorf("open auction: %w", domain.ErrAlreadyLocked)).Times(1)

	foreignArgs := okArgs
	foreignArgs.CardInstanceID = 12
	s.mockAuctions.EXPECT().Open(gomock.Any(), foreignArgs).Return(nil, domain.ErrNotOwner).Times(1)

	shortArgs := okArgs
	shortArgs.Duration = time.Minute
	s.mockAuctions.EXPECT().Open(gomock.Any(), shortArgs).Return(nil, domain.ErrInvalidDuration).Times(1)

	cases := []struct {
		name       string
		body       string
		jwtToken   string
		wantStatus int
	}{
		{
			name:       "all ok",
			body:       `{"card_instance_id":10,"start_price":100,"duration_seconds":7200}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusCreated,
		}, {
			name:       "card already on auction",
			body:       `{"card_instance_id":11,"start_price":100,"duration_seconds":7200}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusConflict,
		}, {
			name:       "card of another user",
			body:       `{"card_instance_id":12,"start_price":100,"duration_seconds":7200}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusForbidden,
		}, {
			name:       "duration out of bounds",
			body:       `{"card_instance_id":10,"start_price":100,"duration_seconds":60}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusUnprocessableEntity,
		}, {
			name:       "negative start price",
			body:       `{"card_instance_id":10,"start_price":-1,"duration_seconds":7200}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusUnprocessableEntity,
		}, {
			name:       "start price above limit",
			body:       `{"card_instance_id":10,"start_price":9223372036854775807,"duration_seconds":7200}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusUnprocessableEntity,
		}, {
			name:       "duration that overflows",
			body:       `{"card_instance_id":10,"start_price":100,"duration_seconds":9223372036854775807}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusUnprocessableEntity,
		}, {
			name:       "malformed json",
			body:       `{"card_instance_id":`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusBadRequest,
		}, {
			name:       "not authorized",
			body:       `{"card_instance_id":10,"start_price":100,"duration_seconds":7200}`,
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, body := s.request(http.MethodPost, AuctionsRoute, t.body, t.jwtToken)
			s.Equal(t.wantStatus, status, string(body))
		})
	}
}

func (s *HandlersTestSuite) TestCreateAuctionResponse() {
	now := time.Now().UTC().Truncate(time.Second)
	s.mockAuctions.EXPECT().Open(gomock.Any(), gomock.Any()).Return(&domain.Auction{
		ID:             7,
		SellerID:       sellerID,
		CardInstanceID: 10,
		StartPrice:     100,
		State:          domain.AuctionStateActive,
		OpenedAt:       now,
		ClosesAt:       now.Add(time.Hour),
	}, nil)

	status, body := s.request(
		http.MethodPost, AuctionsRoute, `{"card_instance_id":10,"start_price":100,"duration_seconds":3600}`,
		s.sellerToken,
	)
	s.Require().Equal(http.StatusCreated, status)

	var res AuctionResponse
	s.decode(body, &res)
	s.Equal(int64(7), res.ID)
	s.Equal(domain.AuctionStateActive, res.State)
	s.Nil(res.LeadingBidID)
	s.True(now.Add(time.Hour).Equal(res.ClosesAt))
}

func (s *HandlersTestSuite) TestIndexAuctions() {
	active := domain.AuctionStateActive
	s.mockAuctions.EXPECT().
		List(gomock.Any(), repoargs.AuctionFilter{State: &active, Limit: 10}).
		Return([]domain.Auction{{ID: 1, State: active}, {ID: 2, State: active}}, nil).Times(1)

	status, body := s.request(http.MethodGet, AuctionsRoute+"?state=ACTIVE&limit=10", "", s.bidderToken)
	s.Require().Equal(http.StatusOK, status)
	var res []AuctionResponse
	s.decode(body, &res)
	s.Len(res, 2)

	status, _ = s.request(http.MethodGet, AuctionsRoute+"?state=OPEN", "", s.bidderToken)
	s.Equal(http.StatusUnprocessableEntity, status)
}

func (s *HandlersTestSuite) TestShowAuction() {
	leaderID := int64(31)
	view := &service.AuctionView{
		Auction: domain.Auction{
			ID:                  5,
			SellerID:            sellerID,
			StartPrice:          100,
			CurrentHighestBidID: &leaderID,
			HighestAmount:       150,
			State:               domain.AuctionStateActive,
		},
		Bids: []domain.Bid{
			{ID: leaderID, AuctionID: 5, BidderID: bidderID, Amount: 150, State: domain.BidStatePending},
			{ID: 30, AuctionID: 5, BidderID: 3, Amount: 120, State: domain.BidStateWithdrawn},
		},
		PendingBids: 1,
		MinimumBid:  151,
		TimeLeft:    90 * time.Second,
	}
	s.mockAuctions.EXPECT().Get(gomock.Any(), int64(5)).Return(view, nil).Times(1)
	s.mockAuctions.EXPECT().Get(gomock.Any(), int64(6)).Return(nil, domain.ErrRecordNotFound).Times(1)

	status, body := s.request(http.MethodGet, "/auctions/5", "", s.bidderToken)
	s.Require().Equal(http.StatusOK, status)
	var res AuctionViewResponse
	s.decode(body, &res)
	s.Equal(int64(151), res.MinimumBid)
	s.Equal(int64(90), res.TimeLeftSeconds)
	s.Equal(1, res.PendingBids)
	s.Require().Len(res.Bids, 2)
	s.Equal(leaderID, *res.LeadingBidID)

	status, _ = s.request(http.MethodGet, "/auctions/6", "", s.bidderToken)
	s.Equal(http.StatusNotFound, status)

	status, _ = s.request(http.MethodGet, "/auctions/abc", "", s.bidderToken)
	s.Equal(http.StatusNotFound, status)
}

func (s *HandlersTestSuite) TestWithdrawAuction() {
	s.mockAuctions.EXPECT().Withdraw(gomock.Any(), int64(5), sellerID).
		Return(&domain.Auction{ID: 5, State: domain.AuctionStateWithdrawnByOwner}, nil).Times(1)
	s.mockAuctions.EXPECT().Withdraw(gomock.Any(), int64(6), sellerID).
		Return(nil, fmt.Errorf("withdraw auction: %w", domain.ErrHasActiveBids)).Times(1)
	s.mockAuctions.EXPECT().Withdraw(gomock.Any(), int64(5), bidderID).
		Return(nil, domain.ErrNotOwner).Times(1)

	cases := []struct {
		name       string
		url        string
		jwtToken   string
		wantStatus int
		wantError  string
	}{
		{name: "all ok", url: "/auctions/5", jwtToken: s.sellerToken, wantStatus: http.StatusOK},
		{
			name:       "has active bids",
			url:        "/auctions/6",
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusConflict,
			wantError:  domain.ErrHasActiveBids.Error(),
		},
		{name: "not the seller", url: "/auctions/5", jwtToken: s.bidderToken, wantStatus: http.StatusForbidden},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, body := s.request(http.MethodDelete, t.url, "", t.jwtToken)
			s.Equal(t.wantStatus, status)
			if t.wantError != "" {
				var res map[string]string
				s.decode(body, &res)
				s.Equal(t.wantError, res["error"])
			}
		})
	}
}
