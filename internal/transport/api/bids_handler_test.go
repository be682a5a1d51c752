package api

import (
	"fmt"
	"net/http"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/golang/mock/gomock"
)

func (s *HandlersTestSuite) TestPlaceBid() {
	bidArgs := func(amount int64) service.PlaceBidArgs {
		return service.PlaceBidArgs{AuctionID: 5, BidderID: bidderID, Amount: amount}
	}
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), bidArgs(150)).
		Return(&domain.Bid{ID: 1, AuctionID: 5, BidderID: bidderID, Amount: 150, State: domain.BidStatePending}, nil).
		Times(1)
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), bidArgs(900)).
		Return(nil, fmt.Errorf("place bid: %w", domain.ErrInsufficientFunds)).Times(1)
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), bidArgs(160)).
		Return(nil, domain.ErrDuplicateBid).Times(1)
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), bidArgs(170)).
		Return(nil, domain.ErrAuctionNotActive).Times(1)
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), bidArgs(180)).
		Return(nil, domain.ErrConcurrentUpdate).Times(1)
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), service.PlaceBidArgs{AuctionID: 5, BidderID: sellerID, Amount: 150}).
		Return(nil, domain.ErrSelfBid).Times(1)

	cases := []struct {
		name       string
		body       string
		jwtToken   string
		wantStatus int
	}{
		{name: "all ok", body: `{"amount":150}`, jwtToken: s.bidderToken, wantStatus: http.StatusCreated},
		{
			name:       "insufficient funds",
			body:       `{"amount":900}`,
			jwtToken:   s.bidderToken,
			wantStatus: http.StatusPaymentRequired,
		},
		{name: "already bidding", body: `{"amount":160}`, jwtToken: s.bidderToken, wantStatus: http.StatusConflict},
		{name: "auction closed", body: `{"amount":170}`, jwtToken: s.bidderToken, wantStatus: http.StatusConflict},
		{name: "lost the race", body: `{"amount":180}`, jwtToken: s.bidderToken, wantStatus: http.StatusConflict},
		{
			name:       "seller bids",
			body:       `{"amount":150}`,
			jwtToken:   s.sellerToken,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{name: "zero amount", body: `{"amount":0}`, jwtToken: s.bidderToken, wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "amount above limit",
			body:       `{"amount":1000000000001}`,
			jwtToken:   s.bidderToken,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{name: "not authorized", body: `{"amount":150}`, wantStatus: http.StatusUnauthorized},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, body := s.request(http.MethodPost, "/auctions/5/bids", t.body, t.jwtToken)
			s.Equal(t.wantStatus, status, string(body))
		})
	}
}

func (s *HandlersTestSuite) TestPlaceBidTooLowShowsMinimum() {
	s.mockBids.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("place bid: %w", domain.NewBidTooLowError(151))).Times(1)

	status, body := s.request(http.MethodPost, "/auctions/5/bids", `{"amount":120}`, s.bidderToken)
	s.Require().Equal(http.StatusConflict, status)

	var res struct {
		Error   string `json:"error"`
		Minimum int64  `json:"minimum"`
	}
	s.decode(body, &res)
	s.Equal(domain.ErrBidTooLow.Error(), res.Error)
	s.Equal(int64(151), res.Minimum)
}

func (s *HandlersTestSuite) TestIndexBids() {
	s.mockBids.EXPECT().BidsForAuction(gomock.Any(), int64(5)).Return([]domain.Bid{
		{ID: 2, AuctionID: 5, Amount: 200, State: domain.BidStatePending},
		{ID: 1, AuctionID: 5, Amount: 150, State: domain.BidStateWithdrawn},
	}, nil).Times(1)

	status, body := s.request(http.MethodGet, "/auctions/5/bids", "", s.sellerToken)
	s.Require().Equal(http.StatusOK, status)

	var res []BidResponse
	s.decode(body, &res)
	s.Require().Len(res, 2)
	s.Equal(int64(200), res[0].Amount)
	s.Equal(domain.BidStateWithdrawn, res[1].State)
}

func (s *HandlersTestSuite) TestWithdrawBid() {
	s.mockBids.EXPECT().WithdrawBid(gomock.Any(), int64(3), bidderID).
		Return(&domain.Bid{ID: 3, State: domain.BidStateWithdrawn}, nil).Times(1)
	s.mockBids.EXPECT().WithdrawBid(gomock.Any(), int64(3), sellerID).
		Return(nil, domain.ErrNotOwner).Times(1)
	s.mockBids.EXPECT().WithdrawBid(gomock.Any(), int64(4), bidderID).
		Return(nil, domain.ErrNotPending).Times(1)
	s.mockBids.EXPECT().WithdrawBid(gomock.Any(), int64(9), bidderID).
		Return(nil, domain.ErrRecordNotFound).Times(1)

	cases := []struct {
		name       string
		url        string
		jwtToken   string
		wantStatus int
	}{
		{name: "all ok", url: "/bids/3", jwtToken: s.bidderToken, wantStatus: http.StatusOK},
		{name: "foreign bid", url: "/bids/3", jwtToken: s.sellerToken, wantStatus: http.StatusForbidden},
		{name: "already withdrawn", url: "/bids/4", jwtToken: s.bidderToken, wantStatus: http.StatusConflict},
		{name: "unknown bid", url: "/bids/9", jwtToken: s.bidderToken, wantStatus: http.StatusNotFound},
		{name: "bad id", url: "/bids/-1", jwtToken: s.bidderToken, wantStatus: http.StatusNotFound},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, _ := s.request(http.MethodDelete, t.url, "", t.jwtToken)
			s.Equal(t.wantStatus, status)
		})
	}
}
