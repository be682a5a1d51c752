package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/logger"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/fsdevblog/zenauction/internal/transport/api/middlewares"
	"github.com/fsdevblog/zenauction/internal/transport/api/testutils"
	"github.com/golang/mock/gomock"
)

func (s *HandlersTestSuite) TestBalance() {
	s.mockLedger.EXPECT().Balance(gomock.Any(), bidderID).
		Return(&service.UserBalance{UserID: bidderID, Available: 700, Reserved: 300}, nil).Times(1)
	s.mockLedger.EXPECT().Balance(gomock.Any(), sellerID).
		Return(nil, errors.New("connection reset")).Times(1)

	status, body := s.request(http.MethodGet, BalanceRoute, "", s.bidderToken)
	s.Require().Equal(http.StatusOK, status)
	var res BalanceResponse
	s.decode(body, &res)
	s.Equal(BalanceResponse{Available: 700, Reserved: 300}, res)

	status, body = s.request(http.MethodGet, BalanceRoute, "", s.sellerToken)
	s.Equal(http.StatusInternalServerError, status)
	s.NotContains(string(body), "connection reset")
}

func (s *HandlersTestSuite) TestTransactions() {
	cardID := int64(10)
	s.mockLedger.EXPECT().Transactions(gomock.Any(), bidderID).Return([]domain.Transaction{
		{ID: 1, UserID: bidderID, Amount: 1000, Concept: domain.ConceptPaymentConfirmed, CreatedAt: time.Now()},
		{
			ID:                    2,
			UserID:                bidderID,
			Amount:                -300,
			Concept:               domain.ConceptBidReserved,
			RelatedCardInstanceID: &cardID,
			CreatedAt:             time.Now(),
		},
	}, nil).Times(1)
	s.mockLedger.EXPECT().Transactions(gomock.Any(), sellerID).Return(nil, nil).Times(1)

	status, body := s.request(http.MethodGet, TransactionsRoute, "", s.bidderToken)
	s.Require().Equal(http.StatusOK, status)
	var res []TransactionResponse
	s.decode(body, &res)
	s.Require().Len(res, 2)
	s.Equal(int64(-300), res[1].Amount)
	s.Equal(cardID, *res[1].CardInstanceID)

	status, _ = s.request(http.MethodGet, TransactionsRoute, "", s.sellerToken)
	s.Equal(http.StatusNoContent, status)
}

func (s *HandlersTestSuite) TestPayment() {
	okArgs := service.CreditArgs{
		UserID:      bidderID,
		Amount:      500,
		Concept:     domain.ConceptPaymentConfirmed,
		ExternalRef: "pay-1",
	}
	s.mockLedger.EXPECT().Credit(gomock.Any(), okArgs).
		Return(&domain.Transaction{ID: 1, Amount: 500, Concept: domain.ConceptPaymentConfirmed}, nil).Times(1)

	dupArgs := okArgs
	dupArgs.ExternalRef = "pay-2"
	s.mockLedger.EXPECT().Credit(gomock.Any(), dupArgs).
		Return(nil, fmt.Errorf("credit: %w", domain.ErrDuplicateKey)).Times(1)

	giftArgs := okArgs
	giftArgs.Concept = domain.ConceptGift
	giftArgs.ExternalRef = "gift-1"
	s.mockLedger.EXPECT().Credit(gomock.Any(), giftArgs).
		Return(&domain.Transaction{ID: 2, Amount: 500, Concept: domain.ConceptGift}, nil).Times(1)

	withToken := testutils.WithHeader(middlewares.InternalTokenHeader, s.internalToken)
	cases := []struct {
		name       string
		body       string
		opts       []func(*testutils.RequestOptions)
		wantStatus int
	}{
		{
			name:       "all ok",
			body:       `{"user_id":2,"amount":500,"external_ref":"pay-1"}`,
			opts:       []func(*testutils.RequestOptions){withToken},
			wantStatus: http.StatusCreated,
		}, {
			name:       "repeated payment",
			body:       `{"user_id":2,"amount":500,"external_ref":"pay-2"}`,
			opts:       []func(*testutils.RequestOptions){withToken},
			wantStatus: http.StatusOK,
		}, {
			name:       "gift",
			body:       `{"user_id":2,"amount":500,"external_ref":"gift-1","concept":"GIFT"}`,
			opts:       []func(*testutils.RequestOptions){withToken},
			wantStatus: http.StatusCreated,
		}, {
			name:       "concept not allowed",
			body:       `{"user_id":2,"amount":500,"external_ref":"x","concept":"AUCTION_SOLD"}`,
			opts:       []func(*testutils.RequestOptions){withToken},
			wantStatus: http.StatusUnprocessableEntity,
		}, {
			name: "external ref over 128 bytes",
			body: fmt.Sprintf(
				`{"user_id":2,"amount":500,"external_ref":"%s"}`, testutils.GenerateOverBytesUnderRunes(40),
			),
			opts:       []func(*testutils.RequestOptions){withToken},
			wantStatus: http.StatusUnprocessableEntity,
		}, {
			name:       "no internal token",
			body:       `{"user_id":2,"amount":500,"external_ref":"pay-1"}`,
			wantStatus: http.StatusUnauthorized,
		}, {
			name: "wrong internal token",
			body: `{"user_id":2,"amount":500,"external_ref":"pay-1"}`,
			opts: []func(*testutils.RequestOptions){
				testutils.WithHeader(middlewares.InternalTokenHeader, "guess"),
			},
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, body := s.request(http.MethodPost, PaymentsRoute, t.body, "", t.opts...)
			s.Equal(t.wantStatus, status, string(body))
		})
	}
}

func (s *HandlersTestSuite) TestPaymentRouteDisabledWithoutToken() {
	router, err := New(RouterArgs{
		Logger:        logger.New(os.Stdout),
		LedgerService: s.mockLedger,
		JWTSecretKey:  s.jwtSecret,
	})
	s.Require().NoError(err)
	s.router = router

	status, _ := s.request(
		http.MethodPost, PaymentsRoute, `{"user_id":2,"amount":500,"external_ref":"pay-1"}`, "",
		testutils.WithHeader(middlewares.InternalTokenHeader, ""),
	)
	s.Equal(http.StatusNotFound, status)
}
