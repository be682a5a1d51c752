package api

import (
	"fmt"
	"time"

	"github.com/fsdevblog/zenauction/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServiceTimeout = 3 * time.Second
)

const (
	RouteGroup            = "/api"
	AuctionsRoute         = "/auctions"
	AuctionRoute          = "/auctions/:id"
	AuctionBidsRoute      = "/auctions/:id/bids"
	BidRoute              = "/bids/:id"
	BalanceRoute          = "/user/balance"
	TransactionsRoute     = "/user/transactions"
	NotificationsRoute    = "/user/notifications"
	NotificationReadRoute = "/user/notifications/:id/read"
	PaymentsRoute         = "/internal/payments"
)

type RouterArgs struct {
	Logger              *logrus.Logger
	AuctionService      AuctionServicer
	BidService          BidServicer
	LedgerService       LedgerServicer
	NotificationService NotificationServicer
	JWTSecretKey        []byte
	InternalToken       string
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	auctionsHandler := NewAuctionsHandler(args.AuctionService)
	bidsHandler := NewBidsHandler(args.BidService)
	balanceHandler := NewBalanceHandler(args.LedgerService)
	notificationsHandler := NewNotificationsHandler(args.NotificationService)

	api := r.Group(RouteGroup)

	// called by the payment gateway, not by users
	api.POST(PaymentsRoute, middlewares.InternalToken(args.InternalToken), balanceHandler.Payment)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// every route below needs an authorized user.
	api.POST(AuctionsRoute, auctionsHandler.Create)
	api.GET(AuctionsRoute, auctionsHandler.Index)
	api.GET(AuctionRoute, auctionsHandler.Show)
	api.DELETE(AuctionRoute, auctionsHandler.Withdraw)

	api.POST(AuctionBidsRoute, bidsHandler.Create)
	api.GET(AuctionBidsRoute, bidsHandler.Index)
	api.DELETE(BidRoute, bidsHandler.Withdraw)

	api.GET(BalanceRoute, balanceHandler.Index)
	api.GET(TransactionsRoute, balanceHandler.Transactions)

	api.GET(NotificationsRoute, notificationsHandler.Index)
	api.POST(NotificationReadRoute, notificationsHandler.MarkRead)
	return r, nil
}
