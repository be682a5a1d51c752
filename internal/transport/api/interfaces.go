package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/google/uuid"
)

type AuctionServicer interface {
	Open(ctx context.Context, args service.OpenAuctionArgs) (*domain.Auction, error)
	Withdraw(ctx context.Context, auctionID, requesterID int64) (*domain.Auction, error)
	Get(ctx context.Context, auctionID int64) (*service.AuctionView, error)
	List(ctx context.Context, filter repoargs.AuctionFilter) ([]domain.Auction, error)
}

type BidServicer interface {
	PlaceBid(ctx context.Context, args service.PlaceBidArgs) (*domain.Bid, error)
	WithdrawBid(ctx context.Context, bidID, requesterID int64) (*domain.Bid, error)
	BidsForAuction(ctx context.Context, auctionID int64) ([]domain.Bid, error)
}

type LedgerServicer interface {
	Balance(ctx context.Context, userID int64) (*service.UserBalance, error)
	Transactions(ctx context.Context, userID int64) ([]domain.Transaction, error)
	Credit(ctx context.Context, args service.CreditArgs) (*domain.Transaction, error)
}

type NotificationServicer interface {
	Inbox(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID int64, id uuid.UUID) error
}
