package service

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/google/uuid"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type AuctionRepository interface {
	Create(ctx context.Context, args repoargs.AuctionCreate) (*domain.Auction, error)
	FindByID(ctx context.Context, id int64) (*domain.Auction, error)
	List(ctx context.Context, filter repoargs.AuctionFilter) ([]domain.Auction, error)
	GetDue(ctx context.Context, filter repoargs.AuctionDueFilter) ([]domain.Auction, error)
	UpdateLeader(ctx context.Context, args repoargs.AuctionLeaderUpdate) (*domain.Auction, error)
	Transition(ctx context.Context, args repoargs.AuctionTransition) (*domain.Auction, error)
	Claim(ctx context.Context, args repoargs.AuctionClaim) (*domain.Auction, error)
	CreatePendingTransfer(ctx context.Context, args repoargs.PendingTransferCreate) error
	FindPendingTransfer(ctx context.Context, auctionID int64) (*domain.PendingTransfer, error)
	DeletePendingTransfer(ctx context.Context, auctionID int64) error
}

type BidRepository interface {
	Create(ctx context.Context, args repoargs.BidCreate) (*domain.Bid, error)
	FindByID(ctx context.Context, id int64) (*domain.Bid, error)
	// GetByAuctionID returns bids ordered by amount desc, then placement time.
	GetByAuctionID(ctx context.Context, auctionID int64) ([]domain.Bid, error)
	GetPendingByAuctionID(ctx context.Context, auctionID int64) ([]domain.Bid, error)
	CountPending(ctx context.Context, auctionID int64) (int64, error)
	Transition(ctx context.Context, args repoargs.BidTransition) (*domain.Bid, error)
}

type LedgerRepository interface {
	// LockAccount returns the account row locked until the end of the unit of work.
	LockAccount(ctx context.Context, userID int64) (*domain.Account, error)
	GetAccount(ctx context.Context, userID int64) (*domain.Account, error)
	CreateReservation(ctx context.Context, args repoargs.ReservationCreate) (*domain.Reservation, error)
	FindReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	TransitionReservation(
		ctx context.Context,
		args repoargs.ReservationTransition,
	) (*domain.Reservation, error)
	SumHeld(ctx context.Context, userID int64) (int64, error)
	CreateTransaction(ctx context.Context, args repoargs.TransactionCreate) (*domain.Transaction, error)
	GetTransactions(ctx context.Context, userID int64) ([]domain.Transaction, error)
	SumTransactions(ctx context.Context, userID int64) (int64, error)
}

type CardRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.CardInstance, error)
	Update(ctx context.Context, args repoargs.CardUpdate) (*domain.CardInstance, error)
}

type NotificationRepository interface {
	BatchCreate(
		ctx context.Context,
		items []repoargs.NotificationCreate,
		fn repoargs.NotificationBatchQueryRow,
	)
	GetByUserID(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID int64, id uuid.UUID) error
}

// DeliveryChannel best-effort push of a notification to the user.
type DeliveryChannel interface {
	Deliver(ctx context.Context, n domain.Notification) error
}
