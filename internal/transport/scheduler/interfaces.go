package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/service"
)

type Settler interface {
	DueAuctions(ctx context.Context, limit uint) ([]domain.Auction, error)
	Settle(ctx context.Context, auctionID int64) (*service.SettlementResult, error)
}
