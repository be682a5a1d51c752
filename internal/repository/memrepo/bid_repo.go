package memrepo

import (
	"context"
	"slices"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
)

type BidRepository struct {
	a access
}

func (r *BidRepository) Create(_ context.Context, args repoargs.BidCreate) (*domain.Bid, error) {
	defer r.a.lock()()

	for _, existing := range r.a.data.bids {
		if existing.AuctionID == args.AuctionID && existing.BidderID == args.BidderID &&
			existing.State == domain.BidStatePending {
			return nil, duplicate("creating bid of user %d on auction %d", args.BidderID, args.AuctionID)
		}
	}

	bid := domain.Bid{
		ID:            r.a.data.nextID(),
		UpdatedAt:     time.Now(),
		AuctionID:     args.AuctionID,
		BidderID:      args.BidderID,
		Amount:        args.Amount,
		ReservationID: args.ReservationID,
		State:         domain.BidStatePending,
		PlacedAt:      args.PlacedAt,
	}
	r.a.data.bids[bid.ID] = bid
	return &bid, nil
}

func (r *BidRepository) FindByID(_ context.Context, id int64) (*domain.Bid, error) {
	defer r.a.lock()()

	bid, ok := r.a.data.bids[id]
	if !ok {
		return nil, notFound("finding bid %d", id)
	}
	return &bid, nil
}

func (r *BidRepository) GetByAuctionID(_ context.Context, auctionID int64) ([]domain.Bid, error) {
	defer r.a.lock()()
	return r.filter(auctionID, false), nil
}

func (r *BidRepository) GetPendingByAuctionID(_ context.Context, auctionID int64) ([]domain.Bid, error) {
	defer r.a.lock()()
	return r.filter(auctionID, true), nil
}

func (r *BidRepository) CountPending(_ context.Context, auctionID int64) (int64, error) {
	defer r.a.lock()()
	return int64(len(r.filter(auctionID, true))), nil
}

func (r *BidRepository) Transition(_ context.Context, args repoargs.BidTransition) (*domain.Bid, error) {
	defer r.a.lock()()

	bid, ok := r.a.data.bids[args.ID]
	if !ok || bid.State != args.From {
		return nil, conflict("moving bid %d from %s to %s", args.ID, args.From, args.To)
	}
	bid.State = args.To
	bid.UpdatedAt = time.Now()
	r.a.data.bids[bid.ID] = bid
	return &bid, nil
}

// filter returns bids of the auction, highest amount first, earliest first among equals.
func (r *BidRepository) filter(auctionID int64, pendingOnly bool) []domain.Bid {
	result := make([]domain.Bid, 0)
	for _, bid := range r.a.data.bids {
		if bid.AuctionID != auctionID || (pendingOnly && bid.State != domain.BidStatePending) {
			continue
		}
		result = append(result, bid)
	}
	slices.SortFunc(result, func(x, y domain.Bid) int {
		if x.Amount != y.Amount {
			if x.Amount > y.Amount {
				return -1
			}
			return 1
		}
		if c := x.PlacedAt.Compare(y.PlacedAt); c != 0 {
			return c
		}
		return int(x.ID - y.ID)
	})
	return result
}
