package memrepo

import (
	"context"
	"slices"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
)

type AuctionRepository struct {
	a access
}

func (r *AuctionRepository) Create(_ context.Context, args repoargs.AuctionCreate) (*domain.Auction, error) {
	defer r.a.lock()()

	for _, existing := range r.a.data.auctions {
		if existing.CardInstanceID == args.CardInstanceID && !existing.State.IsFinal() {
			return nil, duplicate("creating auction for card %d", args.CardInstanceID)
		}
	}

	now := time.Now()
	auction := domain.Auction{
		ID:             r.a.data.nextID(),
		CreatedAt:      now,
		UpdatedAt:      now,
		SellerID:       args.SellerID,
		CardInstanceID: args.CardInstanceID,
		StartPrice:     args.StartPrice,
		State:          domain.AuctionStateActive,
		Version:        1,
		OpenedAt:       args.OpenedAt,
		ClosesAt:       args.ClosesAt,
	}
	r.a.data.auctions[auction.ID] = auction
	return &auction, nil
}

func (r *AuctionRepository) FindByID(_ context.Context, id int64) (*domain.Auction, error) {
	defer r.a.lock()()

	auction, ok := r.a.data.auctions[id]
	if !ok {
		return nil, notFound("finding auction %d", id)
	}
	return &auction, nil
}

func (r *AuctionRepository) List(_ context.Context, filter repoargs.AuctionFilter) ([]domain.Auction, error) {
	defer r.a.lock()()

	result := make([]domain.Auction, 0)
	for _, auction := range r.a.data.auctions {
		if filter.State != nil && auction.State != *filter.State {
			continue
		}
		if filter.SellerID != nil && auction.SellerID != *filter.SellerID {
			continue
		}
		result = append(result, auction)
	}
	sortByDeadline(result)
	return page(result, filter.Offset, filter.Limit), nil
}

func (r *AuctionRepository) GetDue(_ context.Context, filter repoargs.AuctionDueFilter) ([]domain.Auction, error) {
	defer r.a.lock()()

	result := make([]domain.Auction, 0)
	for _, auction := range r.a.data.auctions {
		switch auction.State {
		case domain.AuctionStateActive:
			if auction.ClosesAt.After(filter.Now) {
				continue
			}
		case domain.AuctionStateClosing:
			if auction.ClosingStartedAt == nil || !auction.ClosingStartedAt.Before(filter.StaleBefore) {
				continue
			}
		default:
			continue
		}
		result = append(result, auction)
	}
	sortByDeadline(result)
	return page(result, 0, filter.Limit), nil
}

func (r *AuctionRepository) UpdateLeader(_ context.Context, args repoargs.AuctionLeaderUpdate) (*domain.Auction, error) {
	defer r.a.lock()()

	auction, ok := r.a.data.auctions[args.ID]
	if !ok || auction.Version != args.ExpectedVersion || auction.State != domain.AuctionStateActive {
		return nil, conflict("updating leader of auction %d at version %d", args.ID, args.ExpectedVersion)
	}
	auction.CurrentHighestBidID = args.BidID
	auction.HighestAmount = args.Amount
	return r.save(auction), nil
}

func (r *AuctionRepository) Transition(_ context.Context, args repoargs.AuctionTransition) (*domain.Auction, error) {
	defer r.a.lock()()

	auction, ok := r.a.data.auctions[args.ID]
	if !ok || auction.Version != args.ExpectedVersion || auction.State != args.From {
		return nil, conflict("moving auction %d from %s to %s", args.ID, args.From, args.To)
	}
	auction.State = args.To
	if args.To.IsFinal() {
		at := args.At
		auction.ClosedAt = &at
	}
	return r.save(auction), nil
}

func (r *AuctionRepository) Claim(_ context.Context, args repoargs.AuctionClaim) (*domain.Auction, error) {
	defer r.a.lock()()

	auction, ok := r.a.data.auctions[args.ID]
	if !ok || auction.Version != args.ExpectedVersion ||
		(auction.State != domain.AuctionStateActive && auction.State != domain.AuctionStateClosing) {
		return nil, conflict("claiming auction %d at version %d", args.ID, args.ExpectedVersion)
	}
	claimedAt := args.ClaimedAt
	auction.State = domain.AuctionStateClosing
	auction.ClosingStartedAt = &claimedAt
	return r.save(auction), nil
}

func (r *AuctionRepository) CreatePendingTransfer(_ context.Context, args repoargs.PendingTransferCreate) error {
	defer r.a.lock()()

	if _, ok := r.a.data.transfers[args.AuctionID]; ok {
		return nil
	}
	r.a.data.transfers[args.AuctionID] = domain.PendingTransfer{
		AuctionID:      args.AuctionID,
		CreatedAt:      time.Now(),
		CardInstanceID: args.CardInstanceID,
		NewOwnerID:     args.NewOwnerID,
	}
	return nil
}

func (r *AuctionRepository) FindPendingTransfer(_ context.Context, auctionID int64) (*domain.PendingTransfer, error) {
	defer r.a.lock()()

	transfer, ok := r.a.data.transfers[auctionID]
	if !ok {
		return nil, notFound("finding pending transfer of auction %d", auctionID)
	}
	return &transfer, nil
}

func (r *AuctionRepository) DeletePendingTransfer(_ context.Context, auctionID int64) error {
	defer r.a.lock()()

	delete(r.a.data.transfers, auctionID)
	return nil
}

func (r *AuctionRepository) save(auction domain.Auction) *domain.Auction {
	auction.Version++
	auction.UpdatedAt = time.Now()
	r.a.data.auctions[auction.ID] = auction
	return &auction
}

func sortByDeadline(auctions []domain.Auction) {
	slices.SortFunc(auctions, func(x, y domain.Auction) int {
		if c := x.ClosesAt.Compare(y.ClosesAt); c != 0 {
			return c
		}
		return int(x.ID - y.ID)
	})
}

func page[T any](items []T, offset, limit uint) []T {
	if offset >= uint(len(items)) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < uint(len(items)) {
		items = items[:limit]
	}
	return items
}
