package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
)

const defaultListLimit = 50

// AuctionService is the auction registry: it opens auctions, lets sellers withdraw them and answers reads.
type AuctionService struct {
	uow         uow.UOW
	auctionRepo AuctionRepository
	bidRepo     BidRepository
	cards       *CardOwnershipService
	notifier    *NotificationService
	policy      BidPolicy
	now         func() time.Time
}

func NewAuctionService(
	u uow.UOW,
	cards *CardOwnershipService,
	notifier *NotificationService,
	policy BidPolicy,
) (*AuctionService, error) {
	auctionRepo, err := uow.GetRepositoryAs[AuctionRepository](u, uow.RepositoryName(repoargs.AuctionRepoName))
	if err != nil {
		return nil, err
	}
	bidRepo, err := uow.GetRepositoryAs[BidRepository](u, uow.RepositoryName(repoargs.BidRepoName))
	if err != nil {
		return nil, err
	}
	return &AuctionService{
		uow:         u,
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		cards:       cards,
		notifier:    notifier,
		policy:      policy,
		now:         time.Now,
	}, nil
}

func (a *AuctionService) SetClock(now func() time.Time) *AuctionService {
	a.now = now
	return a
}

type OpenAuctionArgs struct {
	SellerID       int64
	CardInstanceID int64
	StartPrice     int64
	Duration       time.Duration
}

// Open locks the seller's card and lists it. The auction closes Duration after opening.
func (a *AuctionService) Open(ctx context.Context, args OpenAuctionArgs) (*domain.Auction, error) {
	if args.StartPrice < 0 || args.StartPrice > domain.MaxAmount {
		return nil, fmt.Errorf("opening auction: %w: start price %d", domain.ErrInvalidAmount, args.StartPrice)
	}
	if err := a.policy.ValidateDuration(args.Duration); err != nil {
		return nil, fmt.Errorf("opening auction: %w", err)
	}

	var auction *domain.Auction
	txErr := a.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[AuctionRepository](tx, uow.RepositoryName(repoargs.AuctionRepoName))
		if repoErr != nil {
			return repoErr
		}
		if _, err := a.cards.LockForAuction(c, args.CardInstanceID, args.SellerID); err != nil {
			return err
		}
		openedAt := a.now()
		var err error
		auction, err = repo.Create(c, repoargs.AuctionCreate{
			SellerID:       args.SellerID,
			CardInstanceID: args.CardInstanceID,
			StartPrice:     args.StartPrice,
			OpenedAt:       openedAt,
			ClosesAt:       openedAt.Add(args.Duration),
		})
		if errors.Is(err, domain.ErrDuplicateKey) {
			return fmt.Errorf("%w: card %d is already listed", domain.ErrAlreadyLocked, args.CardInstanceID)
		}
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return nil, fmt.Errorf("opening auction: %w", txErr)
	}
	return auction, nil
}

// Withdraw cancels an auction that nobody has bid on yet and gives the card back to the seller.
func (a *AuctionService) Withdraw(ctx context.Context, auctionID, requesterID int64) (*domain.Auction, error) {
	var withdrawn *domain.Auction
	err := retryOnConflict(ctx, func() error {
		withdrawn = nil
		return a.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
			var err error
			withdrawn, err = a.withdraw(c, tx, auctionID, requesterID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("withdrawing auction %d: %w", auctionID, err)
	}

	a.notifier.Publish(ctx, Notice{
		UserID:     withdrawn.SellerID,
		AuctionID:  &withdrawn.ID,
		Type:       domain.NotificationAuctionCancelled,
		Message:    fmt.Sprintf("Auction #%d was withdrawn, the card is back in your collection", withdrawn.ID),
		Importance: domain.ImportanceLow,
	})
	return withdrawn, nil
}

func (a *AuctionService) withdraw(ctx context.Context, tx uow.TX, auctionID, requesterID int64) (*domain.Auction, error) {
	auctionRepo, err := uow.GetAs[AuctionRepository](tx, uow.RepositoryName(repoargs.AuctionRepoName))
	if err != nil {
		return nil, err
	}
	bidRepo, err := uow.GetAs[BidRepository](tx, uow.RepositoryName(repoargs.BidRepoName))
	if err != nil {
		return nil, err
	}

	auction, err := auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if auction.SellerID != requesterID {
		return nil, fmt.Errorf("%w: auction %d", domain.ErrNotOwner, auction.ID)
	}
	now := a.now()
	if auction.State != domain.AuctionStateActive || !now.Before(auction.ClosesAt) {
		return nil, fmt.Errorf("%w: auction %d is %s", domain.ErrAuctionNotActive, auction.ID, auction.State)
	}

	pending, err := bidRepo.CountPending(ctx, auction.ID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if pending > 0 {
		return nil, fmt.Errorf("%w: %d pending", domain.ErrHasActiveBids, pending)
	}

	withdrawn, err := auctionRepo.Transition(ctx, repoargs.AuctionTransition{
		ID:              auction.ID,
		ExpectedVersion: auction.Version,
		From:            domain.AuctionStateActive,
		To:              domain.AuctionStateWithdrawnByOwner,
		At:              now,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if _, err = a.cards.Unlock(ctx, auction.CardInstanceID); err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// AuctionView auction with its bid book, as shown to clients.
type AuctionView struct {
	Auction     domain.Auction
	LeadingBid  *domain.Bid
	Bids        []domain.Bid
	PendingBids int
	MinimumBid  int64
	TimeLeft    time.Duration
}

func (a *AuctionService) Get(ctx context.Context, auctionID int64) (*AuctionView, error) {
	auction, err := a.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("getting auction %d: %w", auctionID, err)
	}
	bids, err := a.bidRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("getting auction %d: %w", auctionID, err)
	}

	view := AuctionView{
		Auction:    *auction,
		Bids:       bids,
		MinimumBid: a.policy.MinimumNextBid(auction.MinimumBase()),
	}
	for i := range bids {
		if bids[i].State == domain.BidStatePending {
			view.PendingBids++
		}
		if auction.CurrentHighestBidID != nil && bids[i].ID == *auction.CurrentHighestBidID {
			view.LeadingBid = &bids[i]
		}
	}
	if auction.State == domain.AuctionStateActive {
		view.TimeLeft = max(auction.ClosesAt.Sub(a.now()), 0)
	}
	return &view, nil
}

func (a *AuctionService) List(ctx context.Context, filter repoargs.AuctionFilter) ([]domain.Auction, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	auctions, err := a.auctionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	return auctions, nil
}
