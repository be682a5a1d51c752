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

// BidService is the bid book: it accepts and withdraws bids and keeps each auction's leader current.
type BidService struct {
	uow      uow.UOW
	bidRepo  BidRepository
	ledger   *LedgerService
	notifier *NotificationService
	policy   BidPolicy
	now      func() time.Time
}

func NewBidService(
	u uow.UOW,
	ledger *LedgerService,
	notifier *NotificationService,
	policy BidPolicy,
) (*BidService, error) {
	bidRepo, err := uow.GetRepositoryAs[BidRepository](u, uow.RepositoryName(repoargs.BidRepoName))
	if err != nil {
		return nil, err
	}
	return &BidService{
		uow:      u,
		bidRepo:  bidRepo,
		ledger:   ledger,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}, nil
}

func (b *BidService) SetClock(now func() time.Time) *BidService {
	b.now = now
	return b
}

type PlaceBidArgs struct {
	AuctionID int64
	BidderID  int64
	Amount    int64
}

// PlaceBid validates the offer, reserves the amount and makes the bid the new leader, all in one
// unit of work. The previous leader, if any, stays pending and is told they were outbid.
//
// The auction row is updated with a version check: when another bid or a closing run got there first,
// the whole attempt is repeated once against fresh state.
func (b *BidService) PlaceBid(ctx context.Context, args PlaceBidArgs) (*domain.Bid, error) {
	if args.Amount <= 0 || args.Amount > domain.MaxAmount {
		return nil, fmt.Errorf("placing bid: %w: %d", domain.ErrInvalidAmount, args.Amount)
	}

	var bid, outbid *domain.Bid
	err := retryOnConflict(ctx, func() error {
		bid, outbid = nil, nil
		return b.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
			var err error
			bid, outbid, err = b.placeBid(c, tx, args)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("placing bid: %w", err)
	}

	notices := []Notice{{
		UserID:     bid.BidderID,
		AuctionID:  &bid.AuctionID,
		Type:       domain.NotificationBidAccepted,
		Message:    fmt.Sprintf("Your bid of %d Zen on auction #%d is leading", bid.Amount, bid.AuctionID),
		Importance: domain.ImportanceNormal,
	}}
	if outbid != nil {
		notices = append(notices, Notice{
			UserID:     outbid.BidderID,
			AuctionID:  &outbid.AuctionID,
			Type:       domain.NotificationBidOutbid,
			Message:    fmt.Sprintf("You were outbid on auction #%d, the leading bid is now %d Zen", bid.AuctionID, bid.Amount),
			Importance: domain.ImportanceHigh,
		})
	}
	b.notifier.Publish(ctx, notices...)

	return bid, nil
}

func (b *BidService) placeBid(ctx context.Context, tx uow.TX, args PlaceBidArgs) (*domain.Bid, *domain.Bid, error) {
	auctionRepo, bidRepo, repoErr := auctionBidRepos(tx)
	if repoErr != nil {
		return nil, nil, repoErr
	}

	auction, err := auctionRepo.FindByID(ctx, args.AuctionID)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}
	now := b.now()
	if auction.State != domain.AuctionStateActive || !now.Before(auction.ClosesAt) {
		return nil, nil, fmt.Errorf("%w: auction %d is %s", domain.ErrAuctionNotActive, auction.ID, auction.State)
	}
	if auction.SellerID == args.BidderID {
		return nil, nil, domain.ErrSelfBid
	}
	base := auction.MinimumBase()
	if minimum := b.policy.MinimumNextBid(base); args.Amount < minimum || args.Amount <= base {
		return nil, nil, domain.NewBidTooLowError(minimum)
	}

	pending, err := bidRepo.GetPendingByAuctionID(ctx, auction.ID)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}
	for _, p := range pending {
		if p.BidderID == args.BidderID {
			return nil, nil, fmt.Errorf("%w: bid %d is still pending", domain.ErrDuplicateBid, p.ID)
		}
	}

	reservation, err := b.ledger.Reserve(ctx, ReserveArgs{
		UserID:         args.BidderID,
		AuctionID:      auction.ID,
		CardInstanceID: auction.CardInstanceID,
		Amount:         args.Amount,
	})
	if err != nil {
		return nil, nil, err
	}

	bid, err := bidRepo.Create(ctx, repoargs.BidCreate{
		AuctionID:     auction.ID,
		BidderID:      args.BidderID,
		Amount:        args.Amount,
		ReservationID: reservation.ID,
		PlacedAt:      now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrDuplicateBid, err.Error())
		}
		return nil, nil, err //nolint:wrapcheck
	}

	if _, err = auctionRepo.UpdateLeader(ctx, repoargs.AuctionLeaderUpdate{
		ID:              auction.ID,
		ExpectedVersion: auction.Version,
		BidID:           &bid.ID,
		Amount:          bid.Amount,
	}); err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	var outbid *domain.Bid
	if auction.CurrentHighestBidID != nil {
		for i := range pending {
			if pending[i].ID == *auction.CurrentHighestBidID {
				outbid = &pending[i]
				break
			}
		}
	}
	return bid, outbid, nil
}

// WithdrawBid cancels a pending bid and releases its reservation. Withdrawing the leader promotes the
// next highest pending bid. The auction version is bumped either way so a concurrent closing run sees it.
func (b *BidService) WithdrawBid(ctx context.Context, bidID, requesterID int64) (*domain.Bid, error) {
	var withdrawn *domain.Bid
	err := retryOnConflict(ctx, func() error {
		withdrawn = nil
		return b.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
			var err error
			withdrawn, err = b.withdrawBid(c, tx, bidID, requesterID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("withdrawing bid %d: %w", bidID, err)
	}
	return withdrawn, nil
}

func (b *BidService) withdrawBid(ctx context.Context, tx uow.TX, bidID, requesterID int64) (*domain.Bid, error) {
	auctionRepo, bidRepo, repoErr := auctionBidRepos(tx)
	if repoErr != nil {
		return nil, repoErr
	}

	bid, err := bidRepo.FindByID(ctx, bidID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if bid.BidderID != requesterID {
		return nil, fmt.Errorf("%w: bid %d", domain.ErrNotOwner, bid.ID)
	}
	if bid.State != domain.BidStatePending {
		return nil, fmt.Errorf("%w: bid %d is %s", domain.ErrNotPending, bid.ID, bid.State)
	}

	auction, err := auctionRepo.FindByID(ctx, bid.AuctionID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if auction.State != domain.AuctionStateActive || !b.now().Before(auction.ClosesAt) {
		return nil, fmt.Errorf("%w: auction %d is %s", domain.ErrAuctionNotActive, auction.ID, auction.State)
	}

	withdrawn, err := bidRepo.Transition(ctx, repoargs.BidTransition{
		ID:   bid.ID,
		From: domain.BidStatePending,
		To:   domain.BidStateWithdrawn,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err = b.ledger.Release(ctx, ReleaseArgs{
		ReservationID:  bid.ReservationID,
		CardInstanceID: auction.CardInstanceID,
		Concept:        domain.ConceptBidWithdrawn,
	}); err != nil {
		return nil, err
	}

	leader := repoargs.AuctionLeaderUpdate{
		ID:              auction.ID,
		ExpectedVersion: auction.Version,
		BidID:           auction.CurrentHighestBidID,
		Amount:          auction.HighestAmount,
	}
	if auction.CurrentHighestBidID != nil && *auction.CurrentHighestBidID == bid.ID {
		pending, pendingErr := bidRepo.GetPendingByAuctionID(ctx, auction.ID)
		if pendingErr != nil {
			return nil, pendingErr //nolint:wrapcheck
		}
		leader.BidID, leader.Amount = nil, 0
		if len(pending) > 0 {
			leader.BidID, leader.Amount = &pending[0].ID, pending[0].Amount
		}
	}
	if _, err = auctionRepo.UpdateLeader(ctx, leader); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawn, nil
}

// BidsForAuction returns every bid of the auction, highest first.
func (b *BidService) BidsForAuction(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	bids, err := b.bidRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("getting bids of auction %d: %w", auctionID, err)
	}
	return bids, nil
}

func auctionBidRepos(tx uow.TX) (AuctionRepository, BidRepository, error) {
	auctionRepo, err := uow.GetAs[AuctionRepository](tx, uow.RepositoryName(repoargs.AuctionRepoName))
	if err != nil {
		return nil, nil, err
	}
	bidRepo, err := uow.GetAs[BidRepository](tx, uow.RepositoryName(repoargs.BidRepoName))
	if err != nil {
		return nil, nil, err
	}
	return auctionRepo, bidRepo, nil
}
