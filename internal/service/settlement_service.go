package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/sirupsen/logrus"
)

const (
	defaultClosingLease = time.Minute
	releaseLeaseTimeout = 5 * time.Second
)

var errAlreadyFinal = errors.New("auction already final")

type SettlementResult struct {
	AuctionID int64
	Outcome   domain.SettlementOutcomeType
	WinnerID  *int64
	Amount    int64
}

// SettlementService closes expired auctions. Closing is split into three units of work:
//
//  1. claim: ACTIVE -> CLOSING, stamping closing_started_at as a lease;
//  2. funds: settle the winner's reservation, mark losers and release their holds, leave a pending transfer;
//  3. finalize: hand the card over (or unlock it), CLOSING -> CLOSED.
//
// Each step starts with a version checked claim of the auction row, so a worker that lost its lease
// fails instead of writing over the new owner's work. Every step is safe to repeat. A run that failed
// halfway gives its lease back, so the next tick finishes it. A run that died keeps the lease until it
// expires.
type SettlementService struct {
	uow         uow.UOW
	auctionRepo AuctionRepository
	ledger      *LedgerService
	cards       *CardOwnershipService
	notifier    *NotificationService
	lease       time.Duration
	now         func() time.Time
	l           *logrus.Entry
}

func NewSettlementService(
	u uow.UOW,
	ledger *LedgerService,
	cards *CardOwnershipService,
	notifier *NotificationService,
	l *logrus.Logger,
) (*SettlementService, error) {
	auctionRepo, err := uow.GetRepositoryAs[AuctionRepository](u, uow.RepositoryName(repoargs.AuctionRepoName))
	if err != nil {
		return nil, err
	}
	return &SettlementService{
		uow:         u,
		auctionRepo: auctionRepo,
		ledger:      ledger,
		cards:       cards,
		notifier:    notifier,
		lease:       defaultClosingLease,
		now:         time.Now,
		l:           l.WithField("component", "settlement"),
	}, nil
}

func (s *SettlementService) SetClock(now func() time.Time) *SettlementService {
	s.now = now
	return s
}

func (s *SettlementService) SetClosingLease(lease time.Duration) *SettlementService {
	if lease > 0 {
		s.lease = lease
	}
	return s
}

// DueAuctions returns active auctions past their deadline and closing runs whose lease expired.
func (s *SettlementService) DueAuctions(ctx context.Context, limit uint) ([]domain.Auction, error) {
	now := s.now()
	auctions, err := s.auctionRepo.GetDue(ctx, repoargs.AuctionDueFilter{
		Now:         now,
		StaleBefore: now.Add(-s.lease),
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("getting due auctions: %w", err)
	}
	return auctions, nil
}

// Settle runs the closing steps for one auction. An auction that is already final or is being closed
// by someone else is reported as such, not as an error.
func (s *SettlementService) Settle(ctx context.Context, auctionID int64) (*SettlementResult, error) {
	result := SettlementResult{AuctionID: auctionID}

	auction, err := s.claim(ctx, auctionID)
	switch {
	case errors.Is(err, errAlreadyFinal):
		result.Outcome = domain.SettlementAlreadyFinal
		return &result, nil
	case errors.Is(err, domain.ErrAuctionNotDue), errors.Is(err, domain.ErrAuctionClaimed):
		s.l.WithField("auction_id", auctionID).WithError(err).Debug("settlement skipped")
		result.Outcome = domain.SettlementSkipped
		return &result, nil
	case err != nil:
		return nil, fmt.Errorf("settling auction %d: %w", auctionID, err)
	}

	funded, err := s.settleFunds(ctx, auction)
	if err != nil {
		s.releaseLease(ctx, auction)
		return nil, fmt.Errorf("settling auction %d: %w", auctionID, err)
	}

	final, notices, err := s.finalize(ctx, funded)
	if err != nil {
		s.releaseLease(ctx, funded)
		return nil, fmt.Errorf("settling auction %d: %w", auctionID, err)
	}

	s.notifier.Publish(ctx, notices...)
	return final, nil
}

// claim moves a due auction into CLOSING or takes over a closing run whose lease expired.
func (s *SettlementService) claim(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	var claimed *domain.Auction
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[AuctionRepository](tx, uow.RepositoryName(repoargs.AuctionRepoName))
		if repoErr != nil {
			return repoErr
		}
		auction, err := repo.FindByID(c, auctionID)
		if err != nil {
			return err //nolint:wrapcheck
		}

		now := s.now()
		switch auction.State {
		case domain.AuctionStateWithdrawnByOwner, domain.AuctionStateClosed:
			return errAlreadyFinal
		case domain.AuctionStateActive:
			if now.Before(auction.ClosesAt) {
				return fmt.Errorf("%w: closes at %s", domain.ErrAuctionNotDue, auction.ClosesAt)
			}
		case domain.AuctionStateClosing:
			if auction.ClosingStartedAt != nil && auction.ClosingStartedAt.After(now.Add(-s.lease)) {
				return fmt.Errorf("%w: since %s", domain.ErrAuctionClaimed, auction.ClosingStartedAt)
			}
		}

		claimed, err = repo.Claim(c, repoargs.AuctionClaim{
			ID:              auction.ID,
			ExpectedVersion: auction.Version,
			ClaimedAt:       now,
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			// a bid or another worker moved the row between the read and the claim
			return fmt.Errorf("%w: %s", domain.ErrAuctionClaimed, err.Error())
		}
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return nil, txErr //nolint:wrapcheck
	}
	return claimed, nil
}

// fence re-claims the auction at the version this worker last saw and refreshes the lease.
func (s *SettlementService) fence(ctx context.Context, repo AuctionRepository, auction *domain.Auction) (*domain.Auction, error) {
	fenced, err := repo.Claim(ctx, repoargs.AuctionClaim{
		ID:              auction.ID,
		ExpectedVersion: auction.Version,
		ClaimedAt:       s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("lost closing lease: %w", err)
	}
	return fenced, nil
}

// releaseLease back-dates the lease of a failed run so that the next tick claims the auction again.
// Nothing changes when the run already lost the auction to another worker.
func (s *SettlementService) releaseLease(ctx context.Context, auction *domain.Auction) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseLeaseTimeout)
	defer cancel()

	err := s.uow.Do(c, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[AuctionRepository](tx, uow.RepositoryName(repoargs.AuctionRepoName))
		if repoErr != nil {
			return repoErr
		}
		_, err := repo.Claim(c, repoargs.AuctionClaim{
			ID:              auction.ID,
			ExpectedVersion: auction.Version,
			ClaimedAt:       s.now().Add(-2 * s.lease),
		})
		return err //nolint:wrapcheck
	})
	if err != nil && !errors.Is(err, domain.ErrVersionConflict) {
		s.l.WithField("auction_id", auction.ID).WithError(err).
			Warn("closing lease was not released, the auction waits for the lease to expire")
	}
}

// settleFunds pays the seller from the winning reservation and releases everyone else.
func (s *SettlementService) settleFunds(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	var fenced *domain.Auction
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		auctionRepo, bidRepo, repoErr := auctionBidRepos(tx)
		if repoErr != nil {
			return repoErr
		}
		var err error
		if fenced, err = s.fence(c, auctionRepo, auction); err != nil {
			return err
		}

		var winnerID int64
		if fenced.CurrentHighestBidID != nil {
			winner, findErr := bidRepo.FindByID(c, *fenced.CurrentHighestBidID)
			if findErr != nil {
				return findErr //nolint:wrapcheck
			}
			winnerID = winner.ID
			if err = s.payWinner(c, auctionRepo, bidRepo, fenced, winner); err != nil {
				return err
			}
		}

		pending, err := bidRepo.GetPendingByAuctionID(c, fenced.ID)
		if err != nil {
			return err //nolint:wrapcheck
		}
		for _, bid := range pending {
			if bid.ID == winnerID {
				continue
			}
			if _, err = bidRepo.Transition(c, repoargs.BidTransition{
				ID:   bid.ID,
				From: domain.BidStatePending,
				To:   domain.BidStateLost,
			}); err != nil {
				return err //nolint:wrapcheck
			}
			if err = s.ledger.Release(c, ReleaseArgs{
				ReservationID:  bid.ReservationID,
				CardInstanceID: fenced.CardInstanceID,
				Concept:        domain.ConceptBidLost,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("settling funds: %w", txErr)
	}
	return fenced, nil
}

func (s *SettlementService) payWinner(
	ctx context.Context,
	auctionRepo AuctionRepository,
	bidRepo BidRepository,
	auction *domain.Auction,
	winner *domain.Bid,
) error {
	switch winner.State {
	case domain.BidStateWon:
		// paid by an earlier run
		return nil
	case domain.BidStatePending:
	default:
		return fmt.Errorf("leading bid %d is %s", winner.ID, winner.State)
	}

	if _, err := s.ledger.Settle(ctx, SettleArgs{
		SellerID:       auction.SellerID,
		ReservationID:  winner.ReservationID,
		Amount:         winner.Amount,
		CardInstanceID: auction.CardInstanceID,
	}); err != nil {
		return err
	}
	if _, err := bidRepo.Transition(ctx, repoargs.BidTransition{
		ID:   winner.ID,
		From: domain.BidStatePending,
		To:   domain.BidStateWon,
	}); err != nil {
		return err //nolint:wrapcheck
	}
	return auctionRepo.CreatePendingTransfer(ctx, repoargs.PendingTransferCreate{ //nolint:wrapcheck
		AuctionID:      auction.ID,
		CardInstanceID: auction.CardInstanceID,
		NewOwnerID:     winner.BidderID,
	})
}

// finalize moves the card, closes the auction and prepares notices for everyone involved.
func (s *SettlementService) finalize(
	ctx context.Context,
	auction *domain.Auction,
) (*SettlementResult, []Notice, error) {
	result := SettlementResult{AuctionID: auction.ID}
	var notices []Notice

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		auctionRepo, bidRepo, repoErr := auctionBidRepos(tx)
		if repoErr != nil {
			return repoErr
		}
		fenced, err := s.fence(c, auctionRepo, auction)
		if err != nil {
			return err
		}

		if err = s.moveCard(c, auctionRepo, fenced, &result); err != nil {
			return err
		}

		closed, err := auctionRepo.Transition(c, repoargs.AuctionTransition{
			ID:              fenced.ID,
			ExpectedVersion: fenced.Version,
			From:            domain.AuctionStateClosing,
			To:              domain.AuctionStateClosed,
			At:              s.now(),
		})
		if err != nil {
			return err //nolint:wrapcheck
		}

		bids, err := bidRepo.GetByAuctionID(c, closed.ID)
		if err != nil {
			return err //nolint:wrapcheck
		}
		notices = closingNotices(closed, &result, bids)
		return nil
	})
	if txErr != nil {
		return nil, nil, fmt.Errorf("finalizing: %w", txErr)
	}
	return &result, notices, nil
}

func (s *SettlementService) moveCard(
	ctx context.Context,
	auctionRepo AuctionRepository,
	auction *domain.Auction,
	result *SettlementResult,
) error {
	transfer, err := auctionRepo.FindPendingTransfer(ctx, auction.ID)
	switch {
	case err == nil:
		if _, err = s.cards.TransferOwner(ctx, transfer.CardInstanceID, transfer.NewOwnerID); err != nil {
			return err
		}
		if err = auctionRepo.DeletePendingTransfer(ctx, auction.ID); err != nil {
			return err //nolint:wrapcheck
		}
		result.Outcome = domain.SettlementSold
		result.WinnerID = &transfer.NewOwnerID
		result.Amount = auction.HighestAmount
		return nil
	case !errors.Is(err, domain.ErrRecordNotFound):
		return err //nolint:wrapcheck
	case auction.CurrentHighestBidID != nil:
		return fmt.Errorf("%w: auction %d has a winner but no pending transfer", domain.ErrTransferIncomplete, auction.ID)
	}

	if _, err = s.cards.Unlock(ctx, auction.CardInstanceID); err != nil {
		return err
	}
	result.Outcome = domain.SettlementUnsold
	return nil
}

func closingNotices(auction *domain.Auction, result *SettlementResult, bids []domain.Bid) []Notice {
	if result.Outcome == domain.SettlementUnsold {
		return []Notice{{
			UserID:     auction.SellerID,
			AuctionID:  &auction.ID,
			Type:       domain.NotificationAuctionClosedUnsold,
			Message:    fmt.Sprintf("Auction #%d ended without bids, the card is back in your collection", auction.ID),
			Importance: domain.ImportanceNormal,
		}}
	}

	notices := []Notice{
		{
			UserID:     auction.SellerID,
			AuctionID:  &auction.ID,
			Type:       domain.NotificationAuctionClosedWon,
			Message:    fmt.Sprintf("Your card sold on auction #%d for %d Zen", auction.ID, result.Amount),
			Importance: domain.ImportanceHigh,
		},
		{
			UserID:     *result.WinnerID,
			AuctionID:  &auction.ID,
			Type:       domain.NotificationAuctionClosedWon,
			Message:    fmt.Sprintf("You won auction #%d for %d Zen", auction.ID, result.Amount),
			Importance: domain.ImportanceHigh,
		},
	}
	told := map[int64]struct{}{*result.WinnerID: {}}
	for _, bid := range bids {
		if bid.State != domain.BidStateLost {
			continue
		}
		if _, ok := told[bid.BidderID]; ok {
			continue
		}
		told[bid.BidderID] = struct{}{}
		notices = append(notices, Notice{
			UserID:     bid.BidderID,
			AuctionID:  &auction.ID,
			Type:       domain.NotificationBidLost,
			Message:    fmt.Sprintf("Auction #%d ended, your bid of %d Zen was returned", auction.ID, bid.Amount),
			Importance: domain.ImportanceNormal,
		})
	}
	return notices
}
