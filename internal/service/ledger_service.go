package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
)

// LedgerService owns every change of a user's Zen balance. All methods run in the caller's unit of work
// when ctx carries one, so a reservation commits or rolls back together with the bid it backs.
type LedgerService struct {
	uow        uow.UOW
	ledgerRepo LedgerRepository
}

func NewLedgerService(u uow.UOW) (*LedgerService, error) {
	ledgerRepo, err := uow.GetRepositoryAs[LedgerRepository](u, uow.RepositoryName(repoargs.LedgerRepoName))
	if err != nil {
		return nil, err
	}
	return &LedgerService{
		uow:        u,
		ledgerRepo: ledgerRepo,
	}, nil
}

type ReserveArgs struct {
	UserID         int64
	AuctionID      int64
	CardInstanceID int64
	Amount         int64
}

// Reserve holds amount of the user's balance. The hold is a BID_RESERVED debit plus a HELD reservation,
// so the available balance drops immediately.
func (l *LedgerService) Reserve(ctx context.Context, args ReserveArgs) (*domain.Reservation, error) {
	if args.Amount <= 0 {
		return nil, fmt.Errorf("%w: reserve %d", domain.ErrInvalidAmount, args.Amount)
	}

	var reservation *domain.Reservation
	txErr := l.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[LedgerRepository](tx, uow.RepositoryName(repoargs.LedgerRepoName))
		if repoErr != nil {
			return repoErr
		}

		account, err := repo.LockAccount(c, args.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d has no account", domain.ErrInsufficientFunds, args.UserID)
			}
			return err //nolint:wrapcheck
		}
		if account.Balance < args.Amount {
			return fmt.Errorf(
				"%w: available %d, requested %d", domain.ErrInsufficientFunds, account.Balance, args.Amount,
			)
		}

		reservation, err = repo.CreateReservation(c, repoargs.ReservationCreate{
			UserID:    args.UserID,
			AuctionID: args.AuctionID,
			Amount:    args.Amount,
		})
		if err != nil {
			return err //nolint:wrapcheck
		}

		_, err = repo.CreateTransaction(c, repoargs.TransactionCreate{
			UserID:                args.UserID,
			Amount:                -args.Amount,
			Concept:               domain.ConceptBidReserved,
			ReservationID:         &reservation.ID,
			RelatedCardInstanceID: &args.CardInstanceID,
		})
		if errors.Is(err, domain.ErrCheckViolation) {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, err.Error())
		}
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return nil, fmt.Errorf("reserving funds: %w", txErr)
	}
	return reservation, nil
}

type ReleaseArgs struct {
	ReservationID  int64
	CardInstanceID int64
	Concept        domain.ConceptType
}

// Release returns a held amount to its owner with a compensating credit. Releasing an already released
// reservation is a no-op. A settled reservation cannot be released.
func (l *LedgerService) Release(ctx context.Context, args ReleaseArgs) error {
	txErr := l.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[LedgerRepository](tx, uow.RepositoryName(repoargs.LedgerRepoName))
		if repoErr != nil {
			return repoErr
		}

		reservation, err := findReservation(c, repo, args.ReservationID)
		if err != nil {
			return err
		}
		switch reservation.Status {
		case domain.ReservationStatusReleased:
			return nil
		case domain.ReservationStatusSettled:
			return fmt.Errorf("%w: reservation %d is settled", domain.ErrReservationNotFound, reservation.ID)
		case domain.ReservationStatusHeld:
		}

		if _, err = repo.TransitionReservation(c, repoargs.ReservationTransition{
			ID:   reservation.ID,
			From: domain.ReservationStatusHeld,
			To:   domain.ReservationStatusReleased,
		}); err != nil {
			return err //nolint:wrapcheck
		}

		_, err = repo.CreateTransaction(c, repoargs.TransactionCreate{
			UserID:                reservation.UserID,
			Amount:                reservation.Amount,
			Concept:               args.Concept,
			ReservationID:         &reservation.ID,
			RelatedCardInstanceID: &args.CardInstanceID,
		})
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return fmt.Errorf("releasing reservation %d: %w", args.ReservationID, txErr)
	}
	return nil
}

type SettleArgs struct {
	SellerID       int64
	ReservationID  int64
	Amount         int64
	CardInstanceID int64
}

// Settle turns a held reservation into a permanent payment: the buyer keeps the BID_RESERVED debit and the
// seller receives an AUCTION_SOLD credit of the same amount.
func (l *LedgerService) Settle(ctx context.Context, args SettleArgs) (*domain.Transaction, error) {
	var credit *domain.Transaction
	txErr := l.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[LedgerRepository](tx, uow.RepositoryName(repoargs.LedgerRepoName))
		if repoErr != nil {
			return repoErr
		}

		reservation, err := findReservation(c, repo, args.ReservationID)
		if err != nil {
			return err
		}
		if reservation.Status != domain.ReservationStatusHeld {
			return fmt.Errorf(
				"%w: reservation %d is %s", domain.ErrReservationNotFound, reservation.ID, reservation.Status,
			)
		}
		if reservation.Amount != args.Amount {
			return fmt.Errorf(
				"%w: reservation %d holds %d, settling %d",
				domain.ErrInvalidAmount, reservation.ID, reservation.Amount, args.Amount,
			)
		}

		if _, err = repo.TransitionReservation(c, repoargs.ReservationTransition{
			ID:   reservation.ID,
			From: domain.ReservationStatusHeld,
			To:   domain.ReservationStatusSettled,
		}); err != nil {
			return err //nolint:wrapcheck
		}

		credit, err = repo.CreateTransaction(c, repoargs.TransactionCreate{
			UserID:                args.SellerID,
			Amount:                args.Amount,
			Concept:               domain.ConceptAuctionSold,
			ReservationID:         &reservation.ID,
			RelatedCardInstanceID: &args.CardInstanceID,
		})
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return nil, fmt.Errorf("settling reservation %d: %w", args.ReservationID, txErr)
	}
	return credit, nil
}

type CreditArgs struct {
	UserID      int64
	Amount      int64
	Concept     domain.ConceptType
	ExternalRef string
}

var creditConcepts = map[domain.ConceptType]struct{}{
	domain.ConceptPaymentConfirmed:   {},
	domain.ConceptGift:               {},
	domain.ConceptPurchaseByCardPack: {},
}

// Credit applies an externally confirmed top-up. A repeated ExternalRef yields domain.ErrDuplicateKey and
// leaves the balance untouched.
func (l *LedgerService) Credit(ctx context.Context, args CreditArgs) (*domain.Transaction, error) {
	if args.Amount == 0 {
		return nil, fmt.Errorf("%w: credit of zero", domain.ErrInvalidAmount)
	}
	if _, ok := creditConcepts[args.Concept]; !ok {
		return nil, fmt.Errorf("%w: concept %s cannot be credited directly", domain.ErrInvalidAmount, args.Concept)
	}
	// card pack purchases are the only direct debit
	if (args.Amount < 0) != (args.Concept == domain.ConceptPurchaseByCardPack) {
		return nil, fmt.Errorf("%w: sign of %d does not match %s", domain.ErrInvalidAmount, args.Amount, args.Concept)
	}

	var entry *domain.Transaction
	txErr := l.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[LedgerRepository](tx, uow.RepositoryName(repoargs.LedgerRepoName))
		if repoErr != nil {
			return repoErr
		}
		var ref *string
		if args.ExternalRef != "" {
			ref = &args.ExternalRef
		}
		var err error
		entry, err = repo.CreateTransaction(c, repoargs.TransactionCreate{
			UserID:      args.UserID,
			Amount:      args.Amount,
			Concept:     args.Concept,
			ExternalRef: ref,
		})
		if errors.Is(err, domain.ErrCheckViolation) {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, err.Error())
		}
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return nil, fmt.Errorf("crediting user %d: %w", args.UserID, txErr)
	}
	return entry, nil
}

type UserBalance struct {
	UserID    int64
	Available int64
	Reserved  int64
}

// Balance returns the spendable balance and the sum currently held by pending bids.
func (l *LedgerService) Balance(ctx context.Context, userID int64) (*UserBalance, error) {
	balance := UserBalance{UserID: userID}

	account, err := l.ledgerRepo.GetAccount(ctx, userID)
	switch {
	case err == nil:
		balance.Available = account.Balance
	case errors.Is(err, domain.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("getting balance: %w", err)
	}

	held, err := l.ledgerRepo.SumHeld(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting balance: %w", err)
	}
	balance.Reserved = held
	return &balance, nil
}

// Transactions returns the user's ledger, newest first.
func (l *LedgerService) Transactions(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	txs, err := l.ledgerRepo.GetTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting transactions: %w", err)
	}
	return txs, nil
}

func findReservation(ctx context.Context, repo LedgerRepository, id int64) (*domain.Reservation, error) {
	reservation, err := repo.FindReservation(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrReservationNotFound, id)
		}
		return nil, err //nolint:wrapcheck
	}
	return reservation, nil
}
