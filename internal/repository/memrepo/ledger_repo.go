package memrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
)

type LedgerRepository struct {
	a access
}

// LockAccount is GetAccount: the unit of work lock already serialises writers.
func (r *LedgerRepository) LockAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	return r.GetAccount(ctx, userID)
}

func (r *LedgerRepository) GetAccount(_ context.Context, userID int64) (*domain.Account, error) {
	defer r.a.lock()()

	account, ok := r.a.data.accounts[userID]
	if !ok {
		return nil, notFound("getting account of user %d", userID)
	}
	return &account, nil
}

func (r *LedgerRepository) CreateReservation(
	_ context.Context,
	args repoargs.ReservationCreate,
) (*domain.Reservation, error) {
	defer r.a.lock()()

	now := time.Now()
	reservation := domain.Reservation{
		ID:        r.a.data.nextID(),
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    args.UserID,
		AuctionID: args.AuctionID,
		Amount:    args.Amount,
		Status:    domain.ReservationStatusHeld,
	}
	r.a.data.reservations[reservation.ID] = reservation
	return &reservation, nil
}

func (r *LedgerRepository) FindReservation(_ context.Context, id int64) (*domain.Reservation, error) {
	defer r.a.lock()()

	reservation, ok := r.a.data.reservations[id]
	if !ok {
		return nil, notFound("finding reservation %d", id)
	}
	return &reservation, nil
}

func (r *LedgerRepository) TransitionReservation(
	_ context.Context,
	args repoargs.ReservationTransition,
) (*domain.Reservation, error) {
	defer r.a.lock()()

	reservation, ok := r.a.data.reservations[args.ID]
	if !ok || reservation.Status != args.From {
		return nil, conflict("moving reservation %d from %s to %s", args.ID, args.From, args.To)
	}
	reservation.Status = args.To
	reservation.UpdatedAt = time.Now()
	r.a.data.reservations[reservation.ID] = reservation
	return &reservation, nil
}

func (r *LedgerRepository) SumHeld(_ context.Context, userID int64) (int64, error) {
	defer r.a.lock()()

	var sum int64
	for _, reservation := range r.a.data.reservations {
		if reservation.UserID == userID && reservation.Status == domain.ReservationStatusHeld {
			sum += reservation.Amount
		}
	}
	return sum, nil
}

func (r *LedgerRepository) CreateTransaction(
	_ context.Context,
	args repoargs.TransactionCreate,
) (*domain.Transaction, error) {
	defer r.a.lock()()

	if args.ExternalRef != nil {
		for _, t := range r.a.data.transactions {
			if t.ExternalRef != nil && *t.ExternalRef == *args.ExternalRef {
				return nil, duplicate("creating transaction with external ref %s", *args.ExternalRef)
			}
		}
	}

	now := time.Now()
	account := r.a.data.accounts[args.UserID]
	if account.Balance+args.Amount < 0 {
		return nil, fmt.Errorf(
			"[memrepo/creating %s transaction of user %d] %w", args.Concept, args.UserID, domain.ErrCheckViolation,
		)
	}
	account.UserID = args.UserID
	account.Balance += args.Amount
	account.UpdatedAt = now
	r.a.data.accounts[args.UserID] = account

	entry := domain.Transaction{
		ID:                    r.a.data.nextID(),
		CreatedAt:             now,
		UserID:                args.UserID,
		Amount:                args.Amount,
		Concept:               args.Concept,
		ReservationID:         args.ReservationID,
		RelatedCardInstanceID: args.RelatedCardInstanceID,
		ExternalRef:           args.ExternalRef,
	}
	r.a.data.transactions = append(r.a.data.transactions, entry)
	return &entry, nil
}

// GetTransactions returns the user's ledger, newest first.
func (r *LedgerRepository) GetTransactions(_ context.Context, userID int64) ([]domain.Transaction, error) {
	defer r.a.lock()()

	result := make([]domain.Transaction, 0)
	for i := len(r.a.data.transactions) - 1; i >= 0; i-- {
		if r.a.data.transactions[i].UserID == userID {
			result = append(result, r.a.data.transactions[i])
		}
	}
	return result, nil
}

func (r *LedgerRepository) SumTransactions(_ context.Context, userID int64) (int64, error) {
	defer r.a.lock()()

	var sum int64
	for _, t := range r.a.data.transactions {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}
