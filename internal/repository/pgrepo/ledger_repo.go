package pgrepo

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const (
	reservationColumns = `id, created_at, updated_at, user_id, auction_id, amount, status`
	transactionColumns = `id, created_at, user_id, amount, concept, reservation_id, related_card_instance_id, external_ref`
)

// LedgerRepository stores accounts, reservations and the append-only transaction log.
type LedgerRepository struct {
	conn uow.DBTX
}

func NewLedgerRepository(conn uow.DBTX) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// LockAccount reads the account row with FOR UPDATE, serialising concurrent reservations of one user.
func (r *LedgerRepository) LockAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	var a domain.Account
	err := r.conn.QueryRow(ctx,
		`SELECT user_id, updated_at, balance FROM accounts WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&a.UserID, &a.UpdatedAt, &a.Balance)
	if err != nil {
		return nil, convertErr(err, "locking account of user %d", userID)
	}
	return &a, nil
}

func (r *LedgerRepository) GetAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	var a domain.Account
	err := r.conn.QueryRow(ctx,
		`SELECT user_id, updated_at, balance FROM accounts WHERE user_id = $1`, userID,
	).Scan(&a.UserID, &a.UpdatedAt, &a.Balance)
	if err != nil {
		return nil, convertErr(err, "getting account of user %d", userID)
	}
	return &a, nil
}

func (r *LedgerRepository) CreateReservation(
	ctx context.Context,
	args repoargs.ReservationCreate,
) (*domain.Reservation, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO reservations (user_id, auction_id, amount)
		VALUES ($1, $2, $3)
		RETURNING `+reservationColumns,
		args.UserID, args.AuctionID, args.Amount,
	)
	reservation, err := scanReservation(row)
	if err != nil {
		return nil, convertErr(err, "creating reservation of user %d", args.UserID)
	}
	return reservation, nil
}

func (r *LedgerRepository) FindReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	reservation, err := scanReservation(
		r.conn.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id),
	)
	if err != nil {
		return nil, convertErr(err, "finding reservation %d", id)
	}
	return reservation, nil
}

func (r *LedgerRepository) TransitionReservation(
	ctx context.Context,
	args repoargs.ReservationTransition,
) (*domain.Reservation, error) {
	row := r.conn.QueryRow(ctx, `
		UPDATE reservations SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+reservationColumns,
		args.ID, args.From, args.To,
	)
	reservation, err := scanReservation(row)
	if err != nil {
		return nil, convertCASErr(err, "moving reservation %d from %s to %s", args.ID, args.From, args.To)
	}
	return reservation, nil
}

func (r *LedgerRepository) SumHeld(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint FROM reservations WHERE user_id = $1 AND status = 'HELD'`, userID,
	).Scan(&sum)
	if err != nil {
		return 0, convertErr(err, "summing held reservations of user %d", userID)
	}
	return sum, nil
}

// CreateTransaction appends the entry and moves the cached balance in one batch. A balance that would
// drop below zero fails with domain.ErrCheckViolation.
func (r *LedgerRepository) CreateTransaction(
	ctx context.Context,
	args repoargs.TransactionCreate,
) (*domain.Transaction, error) {
	batch := new(pgx.Batch)
	batch.Queue(`
		INSERT INTO transactions (user_id, amount, concept, reservation_id, related_card_instance_id, external_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+transactionColumns,
		args.UserID, args.Amount, args.Concept, args.ReservationID, args.RelatedCardInstanceID, args.ExternalRef,
	)
	batch.Queue(`
		INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
		args.UserID, args.Amount,
	)

	br := r.conn.SendBatch(ctx, batch)
	entry, err := scanTransaction(br.QueryRow())
	if err == nil {
		_, err = br.Exec()
	}
	if closeErr := br.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, convertErr(err, "creating %s transaction of user %d", args.Concept, args.UserID)
	}
	return entry, nil
}

// GetTransactions returns the user's ledger, newest first.
func (r *LedgerRepository) GetTransactions(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting transactions of user %d", userID)
	}
	txs, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, convertErr(err, "getting transactions of user %d", userID)
	}
	return txs, nil
}

func (r *LedgerRepository) SumTransactions(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint FROM transactions WHERE user_id = $1`, userID,
	).Scan(&sum)
	if err != nil {
		return 0, convertErr(err, "summing transactions of user %d", userID)
	}
	return sum, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt, &res.UserID, &res.AuctionID, &res.Amount, &res.Status)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &res, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.CreatedAt, &t.UserID, &t.Amount, &t.Concept, &t.ReservationID, &t.RelatedCardInstanceID, &t.ExternalRef,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &t, nil
}
