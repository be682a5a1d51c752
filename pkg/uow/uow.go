package uow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepositoryName string
type Repository any
type RepositoryFactory func(DBTX) Repository

type UnitOfWork struct {
	conn         *pgxpool.Pool
	repositories map[RepositoryName]RepositoryFactory
	txOptions    pgx.TxOptions
}

func NewUnitOfWork(conn *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{
		conn:         conn,
		repositories: make(map[RepositoryName]RepositoryFactory),
		txOptions:    pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// SetTxOptions sets the options every new transaction is started with.
func (u *UnitOfWork) SetTxOptions(opts pgx.TxOptions) *UnitOfWork {
	u.txOptions = opts
	return u
}

// Register adds a repository factory. Returns ErrRepositoryAlreadyRegistered if name is taken.
func (u *UnitOfWork) Register(name RepositoryName, factory RepositoryFactory) error {
	if factory == nil {
		return ErrNilFactory
	}
	if _, ok := u.repositories[name]; ok {
		return ErrRepositoryAlreadyRegistered
	}
	u.repositories[name] = factory
	return nil
}

// Do runs fn inside a transaction. The transaction is committed when fn returns nil and rolled back
// otherwise. If ctx already carries a transaction of this UnitOfWork, fn joins it and the outermost
// Do decides the outcome.
func (u *UnitOfWork) Do(ctx context.Context, fn func(context.Context, TX) error) (err error) {
	if outer, ok := TXFromContext(ctx, u); ok {
		return fn(ctx, outer)
	}

	tx, txErr := u.conn.BeginTx(ctx, u.txOptions)
	if txErr != nil {
		return txErr //nolint:wrapcheck
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			if err == nil {
				err = rollbackErr
			} else {
				err = errors.Join(err, rollbackErr)
			}
		}
	}()

	unit := NewTransaction(tx, u.repositories)
	if transErr := fn(WithTX(ctx, u, unit), unit); transErr != nil {
		return transErr
	}
	err = tx.Commit(ctx)
	return
}

// GetRepository returns a repository bound to the pool (no transaction) or ErrRepositoryNotRegistered.
func (u *UnitOfWork) GetRepository(name RepositoryName) (Repository, error) {
	if repoFactory, ok := u.repositories[name]; ok {
		return repoFactory(u.conn), nil
	}
	return nil, ErrRepositoryNotRegistered
}

// GetRepositoryAs returns the repository registered under name converted to T.
// Errors: ErrRepositoryNotRegistered, ErrInvalidRepositoryType.
func GetRepositoryAs[T any](u UOW, name RepositoryName) (T, error) {
	var res T
	repo, err := u.GetRepository(name)
	if err != nil {
		return res, err //nolint:wrapcheck
	}
	r, ok := repo.(T)

	if !ok {
		return res, ErrInvalidRepositoryType
	}

	return r, nil
}
