package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Transaction struct {
	repositories map[RepositoryName]RepositoryFactory
	tx           pgx.Tx
}

func NewTransaction(tx pgx.Tx, repositories map[RepositoryName]RepositoryFactory) *Transaction {
	return &Transaction{
		repositories: repositories,
		tx:           tx,
	}
}

// Get returns a repository bound to the transaction or ErrRepositoryNotRegistered.
func (t *Transaction) Get(name RepositoryName) (Repository, error) {
	if repo, ok := t.repositories[name]; ok {
		return repo(t.tx), nil
	}
	return nil, ErrRepositoryNotRegistered
}

// GetAs returns the repository registered under name converted to T.
// Errors: ErrRepositoryNotRegistered, ErrInvalidRepositoryType.
func GetAs[T any](t TX, name RepositoryName) (T, error) {
	repo, err := t.Get(name)
	var res T
	if err != nil {
		return res, err //nolint:wrapcheck
	}
	res, ok := repo.(T)
	if !ok {
		return res, ErrInvalidRepositoryType
	}
	return res, nil
}

type txContextKey struct {
	owner any
}

// WithTX stores tx in ctx for owner. Owner is the UOW that opened the transaction, so two
// independent UOW instances never share a transaction by accident.
func WithTX(ctx context.Context, owner any, tx TX) context.Context {
	return context.WithValue(ctx, txContextKey{owner: owner}, tx)
}

// TXFromContext returns the transaction opened by owner, if ctx carries one.
func TXFromContext(ctx context.Context, owner any) (TX, bool) {
	tx, ok := ctx.Value(txContextKey{owner: owner}).(TX)
	return tx, ok
}
