package memrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
)

var ErrForeignFactory = errors.New("[memrepo] sql repository factories cannot run on memory storage")

type factory func(a access) uow.Repository

// UnitOfWork keeps all data in process memory. Units of work run one at a time under a single lock
// and are rolled back by restoring the snapshot taken on entry.
type UnitOfWork struct {
	mu           sync.Mutex
	data         *store
	repositories map[uow.RepositoryName]factory
}

func New() *UnitOfWork {
	return &UnitOfWork{
		data: newStore(),
		repositories: map[uow.RepositoryName]factory{
			uow.RepositoryName(repoargs.AuctionRepoName): func(a access) uow.Repository {
				return &AuctionRepository{a: a}
			},
			uow.RepositoryName(repoargs.BidRepoName): func(a access) uow.Repository {
				return &BidRepository{a: a}
			},
			uow.RepositoryName(repoargs.LedgerRepoName): func(a access) uow.Repository {
				return &LedgerRepository{a: a}
			},
			uow.RepositoryName(repoargs.CardRepoName): func(a access) uow.Repository {
				return &CardRepository{a: a}
			},
			uow.RepositoryName(repoargs.NotificationRepoName): func(a access) uow.Repository {
				return &NotificationRepository{a: a}
			},
		},
	}
}

// Register is part of uow.UOW. Every repository is built in, so it only reports name clashes.
func (u *UnitOfWork) Register(name uow.RepositoryName, _ uow.RepositoryFactory) error {
	if _, ok := u.repositories[name]; ok {
		return uow.ErrRepositoryAlreadyRegistered
	}
	return ErrForeignFactory
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	if outer, ok := uow.TXFromContext(ctx, u); ok {
		return fn(ctx, outer)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	snapshot := u.data.snapshot()
	tx := &transaction{u: u}
	if err := fn(uow.WithTX(ctx, u, tx), tx); err != nil {
		*u.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		*u.data = snapshot
		return err //nolint:wrapcheck
	}
	return nil
}

func (u *UnitOfWork) GetRepository(name uow.RepositoryName) (uow.Repository, error) {
	f, ok := u.repositories[name]
	if !ok {
		return nil, uow.ErrRepositoryNotRegistered
	}
	return f(access{data: u.data, mu: &u.mu}), nil
}

// SeedCard creates a card instance owned by ownerID. Cards come from the inventory, never from the engine.
func (u *UnitOfWork) SeedCard(ownerID, definitionID int64) domain.CardInstance {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()
	card := domain.CardInstance{
		ID:               u.data.nextID(),
		CreatedAt:        now,
		UpdatedAt:        now,
		CardDefinitionID: definitionID,
		OwnerID:          ownerID,
		State:            domain.CardStateOwned,
		Version:          1,
	}
	u.data.cards[card.ID] = card
	return card
}

type transaction struct {
	u *UnitOfWork
}

func (t *transaction) Get(name uow.RepositoryName) (uow.Repository, error) {
	f, ok := t.u.repositories[name]
	if !ok {
		return nil, uow.ErrRepositoryNotRegistered
	}
	return f(access{data: t.u.data}), nil
}
