package memrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
)

type CardRepository struct {
	a access
}

func (r *CardRepository) FindByID(_ context.Context, id int64) (*domain.CardInstance, error) {
	defer r.a.lock()()

	card, ok := r.a.data.cards[id]
	if !ok {
		return nil, notFound("finding card instance %d", id)
	}
	return &card, nil
}

func (r *CardRepository) Update(_ context.Context, args repoargs.CardUpdate) (*domain.CardInstance, error) {
	defer r.a.lock()()

	card, ok := r.a.data.cards[args.ID]
	if !ok || card.Version != args.ExpectedVersion {
		return nil, conflict("updating card instance %d at version %d", args.ID, args.ExpectedVersion)
	}
	card.OwnerID = args.OwnerID
	card.State = args.State
	card.Version++
	card.UpdatedAt = time.Now()
	r.a.data.cards[card.ID] = card
	return &card, nil
}
