package pgrepo

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const cardColumns = `id, created_at, updated_at, card_definition_id, owner_id, state, version`

type CardRepository struct {
	conn uow.DBTX
}

func NewCardRepository(conn uow.DBTX) *CardRepository {
	return &CardRepository{conn: conn}
}

func (r *CardRepository) FindByID(ctx context.Context, id int64) (*domain.CardInstance, error) {
	card, err := scanCard(r.conn.QueryRow(ctx, `SELECT `+cardColumns+` FROM card_instances WHERE id = $1`, id))
	if err != nil {
		return nil, convertErr(err, "finding card instance %d", id)
	}
	return card, nil
}

func (r *CardRepository) Update(ctx context.Context, args repoargs.CardUpdate) (*domain.CardInstance, error) {
	row := r.conn.QueryRow(ctx, `
		UPDATE card_instances
		SET owner_id = $3, state = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+cardColumns,
		args.ID, args.ExpectedVersion, args.OwnerID, args.State,
	)
	card, err := scanCard(row)
	if err != nil {
		return nil, convertCASErr(err, "updating card instance %d at version %d", args.ID, args.ExpectedVersion)
	}
	return card, nil
}

func scanCard(row pgx.Row) (*domain.CardInstance, error) {
	var c domain.CardInstance
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.CardDefinitionID, &c.OwnerID, &c.State, &c.Version); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &c, nil
}
