package pgrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const auctionColumns = `id, created_at, updated_at, seller_id, card_instance_id, start_price,
	current_highest_bid_id, highest_amount, state, version, opened_at, closes_at, closing_started_at, closed_at`

type AuctionRepository struct {
	conn uow.DBTX
}

func NewAuctionRepository(conn uow.DBTX) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

func (r *AuctionRepository) Create(ctx context.Context, args repoargs.AuctionCreate) (*domain.Auction, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO auctions (seller_id, card_instance_id, start_price, opened_at, closes_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+auctionColumns,
		args.SellerID, args.CardInstanceID, args.StartPrice, args.OpenedAt, args.ClosesAt,
	)
	auction, err := scanAuction(row)
	if err != nil {
		return nil, convertErr(err, "creating auction for card %d", args.CardInstanceID)
	}
	return auction, nil
}

func (r *AuctionRepository) FindByID(ctx context.Context, id int64) (*domain.Auction, error) {
	auction, err := scanAuction(r.conn.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id))
	if err != nil {
		return nil, convertErr(err, "finding auction %d", id)
	}
	return auction, nil
}

// List returns auctions matching the filter, soonest deadline first.
func (r *AuctionRepository) List(ctx context.Context, filter repoargs.AuctionFilter) ([]domain.Auction, error) {
	limit, err := safeConvertUintToInt32(filter.Limit)
	if err != nil {
		return nil, convertErr(err, "converting limit to int32")
	}
	offset, err := safeConvertUintToInt32(filter.Offset)
	if err != nil {
		return nil, convertErr(err, "converting offset to int32")
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE ($1::auction_state IS NULL OR state = $1)
		  AND ($2::bigint IS NULL OR seller_id = $2)
		ORDER BY closes_at, id
		LIMIT $3 OFFSET $4`,
		filter.State, filter.SellerID, limit, offset,
	)
	if err != nil {
		return nil, convertErr(err, "listing auctions")
	}
	auctions, err := collect(rows, scanAuction)
	if err != nil {
		return nil, convertErr(err, "listing auctions")
	}
	return auctions, nil
}

// GetDue returns active auctions past their deadline and closing auctions whose lease went stale.
func (r *AuctionRepository) GetDue(ctx context.Context, filter repoargs.AuctionDueFilter) ([]domain.Auction, error) {
	limit, err := safeConvertUintToInt32(filter.Limit)
	if err != nil {
		return nil, convertErr(err, "converting limit to int32")
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE (state = 'ACTIVE' AND closes_at <= $1)
		   OR (state = 'CLOSING' AND closing_started_at < $2)
		ORDER BY closes_at, id
		LIMIT $3`,
		filter.Now, filter.StaleBefore, limit,
	)
	if err != nil {
		return nil, convertErr(err, "getting due auctions")
	}
	auctions, err := collect(rows, scanAuction)
	if err != nil {
		return nil, convertErr(err, "getting due auctions")
	}
	return auctions, nil
}

func (r *AuctionRepository) UpdateLeader(
	ctx context.Context,
	args repoargs.AuctionLeaderUpdate,
) (*domain.Auction, error) {
	row := r.conn.QueryRow(ctx, `
		UPDATE auctions
		SET current_highest_bid_id = $3, highest_amount = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND state = 'ACTIVE'
		RETURNING `+auctionColumns,
		args.ID, args.ExpectedVersion, args.BidID, args.Amount,
	)
	auction, err := scanAuction(row)
	if err != nil {
		return nil, convertCASErr(err, "updating leader of auction %d at version %d", args.ID, args.ExpectedVersion)
	}
	return auction, nil
}

func (r *AuctionRepository) Transition(
	ctx context.Context,
	args repoargs.AuctionTransition,
) (*domain.Auction, error) {
	var closedAt *time.Time
	if args.To.IsFinal() {
		closedAt = &args.At
	}
	row := r.conn.QueryRow(ctx, `
		UPDATE auctions
		SET state = $4, closed_at = COALESCE($5, closed_at), version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND state = $3
		RETURNING `+auctionColumns,
		args.ID, args.ExpectedVersion, args.From, args.To, closedAt,
	)
	auction, err := scanAuction(row)
	if err != nil {
		return nil, convertCASErr(err, "moving auction %d from %s to %s", args.ID, args.From, args.To)
	}
	return auction, nil
}

func (r *AuctionRepository) Claim(ctx context.Context, args repoargs.AuctionClaim) (*domain.Auction, error) {
	row := r.conn.QueryRow(ctx, `
		UPDATE auctions
		SET state = 'CLOSING', closing_started_at = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND state IN ('ACTIVE', 'CLOSING')
		RETURNING `+auctionColumns,
		args.ID, args.ExpectedVersion, args.ClaimedAt,
	)
	auction, err := scanAuction(row)
	if err != nil {
		return nil, convertCASErr(err, "claiming auction %d at version %d", args.ID, args.ExpectedVersion)
	}
	return auction, nil
}

func (r *AuctionRepository) CreatePendingTransfer(ctx context.Context, args repoargs.PendingTransferCreate) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO pending_transfers (auction_id, card_instance_id, new_owner_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (auction_id) DO NOTHING`,
		args.AuctionID, args.CardInstanceID, args.NewOwnerID,
	)
	return convertErr(err, "creating pending transfer for auction %d", args.AuctionID)
}

func (r *AuctionRepository) FindPendingTransfer(ctx context.Context, auctionID int64) (*domain.PendingTransfer, error) {
	var t domain.PendingTransfer
	err := r.conn.QueryRow(ctx, `
		SELECT auction_id, created_at, card_instance_id, new_owner_id
		FROM pending_transfers WHERE auction_id = $1`, auctionID,
	).Scan(&t.AuctionID, &t.CreatedAt, &t.CardInstanceID, &t.NewOwnerID)
	if err != nil {
		return nil, convertErr(err, "finding pending transfer of auction %d", auctionID)
	}
	return &t, nil
}

func (r *AuctionRepository) DeletePendingTransfer(ctx context.Context, auctionID int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM pending_transfers WHERE auction_id = $1`, auctionID)
	return convertErr(err, "deleting pending transfer of auction %d", auctionID)
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var a domain.Auction
	err := row.Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.SellerID, &a.CardInstanceID, &a.StartPrice,
		&a.CurrentHighestBidID, &a.HighestAmount, &a.State, &a.Version, &a.OpenedAt, &a.ClosesAt,
		&a.ClosingStartedAt, &a.ClosedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &a, nil
}
