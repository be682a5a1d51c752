package pgrepo

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const bidColumns = `id, updated_at, auction_id, bidder_id, amount, reservation_id, state, placed_at`

type BidRepository struct {
	conn uow.DBTX
}

func NewBidRepository(conn uow.DBTX) *BidRepository {
	return &BidRepository{conn: conn}
}

func (r *BidRepository) Create(ctx context.Context, args repoargs.BidCreate) (*domain.Bid, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO bids (auction_id, bidder_id, amount, reservation_id, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+bidColumns,
		args.AuctionID, args.BidderID, args.Amount, args.ReservationID, args.PlacedAt,
	)
	bid, err := scanBid(row)
	if err != nil {
		return nil, convertErr(err, "creating bid of user %d on auction %d", args.BidderID, args.AuctionID)
	}
	return bid, nil
}

func (r *BidRepository) FindByID(ctx context.Context, id int64) (*domain.Bid, error) {
	bid, err := scanBid(r.conn.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
	if err != nil {
		return nil, convertErr(err, "finding bid %d", id)
	}
	return bid, nil
}

// GetByAuctionID returns all bids of the auction, highest amount first, earliest first among equals.
func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, placed_at, id`, auctionID,
	)
	if err != nil {
		return nil, convertErr(err, "getting bids of auction %d", auctionID)
	}
	bids, err := collect(rows, scanBid)
	if err != nil {
		return nil, convertErr(err, "getting bids of auction %d", auctionID)
	}
	return bids, nil
}

func (r *BidRepository) GetPendingByAuctionID(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id = $1 AND state = 'PENDING'
		ORDER BY amount DESC, placed_at, id`, auctionID,
	)
	if err != nil {
		return nil, convertErr(err, "getting pending bids of auction %d", auctionID)
	}
	bids, err := collect(rows, scanBid)
	if err != nil {
		return nil, convertErr(err, "getting pending bids of auction %d", auctionID)
	}
	return bids, nil
}

func (r *BidRepository) CountPending(ctx context.Context, auctionID int64) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx,
		`SELECT count(*) FROM bids WHERE auction_id = $1 AND state = 'PENDING'`, auctionID,
	).Scan(&count)
	if err != nil {
		return 0, convertErr(err, "counting pending bids of auction %d", auctionID)
	}
	return count, nil
}

func (r *BidRepository) Transition(ctx context.Context, args repoargs.BidTransition) (*domain.Bid, error) {
	row := r.conn.QueryRow(ctx, `
		UPDATE bids SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
		RETURNING `+bidColumns,
		args.ID, args.From, args.To,
	)
	bid, err := scanBid(row)
	if err != nil {
		return nil, convertCASErr(err, "moving bid %d from %s to %s", args.ID, args.From, args.To)
	}
	return bid, nil
}

func scanBid(row pgx.Row) (*domain.Bid, error) {
	var b domain.Bid
	err := row.Scan(&b.ID, &b.UpdatedAt, &b.AuctionID, &b.BidderID, &b.Amount, &b.ReservationID, &b.State, &b.PlacedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &b, nil
}
