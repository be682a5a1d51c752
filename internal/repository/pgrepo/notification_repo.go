package pgrepo

import (
	"context"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	notificationColumns = `id, created_at, user_id, auction_id, type, message, importance, is_read`
	inboxLimit          = 200
)

type NotificationRepository struct {
	conn uow.DBTX
}

func NewNotificationRepository(conn uow.DBTX) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// BatchCreate inserts all items in one round trip and reports every row to fn.
func (r *NotificationRepository) BatchCreate(
	ctx context.Context,
	items []repoargs.NotificationCreate,
	fn repoargs.NotificationBatchQueryRow,
) {
	batch := new(pgx.Batch)
	for _, item := range items {
		batch.Queue(`
			INSERT INTO notifications (id, user_id, auction_id, type, message, importance)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+notificationColumns,
			uuid.New(), item.UserID, item.AuctionID, item.Type, item.Message, int16(item.Importance),
		)
	}

	br := r.conn.SendBatch(ctx, batch)
	defer br.Close()

	for i := range items {
		n, err := scanNotification(br.QueryRow())
		fn(i, n, convertErr(err, "creating notification for user %d", items[i].UserID))
	}
}

// GetByUserID returns the latest notifications of the user, newest first.
func (r *NotificationRepository) GetByUserID(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
) ([]domain.Notification, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, unreadOnly, inboxLimit,
	)
	if err != nil {
		return nil, convertErr(err, "getting notifications of user %d", userID)
	}
	items, err := collect(rows, scanNotification)
	if err != nil {
		return nil, convertErr(err, "getting notifications of user %d", userID)
	}
	return items, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := r.conn.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return convertErr(err, "marking notification %s read", id)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "marking notification %s read", id)
	}
	return nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n          domain.Notification
		importance int16
	)
	err := row.Scan(&n.ID, &n.CreatedAt, &n.UserID, &n.AuctionID, &n.Type, &n.Message, &importance, &n.Read)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	n.Importance = domain.ImportanceType(importance)
	return &n, nil
}
