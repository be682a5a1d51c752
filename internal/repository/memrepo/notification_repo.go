package memrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/google/uuid"
)

type NotificationRepository struct {
	a access
}

func (r *NotificationRepository) BatchCreate(
	_ context.Context,
	items []repoargs.NotificationCreate,
	fn repoargs.NotificationBatchQueryRow,
) {
	unlock := r.a.lock()
	created := make([]domain.Notification, len(items))
	for i, item := range items {
		created[i] = domain.Notification{
			ID:         uuid.New(),
			CreatedAt:  time.Now(),
			UserID:     item.UserID,
			AuctionID:  item.AuctionID,
			Type:       item.Type,
			Message:    item.Message,
			Importance: item.Importance,
		}
		r.a.data.notifications = append(r.a.data.notifications, created[i])
	}
	unlock()

	for i := range created {
		fn(i, &created[i], nil)
	}
}

// GetByUserID returns the user's notifications, newest first.
func (r *NotificationRepository) GetByUserID(
	_ context.Context,
	userID int64,
	unreadOnly bool,
) ([]domain.Notification, error) {
	defer r.a.lock()()

	result := make([]domain.Notification, 0)
	for i := len(r.a.data.notifications) - 1; i >= 0; i-- {
		n := r.a.data.notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, userID int64, id uuid.UUID) error {
	defer r.a.lock()()

	for i := range r.a.data.notifications {
		if r.a.data.notifications[i].ID == id && r.a.data.notifications[i].UserID == userID {
			r.a.data.notifications[i].Read = true
			return nil
		}
	}
	return notFound("marking notification %s read", id)
}
