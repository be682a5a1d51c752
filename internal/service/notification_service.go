package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultDeliveryTimeout = 3 * time.Second

// Notice a notification that is about to be persisted.
type Notice struct {
	UserID     int64
	AuctionID  *int64
	Type       domain.NotificationType
	Message    string
	Importance domain.ImportanceType
}

// NotificationService records in-app notifications and pushes them to an optional delivery channel.
// Failures never reach the caller: they are logged and dropped.
type NotificationService struct {
	uow             uow.UOW
	repo            NotificationRepository
	channel         DeliveryChannel
	deliveryTimeout time.Duration
	l               *logrus.Entry
}

func NewNotificationService(u uow.UOW, channel DeliveryChannel, l *logrus.Logger) (*NotificationService, error) {
	repo, err := uow.GetRepositoryAs[NotificationRepository](u, uow.RepositoryName(repoargs.NotificationRepoName))
	if err != nil {
		return nil, err
	}
	return &NotificationService{
		uow:             u,
		repo:            repo,
		channel:         channel,
		deliveryTimeout: defaultDeliveryTimeout,
		l:               l.WithField("component", "notifier"),
	}, nil
}

func (n *NotificationService) SetDeliveryTimeout(d time.Duration) *NotificationService {
	if d > 0 {
		n.deliveryTimeout = d
	}
	return n
}

// Publish persists notices and delivers them right away.
func (n *NotificationService) Publish(ctx context.Context, notices ...Notice) {
	if len(notices) == 0 {
		return
	}
	created, err := n.Enqueue(ctx, notices)
	if err != nil {
		n.l.WithError(err).Warn("notifications were not stored")
	}
	n.Deliver(ctx, created)
}

// Enqueue persists notices inside the unit of work carried by ctx, if any.
func (n *NotificationService) Enqueue(ctx context.Context, notices []Notice) ([]domain.Notification, error) {
	if len(notices) == 0 {
		return nil, nil
	}
	args := make([]repoargs.NotificationCreate, len(notices))
	for i, notice := range notices {
		args[i] = repoargs.NotificationCreate{
			UserID:     notice.UserID,
			AuctionID:  notice.AuctionID,
			Type:       notice.Type,
			Message:    notice.Message,
			Importance: notice.Importance,
		}
	}

	created := make([]domain.Notification, 0, len(notices))
	txErr := n.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[NotificationRepository](tx, uow.RepositoryName(repoargs.NotificationRepoName))
		if repoErr != nil {
			return repoErr
		}
		var batchErr error
		repo.BatchCreate(c, args, func(i int, item *domain.Notification, err error) {
			if err != nil {
				batchErr = errors.Join(batchErr, fmt.Errorf("notice %d: %w", i, err))
				return
			}
			created = append(created, *item)
		})
		return batchErr
	})
	if txErr != nil {
		return nil, fmt.Errorf("storing notifications: %w", txErr)
	}
	return created, nil
}

// Deliver pushes stored notifications through the delivery channel. Nothing is retried.
func (n *NotificationService) Deliver(ctx context.Context, items []domain.Notification) {
	if n.channel == nil {
		return
	}
	for _, item := range items {
		c, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.deliveryTimeout)
		err := n.channel.Deliver(c, item)
		cancel()
		if err != nil {
			n.l.WithError(err).
				WithFields(logrus.Fields{"notification_id": item.ID, "user_id": item.UserID}).
				Warn("notification delivery failed")
		}
	}
}

// Inbox returns the user's notifications, newest first.
func (n *NotificationService) Inbox(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	items, err := n.repo.GetByUserID(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("getting notifications: %w", err)
	}
	return items, nil
}

func (n *NotificationService) MarkRead(ctx context.Context, userID int64, id uuid.UUID) error {
	if err := n.repo.MarkRead(ctx, userID, id); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}
