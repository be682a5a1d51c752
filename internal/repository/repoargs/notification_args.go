package repoargs

import "github.com/fsdevblog/zenauction/internal/domain"

type NotificationCreate struct {
	UserID     int64
	AuctionID  *int64
	Type       domain.NotificationType
	Message    string
	Importance domain.ImportanceType
}

type NotificationBatchQueryRow func(i int, n *domain.Notification, err error)
