package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationsHandler struct {
	svs NotificationServicer
}

func NewNotificationsHandler(svs NotificationServicer) *NotificationsHandler {
	return &NotificationsHandler{
		svs: svs,
	}
}

type NotificationResponse struct {
	ID         uuid.UUID               `json:"id"`
	AuctionID  *int64                  `json:"auction_id,omitempty"`
	Type       domain.NotificationType `json:"type"`
	Message    string                  `json:"message"`
	Importance domain.ImportanceType   `json:"importance"`
	Read       bool                    `json:"read"`
	CreatedAt  time.Time               `json:"created_at"`
}

type InboxParams struct {
	Unread bool `form:"unread"`
}

// Index GET RouteGroup + NotificationsRoute.
func (h *NotificationsHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params InboxParams
	if bindErr := c.ShouldBindQuery(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	items, err := h.svs.Inbox(reqCtx, currentUserID, params.Unread)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	response := make([]NotificationResponse, len(items))
	for i, n := range items {
		response[i] = NotificationResponse{
			ID:         n.ID,
			AuctionID:  n.AuctionID,
			Type:       n.Type,
			Message:    n.Message,
			Importance: n.Importance,
			Read:       n.Read,
			CreatedAt:  n.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, response)
}

// MarkRead POST RouteGroup + NotificationReadRoute.
func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	if err = h.svs.MarkRead(reqCtx, currentUserID, id); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}
