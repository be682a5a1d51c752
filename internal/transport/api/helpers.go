package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// getUserIDFromContext returns the id stored by middlewares.AuthRequired, or 0.
func getUserIDFromContext(c *gin.Context) int64 {
	userIDStr, exist := c.Get(middlewares.CurrentUserIDKey)
	if !exist {
		return 0
	}
	userID, ok := userIDStr.(int64)
	if !ok {
		return 0
	}
	return userID
}

// paramID parses a positive numeric path parameter. On failure the request is aborted with 404.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatus(http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// abortWithBindError answers 422 for validation failures and 400 for malformed input.
func abortWithBindError(c *gin.Context, bindErr error) {
	var valErrs validator.ValidationErrors
	if errors.As(bindErr, &valErrs) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": valErrs.Error()})
		return
	}
	_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
}

// errorStatuses domain errors that are shown to the client, with their status.
var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{domain.ErrInvalidDuration, http.StatusUnprocessableEntity},
	{domain.ErrSelfBid, http.StatusUnprocessableEntity},
	{domain.ErrRecordNotFound, http.StatusNotFound},
	{domain.ErrNotOwner, http.StatusForbidden},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
	{domain.ErrBidTooLow, http.StatusConflict},
	{domain.ErrDuplicateBid, http.StatusConflict},
	{domain.ErrAuctionNotActive, http.StatusConflict},
	{domain.ErrHasActiveBids, http.StatusConflict},
	{domain.ErrNotPending, http.StatusConflict},
	{domain.ErrAlreadyLocked, http.StatusConflict},
	{domain.ErrConcurrentUpdate, http.StatusConflict},
}

// abortWithServiceError maps a service error to a status. Known domain errors are shown by their
// sentinel text only, the full chain goes to the log.
func abortWithServiceError(c *gin.Context, err error) {
	for _, known := range errorStatuses {
		if errors.Is(err, known.err) {
			_ = c.AbortWithError(known.status, known.err).SetType(gin.ErrorTypePublic)
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
			return
		}
	}
	_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
}
