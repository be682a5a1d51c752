package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/gin-gonic/gin"
)

type BalanceHandler struct {
	svs LedgerServicer
}

func NewBalanceHandler(svs LedgerServicer) *BalanceHandler {
	return &BalanceHandler{
		svs: svs,
	}
}

type BalanceResponse struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
}

// Index GET RouteGroup + BalanceRoute.
func (b *BalanceHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	balance, err := b.svs.Balance(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, &BalanceResponse{
		Available: balance.Available,
		Reserved:  balance.Reserved,
	})
}

type TransactionResponse struct {
	ID             int64              `json:"id"`
	Amount         int64              `json:"amount"`
	Concept        domain.ConceptType `json:"concept"`
	CardInstanceID *int64             `json:"card_instance_id,omitempty"`
	CreatedAt      string             `json:"created_at"`
}

// Transactions GET RouteGroup + TransactionsRoute.
func (b *BalanceHandler) Transactions(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	transactions, err := b.svs.Transactions(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	if len(transactions) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	response := make([]TransactionResponse, len(transactions))
	for i, t := range transactions {
		response[i] = TransactionResponse{
			ID:             t.ID,
			Amount:         t.Amount,
			Concept:        t.Concept,
			CardInstanceID: t.RelatedCardInstanceID,
			CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, response)
}

type PaymentParams struct {
	UserID      int64  `binding:"required,gt=0"                                  json:"user_id"`
	Amount      int64  `binding:"required,gt=0"                                  json:"amount"`
	ExternalRef string `binding:"required,max_bytes=128"                         json:"external_ref"`
	Concept     string `binding:"omitempty,oneof=PAYMENT_CONFIRMED GIFT"         json:"concept"`
}

// Payment POST RouteGroup + PaymentsRoute. Credits a confirmed external payment. A repeated
// external_ref answers 200 without crediting again.
func (b *BalanceHandler) Payment(c *gin.Context) {
	var params PaymentParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}
	concept := domain.ConceptPaymentConfirmed
	if params.Concept != "" {
		concept = domain.ConceptType(params.Concept)
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	entry, err := b.svs.Credit(reqCtx, service.CreditArgs{
		UserID:      params.UserID,
		Amount:      params.Amount,
		Concept:     concept,
		ExternalRef: params.ExternalRef,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TransactionResponse{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Concept:   entry.Concept,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	})
}
