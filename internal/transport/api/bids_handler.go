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

type BidsHandler struct {
	svs BidServicer
}

func NewBidsHandler(svs BidServicer) *BidsHandler {
	return &BidsHandler{
		svs: svs,
	}
}

type PlaceBidParams struct {
	Amount int64 `binding:"required,gt=0,lte=1000000000000" json:"amount"`
}

type BidResponse struct {
	ID        int64               `json:"id"`
	AuctionID int64               `json:"auction_id"`
	BidderID  int64               `json:"bidder_id"`
	Amount    int64               `json:"amount"`
	State     domain.BidStateType `json:"state"`
	PlacedAt  time.Time           `json:"placed_at"`
}

// Create POST RouteGroup + AuctionBidsRoute.
func (h *BidsHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var params PlaceBidParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	bid, err := h.svs.PlaceBid(reqCtx, service.PlaceBidArgs{
		AuctionID: auctionID,
		BidderID:  currentUserID,
		Amount:    params.Amount,
	})
	if err != nil {
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":   domain.ErrBidTooLow.Error(),
				"minimum": tooLow.Minimum,
			})
			return
		}
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newBidResponse(bid))
}

// Index GET RouteGroup + AuctionBidsRoute.
func (h *BidsHandler) Index(c *gin.Context) {
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	bids, err := h.svs.BidsForAuction(reqCtx, auctionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := make([]BidResponse, len(bids))
	for i := range bids {
		response[i] = newBidResponse(&bids[i])
	}
	c.JSON(http.StatusOK, response)
}

// Withdraw DELETE RouteGroup + BidRoute.
func (h *BidsHandler) Withdraw(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)
	bidID, ok := paramID(c, "id")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	bid, err := h.svs.WithdrawBid(reqCtx, bidID, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newBidResponse(bid))
}

func newBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		State:     b.State,
		PlacedAt:  b.PlacedAt,
	}
}
