package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/gin-gonic/gin"
)

type AuctionsHandler struct {
	svs AuctionServicer
}

func NewAuctionsHandler(svs AuctionServicer) *AuctionsHandler {
	return &AuctionsHandler{
		svs: svs,
	}
}

type CreateAuctionParams struct {
	CardInstanceID  int64 `binding:"required,gt=0"                json:"card_instance_id"`
	StartPrice      int64 `binding:"gte=0,lte=1000000000000"      json:"start_price"`
	DurationSeconds int64 `binding:"required,gt=0,lte=31536000"   json:"duration_seconds"`
}

type AuctionResponse struct {
	ID             int64                   `json:"id"`
	SellerID       int64                   `json:"seller_id"`
	CardInstanceID int64                   `json:"card_instance_id"`
	StartPrice     int64                   `json:"start_price"`
	LeadingBidID   *int64                  `json:"leading_bid_id,omitempty"`
	HighestAmount  int64                   `json:"highest_amount"`
	State          domain.AuctionStateType `json:"state"`
	OpenedAt       time.Time               `json:"opened_at"`
	ClosesAt       time.Time               `json:"closes_at"`
	ClosedAt       *time.Time              `json:"closed_at,omitempty"`
}

type AuctionViewResponse struct {
	AuctionResponse
	MinimumBid      int64         `json:"minimum_bid"`
	PendingBids     int           `json:"pending_bids"`
	TimeLeftSeconds int64         `json:"time_left_seconds"`
	Bids            []BidResponse `json:"bids"`
}

// Create POST RouteGroup + AuctionsRoute.
func (h *AuctionsHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params CreateAuctionParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	auction, err := h.svs.Open(reqCtx, service.OpenAuctionArgs{
		SellerID:       currentUserID,
		CardInstanceID: params.CardInstanceID,
		StartPrice:     params.StartPrice,
		Duration:       time.Duration(params.DurationSeconds) * time.Second,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAuctionResponse(auction))
}

type ListAuctionsParams struct {
	State    string `binding:"omitempty,oneof=ACTIVE CLOSING WITHDRAWN_BY_OWNER CLOSED" form:"state"`
	SellerID int64  `binding:"omitempty,gt=0"                                          form:"seller_id"`
	Limit    uint   `binding:"omitempty,max=100"                                       form:"limit"`
	Offset   uint   `form:"offset"`
}

// Index GET RouteGroup + AuctionsRoute.
func (h *AuctionsHandler) Index(c *gin.Context) {
	var params ListAuctionsParams
	if bindErr := c.ShouldBindQuery(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	filter := repoargs.AuctionFilter{Limit: params.Limit, Offset: params.Offset}
	if params.State != "" {
		state := domain.AuctionStateType(params.State)
		filter.State = &state
	}
	if params.SellerID != 0 {
		filter.SellerID = &params.SellerID
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	auctions, err := h.svs.List(reqCtx, filter)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := make([]AuctionResponse, len(auctions))
	for i := range auctions {
		response[i] = newAuctionResponse(&auctions[i])
	}
	c.JSON(http.StatusOK, response)
}

// Show GET RouteGroup + AuctionRoute.
func (h *AuctionsHandler) Show(c *gin.Context) {
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	view, err := h.svs.Get(reqCtx, auctionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := AuctionViewResponse{
		AuctionResponse: newAuctionResponse(&view.Auction),
		MinimumBid:      view.MinimumBid,
		PendingBids:     view.PendingBids,
		TimeLeftSeconds: int64(view.TimeLeft.Seconds()),
		Bids:            make([]BidResponse, len(view.Bids)),
	}
	for i := range view.Bids {
		response.Bids[i] = newBidResponse(&view.Bids[i])
	}
	c.JSON(http.StatusOK, response)
}

// Withdraw DELETE RouteGroup + AuctionRoute. Only possible while nobody has bid.
func (h *AuctionsHandler) Withdraw(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	auction, err := h.svs.Withdraw(reqCtx, auctionID, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func newAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		ID:             a.ID,
		SellerID:       a.SellerID,
		CardInstanceID: a.CardInstanceID,
		StartPrice:     a.StartPrice,
		LeadingBidID:   a.CurrentHighestBidID,
		HighestAmount:  a.HighestAmount,
		State:          a.State,
		OpenedAt:       a.OpenedAt,
		ClosesAt:       a.ClosesAt,
		ClosedAt:       a.ClosedAt,
	}
}
