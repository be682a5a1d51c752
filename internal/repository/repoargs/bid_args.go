package repoargs

import (
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
)

type BidCreate struct {
	AuctionID     int64
	BidderID      int64
	Amount        int64
	ReservationID int64
	PlacedAt      time.Time
}

type BidTransition struct {
	ID   int64
	From domain.BidStateType
	To   domain.BidStateType
}
