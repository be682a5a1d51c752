package domain

import (
	"time"

	"github.com/google/uuid"
)

// Auction is one card instance offered by one seller. Version is bumped on every write and is the
// optimistic lock token for the row.
type Auction struct {
	ID                  int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	SellerID            int64
	CardInstanceID      int64
	StartPrice          int64
	CurrentHighestBidID *int64
	HighestAmount       int64
	State               AuctionStateType
	Version             int64
	OpenedAt            time.Time
	ClosesAt            time.Time
	ClosingStartedAt    *time.Time
	ClosedAt            *time.Time
}

// MinimumBase returns the amount a new bid has to beat.
func (a *Auction) MinimumBase() int64 {
	if a.CurrentHighestBidID == nil {
		return a.StartPrice
	}
	return a.HighestAmount
}

type Bid struct {
	ID            int64
	UpdatedAt     time.Time
	AuctionID     int64
	BidderID      int64
	Amount        int64
	ReservationID int64
	State         BidStateType
	PlacedAt      time.Time
}

type CardInstance struct {
	ID               int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CardDefinitionID int64
	OwnerID          int64
	State            CardStateType
	Version          int64
}

// Reservation hold on a user's balance backing one pending bid.
type Reservation struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int64
	AuctionID int64
	Amount    int64
	Status    ReservationStatusType
}

// Transaction immutable ledger entry. Amount is signed.
type Transaction struct {
	ID                    int64
	CreatedAt             time.Time
	UserID                int64
	Amount                int64
	Concept               ConceptType
	ReservationID         *int64
	RelatedCardInstanceID *int64
	ExternalRef           *string
}

type Account struct {
	UserID    int64
	UpdatedAt time.Time
	Balance   int64
}

// PendingTransfer marks a settled auction whose card has not been handed over yet.
type PendingTransfer struct {
	AuctionID      int64
	CreatedAt      time.Time
	CardInstanceID int64
	NewOwnerID     int64
}

type Notification struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	UserID     int64
	AuctionID  *int64
	Type       NotificationType
	Message    string
	Importance ImportanceType
	Read       bool
}
