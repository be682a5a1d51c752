package repoargs

import "github.com/fsdevblog/zenauction/internal/domain"

type ReservationCreate struct {
	UserID    int64
	AuctionID int64
	Amount    int64
}

type ReservationTransition struct {
	ID   int64
	From domain.ReservationStatusType
	To   domain.ReservationStatusType
}

// TransactionCreate appends a ledger entry and applies Amount to the cached account balance in
// the same statement batch.
type TransactionCreate struct {
	UserID                int64
	Amount                int64
	Concept               domain.ConceptType
	ReservationID         *int64
	RelatedCardInstanceID *int64
	ExternalRef           *string
}
