package repoargs

import (
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
)

type AuctionCreate struct {
	SellerID       int64
	CardInstanceID int64
	StartPrice     int64
	OpenedAt       time.Time
	ClosesAt       time.Time
}

// AuctionLeaderUpdate moves the leading bid of an ACTIVE auction. Applied only when the stored
// version still equals ExpectedVersion.
type AuctionLeaderUpdate struct {
	ID              int64
	ExpectedVersion int64
	BidID           *int64
	Amount          int64
}

// AuctionTransition compare-and-swap of the auction state.
type AuctionTransition struct {
	ID              int64
	ExpectedVersion int64
	From            domain.AuctionStateType
	To              domain.AuctionStateType
	At              time.Time
}

// AuctionClaim puts the auction into CLOSING (or refreshes the lease of a CLOSING one) and bumps
// the version. The returned version is the fencing token for the following settlement steps.
type AuctionClaim struct {
	ID              int64
	ExpectedVersion int64
	ClaimedAt       time.Time
}

type AuctionFilter struct {
	State    *domain.AuctionStateType
	SellerID *int64
	Limit    uint
	Offset   uint
}

// AuctionDueFilter selects ACTIVE auctions with closes_at <= Now and CLOSING auctions whose lease
// started before StaleBefore.
type AuctionDueFilter struct {
	Now         time.Time
	StaleBefore time.Time
	Limit       uint
}

type PendingTransferCreate struct {
	AuctionID      int64
	CardInstanceID int64
	NewOwnerID     int64
}
