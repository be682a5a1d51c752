package domain

// MaxAmount the largest start price or bid accepted, in Zen.
const MaxAmount int64 = 1_000_000_000_000


type AuctionStateType string

const (
	AuctionStateActive           AuctionStateType = "ACTIVE"
	AuctionStateClosing          AuctionStateType = "CLOSING"
	AuctionStateWithdrawnByOwner AuctionStateType = "WITHDRAWN_BY_OWNER"
	AuctionStateClosed           AuctionStateType = "CLOSED"
)

// IsFinal reports whether the auction can no longer change state.
func (s AuctionStateType) IsFinal() bool {
	return s == AuctionStateWithdrawnByOwner || s == AuctionStateClosed
}

type BidStateType string

const (
	BidStatePending               BidStateType = "PENDING"
	BidStateWithdrawn             BidStateType = "WITHDRAWN"
	BidStateWon                   BidStateType = "WON"
	BidStateLost                  BidStateType = "LOST"
	BidStateCancelledByAuctionEnd BidStateType = "CANCELLED_BY_AUCTION_END"
)

type CardStateType string

const (
	CardStateOwned     CardStateType = "OWNED"
	CardStateOnAuction CardStateType = "ON_AUCTION"
)

type ReservationStatusType string

const (
	ReservationStatusHeld     ReservationStatusType = "HELD"
	ReservationStatusReleased ReservationStatusType = "RELEASED"
	ReservationStatusSettled  ReservationStatusType = "SETTLED"
)

// ConceptType the reason a balance changed. Stored as is in the transactions table.
type ConceptType string

const (
	ConceptBidReserved        ConceptType = "BID_RESERVED"
	ConceptBidWithdrawn       ConceptType = "BID_WITHDRAWN"
	ConceptBidLost            ConceptType = "BID_LOST"
	ConceptAuctionSold        ConceptType = "AUCTION_SOLD"
	ConceptAuctionCancelled   ConceptType = "AUCTION_CANCELLED"
	ConceptPurchaseByCardPack ConceptType = "PURCHASE_BY_CARD_PACK"
	ConceptGift               ConceptType = "GIFT"
	ConceptPaymentConfirmed   ConceptType = "PAYMENT_CONFIRMED"
)

type NotificationType string

const (
	NotificationBidAccepted         NotificationType = "BID_ACCEPTED"
	NotificationBidOutbid           NotificationType = "BID_OUTBID"
	NotificationBidLost             NotificationType = "BID_LOST"
	NotificationAuctionClosedWon    NotificationType = "AUCTION_CLOSED_WON"
	NotificationAuctionClosedUnsold NotificationType = "AUCTION_CLOSED_UNSOLD"
	NotificationAuctionCancelled    NotificationType = "AUCTION_CANCELLED"
)

type ImportanceType int16

const (
	ImportanceLow    ImportanceType = 1
	ImportanceNormal ImportanceType = 2
	ImportanceHigh   ImportanceType = 3
)

type SettlementOutcomeType string

const (
	SettlementSold         SettlementOutcomeType = "SOLD"
	SettlementUnsold       SettlementOutcomeType = "UNSOLD"
	SettlementAlreadyFinal SettlementOutcomeType = "ALREADY_FINAL"
	SettlementSkipped      SettlementOutcomeType = "SKIPPED"
)
