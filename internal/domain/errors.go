package domain

import (
	"errors"
	"fmt"
)

// Storage layer errors.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrCheckViolation  = errors.New("check violation")
	ErrVersionConflict = errors.New("version conflict")
	ErrUnknown         = errors.New("unknown error")
)

// Validation errors. Reported to the caller as is, nothing is changed.
var (
	ErrBidTooLow       = errors.New("bid too low")
	ErrDuplicateBid    = errors.New("duplicate bid")
	ErrSelfBid         = errors.New("seller cannot bid on own auction")
	ErrNotOwner        = errors.New("not owner")
	ErrNotPending      = errors.New("bid is not pending")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDuration = errors.New("invalid auction duration")
)

// Resource conflicts.
var (
	ErrAuctionNotActive    = errors.New("auction not active")
	ErrHasActiveBids       = errors.New("auction has active bids")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAlreadyLocked       = errors.New("card already locked")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrConcurrentUpdate    = errors.New("concurrent update, try again")
)

// Settlement flow.
var (
	ErrAuctionNotDue      = errors.New("auction is not due for settlement")
	ErrAuctionClaimed     = errors.New("auction is being settled by another worker")
	ErrTransferIncomplete = errors.New("card transfer incomplete")
)

// BidTooLowError carries the minimum acceptable amount at the moment of rejection.
type BidTooLowError struct {
	Minimum int64
}

func NewBidTooLowError(minimum int64) error {
	return &BidTooLowError{Minimum: minimum}
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low, minimum acceptable amount is %d", e.Minimum)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}
