package service

import (
	"fmt"
	"time"

	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/sirupsen/logrus"
)

type AppServices struct {
	Ledger        *LedgerService
	Cards         *CardOwnershipService
	Notifications *NotificationService
	Bids          *BidService
	Auctions      *AuctionService
	Settlement    *SettlementService
}

type FactoryArgs struct {
	Policy          BidPolicy
	ClosingLease    time.Duration
	Channel         DeliveryChannel
	DeliveryTimeout time.Duration
	Logger          *logrus.Logger
}

func Factory(unitOfWork uow.UOW, args FactoryArgs) (*AppServices, error) {
	ledger, err := NewLedgerService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}

	cards, err := NewCardOwnershipService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}

	notifications, err := NewNotificationService(unitOfWork, args.Channel, args.Logger)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	notifications.SetDeliveryTimeout(args.DeliveryTimeout)

	bids, err := NewBidService(unitOfWork, ledger, notifications, args.Policy)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}

	auctions, err := NewAuctionService(unitOfWork, cards, notifications, args.Policy)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}

	settlement, err := NewSettlementService(unitOfWork, ledger, cards, notifications, args.Logger)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	settlement.SetClosingLease(args.ClosingLease)

	return &AppServices{
		Ledger:        ledger,
		Cards:         cards,
		Notifications: notifications,
		Bids:          bids,
		Auctions:      auctions,
		Settlement:    settlement,
	}, nil
}
