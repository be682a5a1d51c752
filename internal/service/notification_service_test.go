package service

import (
	"context"
	"errors"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/service/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
)

func (s *EngineTestSuite) TestNotificationsAreDeliveredBestEffort() {
	mockCtrl := gomock.NewController(s.T())
	channel := mocks.NewMockDeliveryChannel(mockCtrl)
	s.services = s.newServices(channel)

	s.fund(bidderX, 100)
	s.fund(bidderY, 100)
	auction := s.open(sellerID, 10)

	channel.EXPECT().Deliver(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, n domain.Notification) error {
			s.Equal(bidderX, n.UserID)
			s.Equal(domain.NotificationBidAccepted, n.Type)
			s.NotEqual(uuid.Nil, n.ID)
			_, hasDeadline := ctx.Deadline()
			s.True(hasDeadline)
			return nil
		}).Times(1)
	s.mustBid(auction.ID, bidderX, 11)

	// a failing channel never fails the bid
	channel.EXPECT().Deliver(gomock.Any(), gomock.Any()).
		Return(errors.New("push gateway is down")).Times(2)
	s.mustBid(auction.ID, bidderY, 12)

	s.ElementsMatch(
		[]domain.NotificationType{domain.NotificationBidAccepted, domain.NotificationBidOutbid},
		s.inboxTypes(bidderX),
	)
}

func (s *EngineTestSuite) TestInboxAndMarkRead() {
	created, err := s.services.Notifications.Enqueue(s.ctx(), []Notice{
		{UserID: bidderX, Type: domain.NotificationBidLost, Message: "one", Importance: domain.ImportanceNormal},
		{UserID: bidderX, Type: domain.NotificationBidOutbid, Message: "two", Importance: domain.ImportanceHigh},
		{UserID: bidderY, Type: domain.NotificationBidOutbid, Message: "three", Importance: domain.ImportanceHigh},
	})
	s.Require().NoError(err)
	s.Require().Len(created, 3)

	s.Require().NoError(s.services.Notifications.MarkRead(s.ctx(), bidderX, created[0].ID))
	err = s.services.Notifications.MarkRead(s.ctx(), bidderX, created[2].ID)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)

	unread, err := s.services.Notifications.Inbox(s.ctx(), bidderX, true)
	s.Require().NoError(err)
	s.Require().Len(unread, 1)
	s.Equal("two", unread[0].Message)

	all, err := s.services.Notifications.Inbox(s.ctx(), bidderX, false)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *EngineTestSuite) TestPublishWithoutNotices() {
	s.services.Notifications.Publish(s.ctx())
	created, err := s.services.Notifications.Enqueue(s.ctx(), nil)
	s.Require().NoError(err)
	s.Empty(created)
}
