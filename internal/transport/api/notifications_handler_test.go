package api

import (
	"net/http"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
)

func (s *HandlersTestSuite) TestInbox() {
	auctionID := int64(5)
	s.mockNotifications.EXPECT().Inbox(gomock.Any(), bidderID, true).Return([]domain.Notification{
		{
			ID:         uuid.New(),
			UserID:     bidderID,
			AuctionID:  &auctionID,
			Type:       domain.NotificationBidOutbid,
			Message:    "You were outbid",
			Importance: domain.ImportanceNormal,
		},
	}, nil).Times(1)
	s.mockNotifications.EXPECT().Inbox(gomock.Any(), bidderID, false).Return([]domain.Notification{}, nil).Times(1)

	status, body := s.request(http.MethodGet, NotificationsRoute+"?unread=true", "", s.bidderToken)
	s.Require().Equal(http.StatusOK, status)
	var res []NotificationResponse
	s.decode(body, &res)
	s.Require().Len(res, 1)
	s.Equal(domain.NotificationBidOutbid, res[0].Type)
	s.False(res[0].Read)

	status, body = s.request(http.MethodGet, NotificationsRoute, "", s.bidderToken)
	s.Require().Equal(http.StatusOK, status)
	s.JSONEq(`[]`, string(body))
}

func (s *HandlersTestSuite) TestMarkRead() {
	known, unknown := uuid.New(), uuid.New()
	s.mockNotifications.EXPECT().MarkRead(gomock.Any(), bidderID, known).Return(nil).Times(1)
	s.mockNotifications.EXPECT().MarkRead(gomock.Any(), bidderID, unknown).Return(domain.ErrRecordNotFound).Times(1)

	cases := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "all ok", id: known.String(), wantStatus: http.StatusNoContent},
		{name: "someone else's or missing", id: unknown.String(), wantStatus: http.StatusNotFound},
		{name: "not a uuid", id: "42", wantStatus: http.StatusNotFound},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, _ := s.request(http.MethodPost, "/user/notifications/"+t.id+"/read", "", s.bidderToken)
			s.Equal(t.wantStatus, status)
		})
	}
}
