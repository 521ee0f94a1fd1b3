package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// NoticeView is the API shape of an in-app notification.
type NoticeView struct {
	ID        uuid.UUID               `json:"id"`
	Type      enums.NotificationType  `json:"type"`
	Event     enums.NotificationEvent `json:"event"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	OrderID   *uuid.UUID              `json:"orderId,omitempty"`
	ReadAt    *time.Time              `json:"readAt,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
}

type NoticeList struct {
	Notifications []NoticeView `json:"notifications"`
	NextCursor    string       `json:"nextCursor,omitempty"`
}

func NewNoticeList(rows []models.Notification, next string) NoticeList {
	out := NoticeList{Notifications: make([]NoticeView, 0, len(rows)), NextCursor: next}
	for _, n := range rows {
		out.Notifications = append(out.Notifications, NoticeView{
			ID:        n.ID,
			Type:      n.Type,
			Event:     n.Event,
			Title:     n.Title,
			Message:   n.Message,
			OrderID:   n.OrderID,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
