package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type notificationRecord struct {
	ID        string    `gorm:"primaryKey;column:id;size:36"`
	Type      string    `gorm:"column:type"`
	Title     string    `gorm:"column:title"`
	Message   string    `gorm:"column:message"`
	Data      string    `gorm:"column:data;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (notificationRecord) TableName() string { return "notifications" }

// Store persists events to the notifications table so they survive broker
// outages and can be listed by the admin UI.
type Store struct {
	db *gorm.DB
}

// NewStore wraps the base connection. Notifications are written outside
// the request transaction on purpose: a rolled-back checkout must not
// leave a notification behind, and callers only notify after commit.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	record := notificationRecord{
		ID:        event.ID,
		Type:      event.Type,
		Title:     event.Title,
		Message:   event.Message,
		Data:      string(payload),
		CreatedAt: event.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("store notification %s: %w", event.ID, err)
	}
	return nil
}

// Recent returns the newest notifications, capped at limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []notificationRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(records))
	for _, r := range records {
		event := Event{
			ID:        r.ID,
			Type:      r.Type,
			Title:     r.Title,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
		}
		if r.Data != "" {
			_ = json.Unmarshal([]byte(r.Data), &event.Data)
		}
		events = append(events, event)
	}
	return events, nil
}
