package realtime

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/example/qa-realtime/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
)

const notificationsKeyPrefix = "notifications:"

// NotificationStore keeps a bounded, expiring notification log per user.
//
// Appends are a read-modify-write of the whole list and are not atomic:
// concurrent appends for the same user may lose one of the entries.
type NotificationStore struct {
	store   store.Store
	ttl     time.Duration
	limit   int
	newID   func() string
	now     func() time.Time
	logger  types.Logger
	metrics *Metrics
}

// NewNotificationStore creates a NotificationStore keeping at most limit
// entries per user for ttl after the last append.
func NewNotificationStore(s store.Store, ttl time.Duration, limit int, logger types.Logger, metrics *Metrics) (*NotificationStore, error) {
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &NotificationStore{
		store:   s,
		ttl:     ttl,
		limit:   limit,
		newID:   newID,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Prepare assigns n a fresh ID, fills in a missing creation time and marks
// it unread. Caller-supplied IDs are discarded.
func (s *NotificationStore) Prepare(n domain.Notification) domain.Notification {
	n.ID = s.newID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	n.Read = false
	return n
}

// Append adds a prepared notification to the user's log, dropping the oldest
// entries beyond the limit. A notification without an ID is prepared first.
// The log is left untouched when it cannot be read.
func (s *NotificationStore) Append(ctx context.Context, userID string, n domain.Notification) error {
	list, err := s.load(ctx, userID)
	if err != nil {
		s.metrics.storeError("notifications_get")
		return fmt.Errorf("failed to load notifications: %w", err)
	}

	if n.ID == "" {
		n = s.Prepare(n)
	}
	n.Read = false
	list = append(list, n)
	if s.limit > 0 && len(list) > s.limit {
		list = list[len(list)-s.limit:]
	}

	if err := store.SetJSON(ctx, s.store, notificationsKeyPrefix+userID, list, s.ttl); err != nil {
		s.metrics.storeError("notifications_set")
		return fmt.Errorf("failed to save notifications: %w", err)
	}
	return nil
}

// List returns the user's log, oldest first. It returns an empty list when
// there is none or the store is unavailable.
func (s *NotificationStore) List(ctx context.Context, userID string) []domain.Notification {
	list, err := s.load(ctx, userID)
	if err != nil {
		s.metrics.storeError("notifications_get")
		s.logger.Warn("Failed to load notifications", "userID", userID, "error", err)
		return []domain.Notification{}
	}
	return list
}

// MarkRead flags the notification as read and reports whether it was found.
// Unknown IDs and store failures leave the log unchanged.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, notificationID string) bool {
	list, err := s.load(ctx, userID)
	if err != nil {
		s.metrics.storeError("notifications_get")
		s.logger.Warn("Failed to load notifications", "userID", userID, "error", err)
		return false
	}

	found := false
	for i := range list {
		if list[i].ID == notificationID {
			list[i].Read = true
			found = true
			break
		}
	}
	if !found {
		return false
	}

	if err := store.SetJSON(ctx, s.store, notificationsKeyPrefix+userID, list, s.ttl); err != nil {
		s.metrics.storeError("notifications_set")
		s.logger.Warn("Failed to save notifications", "userID", userID, "error", err)
		return false
	}
	return true
}

func (s *NotificationStore) load(ctx context.Context, userID string) ([]domain.Notification, error) {
	list := []domain.Notification{}
	if _, err := store.GetJSON(ctx, s.store, notificationsKeyPrefix+userID, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}
