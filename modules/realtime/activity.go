package realtime

import (
	"context"
	"sort"
	"strings"
	"time"

	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/example/qa-realtime/modules/store"
	"github.com/go-monolith/mono/pkg/types"
)

const activityKeyPrefix = "activity:"

// ActivityTracker keeps short-lived activity records for live recordings.
type ActivityTracker struct {
	store   store.Store
	ttl     time.Duration
	now     func() time.Time
	logger  types.Logger
	metrics *Metrics
}

// NewActivityTracker creates an ActivityTracker whose records expire after ttl.
func NewActivityTracker(s store.Store, ttl time.Duration, logger types.Logger, metrics *Metrics) *ActivityTracker {
	return &ActivityTracker{
		store:   s,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

// Touch refreshes the record of resourceID. The counter is set to count when
// given, otherwise incremented.
func (a *ActivityTracker) Touch(ctx context.Context, resourceID, userID string, count *int) {
	key := activityKeyPrefix + resourceID

	var record domain.ActivityRecord
	if _, err := store.GetJSON(ctx, a.store, key, &record); err != nil {
		a.metrics.storeError("activity_get")
		a.logger.Debug("Failed to read activity", "resourceID", resourceID, "error", err)
		record = domain.ActivityRecord{}
	}

	record.ResourceID = resourceID
	record.UserID = userID
	record.LastActivity = a.now().UTC()
	if count != nil {
		record.Counter = *count
	} else {
		record.Counter++
	}

	if err := store.SetJSON(ctx, a.store, key, record, a.ttl); err != nil {
		a.metrics.storeError("activity_set")
		a.logger.Warn("Failed to store activity", "resourceID", resourceID, "error", err)
	}
}

// Stop removes the record of resourceID.
func (a *ActivityTracker) Stop(ctx context.Context, resourceID string) {
	if err := a.store.Delete(ctx, activityKeyPrefix+resourceID); err != nil {
		a.metrics.storeError("activity_delete")
		a.logger.Warn("Failed to delete activity", "resourceID", resourceID, "error", err)
	}
}

// Active returns the IDs of resources with a live record, sorted.
func (a *ActivityTracker) Active(ctx context.Context) []string {
	keys, err := a.store.Keys(ctx, activityKeyPrefix)
	if err != nil {
		a.metrics.storeError("activity_keys")
		a.logger.Warn("Failed to list activity", "error", err)
		return []string{}
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, activityKeyPrefix))
	}
	sort.Strings(ids)
	return ids
}

// Cleanup deletes records whose last activity is older than the TTL and
// returns how many were removed.
func (a *ActivityTracker) Cleanup(ctx context.Context) int {
	keys, err := a.store.Keys(ctx, activityKeyPrefix)
	if err != nil {
		a.metrics.storeError("activity_keys")
		a.logger.Warn("Activity cleanup skipped", "error", err)
		return 0
	}

	cutoff := a.now().Add(-a.ttl)
	removed := 0
	for _, key := range keys {
		var record domain.ActivityRecord
		found, err := store.GetJSON(ctx, a.store, key, &record)
		if err != nil || !found {
			continue
		}
		if !record.LastActivity.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, key); err != nil {
			a.metrics.storeError("activity_delete")
			a.logger.Warn("Failed to delete stale activity", "key", key, "error", err)
			continue
		}
		removed++
	}
	return removed
}
