package realtime

import (
	"context"
	"time"

	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/example/qa-realtime/modules/store"
	"github.com/go-monolith/mono/pkg/types"
)

const presenceKeyPrefix = "presence:"

// EventPresence is the outbound event carrying a PresenceRecord.
const EventPresence = "user:presence"

// PresenceTracker records user status with a TTL and announces changes to
// the user's project rooms.
type PresenceTracker struct {
	store    store.Store
	router   *Router
	projects ProjectLister
	ttl      time.Duration
	now      func() time.Time
	logger   types.Logger
	metrics  *Metrics
	onChange func(ctx context.Context, record domain.PresenceRecord)
}

// NewPresenceTracker creates a PresenceTracker. projects may be nil, in which
// case changes are stored but not announced.
func NewPresenceTracker(s store.Store, router *Router, projects ProjectLister, ttl time.Duration, logger types.Logger, metrics *Metrics) *PresenceTracker {
	return &PresenceTracker{
		store:    s,
		router:   router,
		projects: projects,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		metrics:  metrics,
	}
}

// OnChange sets a function called after every update.
func (p *PresenceTracker) OnChange(fn func(ctx context.Context, record domain.PresenceRecord)) {
	p.onChange = fn
}

// Update writes the user's status and broadcasts it to every project room
// of the user. Store and directory failures are logged and never returned.
func (p *PresenceTracker) Update(ctx context.Context, userID, status string) domain.PresenceRecord {
	record := domain.PresenceRecord{
		UserID:   userID,
		Status:   status,
		LastSeen: p.now().UTC(),
	}

	if err := store.SetJSON(ctx, p.store, presenceKeyPrefix+userID, record, p.ttl); err != nil {
		p.metrics.storeError("presence_set")
		p.logger.Warn("Failed to store presence", "userID", userID, "status", status, "error", err)
	}

	if p.projects != nil {
		projectIDs, err := p.projects.ProjectsForUser(ctx, userID)
		if err != nil {
			p.logger.Warn("Project lookup failed, presence not broadcast", "userID", userID, "error", err)
		}
		for _, projectID := range projectIDs {
			p.router.Broadcast(domain.ProjectRoom(projectID), EventPresence, record, "")
		}
	}

	if p.onChange != nil {
		p.onChange(ctx, record)
	}
	return record
}

// Get returns the stored presence of a user. A missing, expired or
// unreadable record is reported as absent.
func (p *PresenceTracker) Get(ctx context.Context, userID string) (domain.PresenceRecord, bool) {
	var record domain.PresenceRecord
	found, err := store.GetJSON(ctx, p.store, presenceKeyPrefix+userID, &record)
	if err != nil {
		p.metrics.storeError("presence_get")
		p.logger.Warn("Failed to read presence", "userID", userID, "error", err)
		return domain.PresenceRecord{}, false
	}
	return record, found
}
