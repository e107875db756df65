package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// PresenceChangedEvent is emitted when the realtime module publishes a presence transition.
type PresenceChangedEvent struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceChangedV1 is the typed event definition for presence transitions.
// Subject: events.realtime.v1.presence-changed
var PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
	"realtime", "PresenceChanged", "v1",
)
