package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	domain "github.com/example/qa-realtime/domain/realtime"
)

// Inbound client events.
const (
	EventIssueSubscribe       = "issue:subscribe"
	EventIssueUnsubscribe     = "issue:unsubscribe"
	EventProjectSubscribe     = "project:subscribe"
	EventProjectUnsubscribe   = "project:unsubscribe"
	EventRecordingStart       = "recording:start"
	EventRecordingInteraction = "recording:interaction"
	EventRecordingScreenshot  = "recording:screenshot"
	EventRecordingStop        = "recording:stop"
	EventTypingStart          = "typing:start"
	EventTypingStop           = "typing:stop"
	EventPresenceUpdate       = "presence:update"
	EventCustom               = "custom:event"
)

// Outbound events produced while handling client messages.
const (
	EventConnected         = "connected"
	EventRecordingStarted  = "recording:started"
	EventRecordingStopped  = "recording:stopped"
	EventUserTyping        = "user:typing"
	EventUserStoppedTyping = "user:stopped_typing"
	EventPong              = "pong"
	EventEcho              = "echo"
)

var (
	// ErrMalformedFrame is returned when a frame is not an {event, data} object.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownEvent is returned for event names outside the protocol.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing field")
)

// ClientMessage is a decoded inbound message. The set of implementations is closed.
type ClientMessage interface {
	Event() string
}

type IssueSubscribe struct{ IssueID string }
type IssueUnsubscribe struct{ IssueID string }
type ProjectSubscribe struct{ ProjectID string }
type ProjectUnsubscribe struct{ ProjectID string }

// RecordingStart announces that the sender began recording.
type RecordingStart struct {
	RecordingID string
	ProjectID   string
}

// RecordingInteraction carries one captured interaction. Fields is the full
// client payload and is relayed as is.
type RecordingInteraction struct {
	RecordingID      string
	InteractionCount *int
	Fields           map[string]any
}

// RecordingScreenshot carries a screenshot reference. Fields is relayed as is.
type RecordingScreenshot struct {
	RecordingID  string
	ScreenshotID string
	Fields       map[string]any
}

// RecordingStop ends a recording session.
type RecordingStop struct {
	RecordingID string
	ProjectID   string
	Duration    *float64
}

type TypingStart struct{ IssueID string }
type TypingStop struct{ IssueID string }

// PresenceUpdate sets the sender's status.
type PresenceUpdate struct{ Status string }

// CustomEvent is an application-defined message dispatched on Type.
type CustomEvent struct {
	Type   string
	Fields map[string]any
}

func (IssueSubscribe) Event() string       { return EventIssueSubscribe }
func (IssueUnsubscribe) Event() string     { return EventIssueUnsubscribe }
func (ProjectSubscribe) Event() string     { return EventProjectSubscribe }
func (ProjectUnsubscribe) Event() string   { return EventProjectUnsubscribe }
func (RecordingStart) Event() string       { return EventRecordingStart }
func (RecordingInteraction) Event() string { return EventRecordingInteraction }
func (RecordingScreenshot) Event() string  { return EventRecordingScreenshot }
func (RecordingStop) Event() string        { return EventRecordingStop }
func (TypingStart) Event() string          { return EventTypingStart }
func (TypingStop) Event() string           { return EventTypingStop }
func (PresenceUpdate) Event() string       { return EventPresenceUpdate }
func (CustomEvent) Event() string          { return EventCustom }

// DecodeClientMessage parses an inbound frame. Identifier payloads may be
// sent either bare ("I1", 17) or as an object ({"issueId": "I1"}).
func DecodeClientMessage(frame []byte) (ClientMessage, error) {
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: no event name", ErrMalformedFrame)
	}

	p, err := parsePayload(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Event, err)
	}

	switch env.Event {
	case EventIssueSubscribe, EventIssueUnsubscribe, EventTypingStart, EventTypingStop:
		issueID, err := p.id(env.Event, "issueId")
		if err != nil {
			return nil, err
		}
		switch env.Event {
		case EventIssueSubscribe:
			return IssueSubscribe{IssueID: issueID}, nil
		case EventIssueUnsubscribe:
			return IssueUnsubscribe{IssueID: issueID}, nil
		case EventTypingStart:
			return TypingStart{IssueID: issueID}, nil
		default:
			return TypingStop{IssueID: issueID}, nil
		}

	case EventProjectSubscribe, EventProjectUnsubscribe:
		projectID, err := p.id(env.Event, "projectId")
		if err != nil {
			return nil, err
		}
		if env.Event == EventProjectSubscribe {
			return ProjectSubscribe{ProjectID: projectID}, nil
		}
		return ProjectUnsubscribe{ProjectID: projectID}, nil

	case EventRecordingStart:
		recordingID, err := p.id(env.Event, "recordingId")
		if err != nil {
			return nil, err
		}
		return RecordingStart{RecordingID: recordingID, ProjectID: p.str("projectId")}, nil

	case EventRecordingInteraction:
		recordingID, err := p.id(env.Event, "recordingId")
		if err != nil {
			return nil, err
		}
		msg := RecordingInteraction{RecordingID: recordingID, Fields: p.fields}
		if count, ok := p.count("interactionCount"); ok {
			msg.InteractionCount = &count
		}
		return msg, nil

	case EventRecordingScreenshot:
		recordingID, err := p.id(env.Event, "recordingId")
		if err != nil {
			return nil, err
		}
		return RecordingScreenshot{
			RecordingID:  recordingID,
			ScreenshotID: p.str("screenshotId"),
			Fields:       p.fields,
		}, nil

	case EventRecordingStop:
		recordingID, err := p.id(env.Event, "recordingId")
		if err != nil {
			return nil, err
		}
		msg := RecordingStop{RecordingID: recordingID, ProjectID: p.str("projectId")}
		if d, ok := p.number("duration"); ok {
			msg.Duration = &d
		}
		return msg, nil

	case EventPresenceUpdate:
		status, err := p.id(env.Event, "status")
		if err != nil {
			return nil, err
		}
		return PresenceUpdate{Status: status}, nil

	case EventCustom:
		typ := p.str("type")
		if typ == "" {
			return nil, fmt.Errorf("%w: %s.type", ErrMissingField, env.Event)
		}
		return CustomEvent{Type: typ, Fields: p.fields}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// payload is a decoded message body: either a scalar or an object.
type payload struct {
	scalar string
	fields map[string]any
}

func parsePayload(data json.RawMessage) (payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return payload{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return payload{}, err
	}

	switch val := v.(type) {
	case map[string]any:
		return payload{fields: val}, nil
	default:
		return payload{scalar: scalarString(val)}, nil
	}
}

// id returns the bare scalar payload or the named object field.
func (p payload) id(event, field string) (string, error) {
	v := p.scalar
	if p.fields != nil {
		v = p.str(field)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s.%s", ErrMissingField, event, field)
	}
	return v, nil
}

func (p payload) str(field string) string {
	if p.fields == nil {
		return ""
	}
	return scalarString(p.fields[field])
}

func (p payload) number(field string) (float64, bool) {
	if p.fields == nil {
		return 0, false
	}
	n, ok := p.fields[field].(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// count returns the named field as a non-negative integer. Fractions and
// out-of-range values are treated as absent.
func (p payload) count(field string) (int, bool) {
	if p.fields == nil {
		return 0, false
	}
	n, ok := p.fields[field].(json.Number)
	if !ok {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil || v < 0 || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
