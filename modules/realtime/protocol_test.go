package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage(t *testing.T) {
	count := 12
	duration := 42.5

	tests := []struct {
		name  string
		frame string
		want  ClientMessage
	}{
		{
			name:  "issue subscribe bare id",
			frame: `{"event":"issue:subscribe","data":"I1"}`,
			want:  IssueSubscribe{IssueID: "I1"},
		},
		{
			name:  "issue subscribe numeric id",
			frame: `{"event":"issue:subscribe","data":17}`,
			want:  IssueSubscribe{IssueID: "17"},
		},
		{
			name:  "issue unsubscribe object",
			frame: `{"event":"issue:unsubscribe","data":{"issueId":"I1"}}`,
			want:  IssueUnsubscribe{IssueID: "I1"},
		},
		{
			name:  "project subscribe",
			frame: `{"event":"project:subscribe","data":"p42"}`,
			want:  ProjectSubscribe{ProjectID: "p42"},
		},
		{
			name:  "project unsubscribe",
			frame: `{"event":"project:unsubscribe","data":{"projectId":"p42"}}`,
			want:  ProjectUnsubscribe{ProjectID: "p42"},
		},
		{
			name:  "recording start",
			frame: `{"event":"recording:start","data":{"recordingId":"r1","projectId":"p42"}}`,
			want:  RecordingStart{RecordingID: "r1", ProjectID: "p42"},
		},
		{
			name:  "recording stop with duration",
			frame: `{"event":"recording:stop","data":{"recordingId":"r1","duration":42.5}}`,
			want:  RecordingStop{RecordingID: "r1", Duration: &duration},
		},
		{
			name:  "typing start",
			frame: `{"event":"typing:start","data":{"issueId":"I1"}}`,
			want:  TypingStart{IssueID: "I1"},
		},
		{
			name:  "typing stop",
			frame: `{"event":"typing:stop","data":"I1"}`,
			want:  TypingStop{IssueID: "I1"},
		},
		{
			name:  "presence update",
			frame: `{"event":"presence:update","data":{"status":"away"}}`,
			want:  PresenceUpdate{Status: "away"},
		},
		{
			name:  "presence update bare",
			frame: `{"event":"presence:update","data":"busy"}`,
			want:  PresenceUpdate{Status: "busy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("recording interaction keeps payload", func(t *testing.T) {
		got, err := DecodeClientMessage([]byte(`{"event":"recording:interaction","data":{"recordingId":"r1","interactionCount":12,"kind":"click"}}`))
		require.NoError(t, err)

		msg, ok := got.(RecordingInteraction)
		require.True(t, ok)
		assert.Equal(t, "r1", msg.RecordingID)
		require.NotNil(t, msg.InteractionCount)
		assert.Equal(t, count, *msg.InteractionCount)
		assert.Equal(t, "click", msg.Fields["kind"])
	})

	t.Run("recording interaction skips invalid counts", func(t *testing.T) {
		for _, raw := range []string{`12.7`, `-3`, `1e30`, `99999999999999999999`, `"12"`} {
			got, err := DecodeClientMessage([]byte(`{"event":"recording:interaction","data":{"recordingId":"r1","interactionCount":` + raw + `}}`))
			require.NoError(t, err, raw)

			msg, ok := got.(RecordingInteraction)
			require.True(t, ok, raw)
			assert.Nil(t, msg.InteractionCount, raw)
			assert.Equal(t, "r1", msg.RecordingID, raw)
		}
	})

	t.Run("recording screenshot", func(t *testing.T) {
		got, err := DecodeClientMessage([]byte(`{"event":"recording:screenshot","data":{"recordingId":"r1","screenshotId":"s9"}}`))
		require.NoError(t, err)

		msg, ok := got.(RecordingScreenshot)
		require.True(t, ok)
		assert.Equal(t, "s9", msg.ScreenshotID)
		assert.Equal(t, "r1", msg.Fields["recordingId"])
	})

	t.Run("custom event", func(t *testing.T) {
		got, err := DecodeClientMessage([]byte(`{"event":"custom:event","data":{"type":"echo","text":"hi"}}`))
		require.NoError(t, err)

		msg, ok := got.(CustomEvent)
		require.True(t, ok)
		assert.Equal(t, "echo", msg.Type)
		assert.Equal(t, "hi", msg.Fields["text"])
	})
}

func TestDecodeClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"not json", `nope`, ErrMalformedFrame},
		{"no event", `{"data":"I1"}`, ErrMalformedFrame},
		{"array frame", `["issue:subscribe","I1"]`, ErrMalformedFrame},
		{"unknown event", `{"event":"issue:delete","data":"I1"}`, ErrUnknownEvent},
		{"missing id", `{"event":"issue:subscribe"}`, ErrMissingField},
		{"empty id", `{"event":"issue:subscribe","data":""}`, ErrMissingField},
		{"wrong field", `{"event":"project:subscribe","data":{"issueId":"I1"}}`, ErrMissingField},
		{"missing recording", `{"event":"recording:stop","data":{"projectId":"p42"}}`, ErrMissingField},
		{"custom without type", `{"event":"custom:event","data":{"text":"hi"}}`, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tt.frame))
			assert.Nil(t, msg)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}
