package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eventType   EventType
		wantSuccess bool
	}{
		{eventType: EventAuthSuccess, wantSuccess: true},
		{eventType: EventToolCall, wantSuccess: true},
		{eventType: EventAuthFailure},
		{eventType: EventRateLimited},
		{eventType: EventAuthzDenied},
		{eventType: EventError},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			t.Parallel()

			e := NewEntry(tt.eventType)
			_, err := uuid.Parse(e.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.eventType, e.EventType)
			assert.Equal(t, tt.wantSuccess, e.Success)
			assert.WithinDuration(t, time.Now(), e.Timestamp, time.Minute)
		})
	}
}

func TestEntry_CapsLongFields(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 200) // 400 bytes
	e := NewEntry(EventToolCall).WithIdentity(long).WithCapability(long)

	assert.LessOrEqual(t, len(e.IdentityID), MaxFieldLength)
	assert.LessOrEqual(t, len(e.Capability), MaxFieldLength)
	assert.True(t, utf8.ValidString(e.IdentityID))
	assert.True(t, utf8.ValidString(e.Capability))
	assert.Equal(t, 256, len(e.IdentityID))

	short := NewEntry(EventToolCall).WithCapability("read_file")
	assert.Equal(t, "read_file", short.Capability)
}

func TestEntry_JSON(t *testing.T) {
	t.Parallel()

	e := NewEntry(EventAuthzDenied).
		WithIdentity("dev1").
		WithMethod("tools/call").
		WithCapability("write_file").
		WithMessage("denied").
		WithDuration(1500 * time.Millisecond).
		WithCorrelation("req-1", "trace-1").
		WithClientIP("10.0.0.1")

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "authz_denied", got["event_type"])
	assert.Equal(t, "dev1", got["identity_id"])
	assert.Equal(t, "tools/call", got["method"])
	assert.Equal(t, "write_file", got["tool"])
	assert.Equal(t, false, got["success"])
	assert.Equal(t, float64(1500), got["duration_ms"])
	assert.Equal(t, "req-1", got["correlation_id"])
	assert.Equal(t, "trace-1", got["trace_id"])
	assert.Equal(t, "10.0.0.1", got["client_ip"])
}
