package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

// MaxFieldLength caps identity and capability values carried by entries.
const MaxFieldLength = 256

// EventType represents the type of audit event.
type EventType string

// Event types.
const (
	EventAuthSuccess EventType = "auth_success"
	EventAuthFailure EventType = "auth_failure"
	EventToolCall    EventType = "tool_call"
	EventRateLimited EventType = "rate_limited"
	EventAuthzDenied EventType = "authz_denied"
	EventError       EventType = "error"
)

// Entry is a single audit record.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// EventType is the type of event.
	EventType EventType `json:"event_type"`

	// IdentityID is the authenticated caller, if known.
	IdentityID string `json:"identity_id,omitempty"`

	// Method is the JSON-RPC method, or the authentication method for
	// authentication events.
	Method string `json:"method,omitempty"`

	// Capability is the requested capability name.
	Capability string `json:"tool,omitempty"`

	// Success reports the outcome.
	Success bool `json:"success"`

	// Message is a short sanitized description.
	Message string `json:"message,omitempty"`

	// DurationMS is the request duration in milliseconds.
	DurationMS int64 `json:"duration_ms,omitempty"`

	// CorrelationID links the entry to logs and the caller's error body.
	CorrelationID string `json:"correlation_id,omitempty"`

	// ClientIP is the caller's address.
	ClientIP string `json:"client_ip,omitempty"`

	// TraceID is the trace ID for distributed tracing.
	TraceID string `json:"trace_id,omitempty"`
}

// NewEntry creates an entry of the given type. Entries are successful
// unless marked otherwise.
func NewEntry(eventType EventType) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   eventType == EventAuthSuccess || eventType == EventToolCall,
	}
}

// WithIdentity sets the identity, capped at MaxFieldLength bytes.
func (e *Entry) WithIdentity(id string) *Entry {
	e.IdentityID = util.TruncateUTF8(id, MaxFieldLength)
	return e
}

// WithMethod sets the method.
func (e *Entry) WithMethod(method string) *Entry {
	e.Method = util.TruncateUTF8(method, MaxFieldLength)
	return e
}

// WithCapability sets the capability, capped at MaxFieldLength bytes.
func (e *Entry) WithCapability(name string) *Entry {
	e.Capability = util.TruncateUTF8(name, MaxFieldLength)
	return e
}

// WithSuccess sets the outcome.
func (e *Entry) WithSuccess(success bool) *Entry {
	e.Success = success
	return e
}

// WithMessage sets the message.
func (e *Entry) WithMessage(message string) *Entry {
	e.Message = message
	return e
}

// WithDuration sets the duration.
func (e *Entry) WithDuration(d time.Duration) *Entry {
	e.DurationMS = d.Milliseconds()
	return e
}

// WithCorrelation sets the correlation and trace ids.
func (e *Entry) WithCorrelation(correlationID, traceID string) *Entry {
	e.CorrelationID = correlationID
	e.TraceID = traceID
	return e
}

// WithClientIP sets the client address.
func (e *Entry) WithClientIP(ip string) *Entry {
	e.ClientIP = ip
	return e
}
