package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers enrich the request context once and every log line downstream
// (CRM client, extractor) carries the same call and contact identifiers.
type LogFields struct {
	RequestID string // X-Request-ID of the inbound HTTP request
	CallID    string // ElevenLabs call SID or conversation id
	ContactID string // GHL contact id once resolved
	Component string // e.g. "relay.crm.ghl"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.RequestID != "" {
		result.RequestID = new.RequestID
	}
	if new.CallID != "" {
		result.CallID = new.CallID
	}
	if new.ContactID != "" {
		result.ContactID = new.ContactID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Useful for logging note bodies and upstream error payloads.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
