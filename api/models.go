package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ElevenLabsWebhookPayload is the post_call_transcription webhook body.
// Only the fields the relay reads are declared; everything else in the body
// is ignored, so upstream type changes in unused fields cannot reject a
// webhook.
type ElevenLabsWebhookPayload struct {
	Type string           `json:"type"`
	Data ConversationData `json:"data"`
}

// ConversationData is the "data" object of a post-call webhook
type ConversationData struct {
	ConversationID                   string               `json:"conversation_id"`
	Transcript                       []TranscriptTurn     `json:"transcript"`
	Metadata                         CallMetadata         `json:"metadata"`
	ConversationInitiationClientData InitiationClientData `json:"conversation_initiation_client_data"`
}

// TranscriptTurn is one utterance. Message is null for tool-call turns.
type TranscriptTurn struct {
	Role    string  `json:"role"`
	Message *string `json:"message"`
}

type CallMetadata struct {
	StartTimeUnixSecs    Seconds    `json:"start_time_unix_secs"`
	AcceptedTimeUnixSecs Seconds    `json:"accepted_time_unix_secs"`
	CallDurationSecs     Seconds    `json:"call_duration_secs"`
	PhoneCall            *PhoneCall `json:"phone_call,omitempty"`
}

type PhoneCall struct {
	ExternalNumber string `json:"external_number"`
	CallSID        string `json:"call_sid"`
}

// Seconds is a whole number of seconds that decodes from an integer, a
// float (truncated) or a numeric string. Any other value decodes as 0,
// which the accessors treat as unknown.
type Seconds int64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.Number:
		*s = Seconds(r.Float())
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			*s = 0
			return nil
		}
		*s = Seconds(f)
	default:
		*s = 0
	}
	return nil
}

type InitiationClientData struct {
	DynamicVariables map[string]any `json:"dynamic_variables"`
}

func (p *ElevenLabsWebhookPayload) dynamicVar(name string) string {
	v, ok := p.Data.ConversationInitiationClientData.DynamicVariables[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// CallerPhone returns the raw caller number, preferring the dynamic variable
// ElevenLabs fills for telephony calls.
func (p *ElevenLabsWebhookPayload) CallerPhone() string {
	if v := p.dynamicVar("system__caller_id"); v != "" {
		return v
	}
	if pc := p.Data.Metadata.PhoneCall; pc != nil {
		return pc.ExternalNumber
	}
	return ""
}

// CallID returns the telephony call SID, falling back to the conversation id.
func (p *ElevenLabsWebhookPayload) CallID() string {
	if v := p.dynamicVar("system__call_sid"); v != "" {
		return v
	}
	if pc := p.Data.Metadata.PhoneCall; pc != nil && pc.CallSID != "" {
		return pc.CallSID
	}
	return p.Data.ConversationID
}

// StartTime returns the call start, if known.
func (p *ElevenLabsWebhookPayload) StartTime() (time.Time, bool) {
	if p.Data.Metadata.StartTimeUnixSecs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(p.Data.Metadata.StartTimeUnixSecs), 0).UTC(), true
}

// EndTime is start plus duration when a duration is present, else the
// accepted time.
func (p *ElevenLabsWebhookPayload) EndTime() (time.Time, bool) {
	md := p.Data.Metadata
	if md.StartTimeUnixSecs > 0 && md.CallDurationSecs > 0 {
		return time.Unix(int64(md.StartTimeUnixSecs+md.CallDurationSecs), 0).UTC(), true
	}
	if md.AcceptedTimeUnixSecs > 0 {
		return time.Unix(int64(md.AcceptedTimeUnixSecs), 0).UTC(), true
	}
	return time.Time{}, false
}

// Duration returns the reported call length.
func (p *ElevenLabsWebhookPayload) Duration() (time.Duration, bool) {
	if p.Data.Metadata.CallDurationSecs <= 0 {
		return 0, false
	}
	return time.Duration(p.Data.Metadata.CallDurationSecs) * time.Second, true
}

// LookupRequest is the body of POST /lookup.
type LookupRequest struct {
	Phone    string `json:"phone"`
	CallerID string `json:"caller_id"`
}

// LookupResponse is returned by POST /lookup. Every field is null when the
// contact was not found.
type LookupResponse struct {
	Found      bool    `json:"found"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Email      *string `json:"email"`
	Company    *string `json:"company"`
	Transcript *string `json:"transcript"`
	Notes      *string `json:"notes"`
}

// CallResult summarises one processed call.
type CallResult struct {
	ContactID       string `json:"contact_id"`
	Phone           string `json:"phone"`
	CallID          string `json:"call_id"`
	TranscriptLines int    `json:"transcript_lines"`
	Extracted       bool   `json:"extracted"`
	NotesAttempted  int    `json:"notes_attempted"`
	NotesFailed     int    `json:"notes_failed"`
}

// WebhookResponse represents the JSON response of the test endpoints
type WebhookResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
