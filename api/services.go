package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ghlrelay/internal/crm"
	"ghlrelay/internal/extract"
	"ghlrelay/internal/logger"
	"ghlrelay/internal/observe"
	"ghlrelay/internal/phone"
)

var (
	// ErrMissingPhone means no caller number could be determined in
	// production.
	ErrMissingPhone = errors.New("caller phone is required")

	// ErrNoContactID means the upsert failed or returned no contact id.
	ErrNoContactID = errors.New("could not determine contact ID")
)

// CallService relays finished calls into the CRM and answers lookups.
type CallService struct {
	crm         crm.Client
	extractor   extract.Extractor
	logger      *slog.Logger
	metrics     *observe.Metrics
	production  bool
	placeholder string
}

// NewCallService wires the service. The CRM client and extractor are chosen
// by the caller (live or simulated) and never switched per request.
func NewCallService(config *Config, client crm.Client, extractor extract.Extractor, log *slog.Logger, metrics *observe.Metrics) *CallService {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.Discard()
	}
	placeholder := config.PlaceholderPhone
	if placeholder == "" {
		placeholder = DefaultPlaceholderPhone
	}
	return &CallService{
		crm:         client,
		extractor:   extractor,
		logger:      log.With("component", "relay.calls"),
		metrics:     metrics,
		production:  config.IsProduction(),
		placeholder: placeholder,
	}
}

// resolvePhone normalizes raw. A missing number is an error in production
// and the placeholder everywhere else.
func (s *CallService) resolvePhone(ctx context.Context, raw string) (string, error) {
	if normalized, ok := phone.Normalize(raw); ok {
		return normalized, nil
	}
	if s.production {
		return "", ErrMissingPhone
	}
	s.logger.WarnContext(ctx, "no caller phone, using placeholder", "placeholder", s.placeholder)
	return s.placeholder, nil
}

type pendingNote struct {
	kind string
	body string
}

// ProcessCall upserts the caller as a contact and attaches the call,
// transcript and summary notes. Notes are posted one after another; a failed
// note is logged and counted but does not fail the call.
func (s *CallService) ProcessCall(ctx context.Context, payload *ElevenLabsWebhookPayload) (*CallResult, error) {
	callID := payload.CallID()
	ctx = logger.WithLogFields(ctx, logger.LogFields{CallID: callID})

	normalized, err := s.resolvePhone(ctx, payload.CallerPhone())
	if err != nil {
		return nil, err
	}

	lines := flattenTranscript(payload.Data.Transcript)
	transcript := strings.Join(lines, "\n")

	s.logger.InfoContext(ctx, "processing call",
		"phone", normalized,
		"conversation_id", payload.Data.ConversationID,
		"turns", len(lines),
	)

	profile, err := s.extractor.Extract(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("extract transcript: %w", err)
	}
	if profile == nil {
		s.logger.InfoContext(ctx, "no profile extracted, continuing with empty fields")
	}

	input := crm.ContactInput{Phone: normalized}
	if profile != nil {
		input.FirstName = profile.FirstName
		input.LastName = profile.LastName
		input.Email = profile.Email
		input.Company = profile.BusinessName
	}

	contact, err := s.crm.CreateOrUpdateContact(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoContactID, err)
	}
	if contact == nil || contact.ID == "" {
		return nil, ErrNoContactID
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{ContactID: contact.ID})

	result := &CallResult{
		ContactID:       contact.ID,
		Phone:           normalized,
		CallID:          callID,
		TranscriptLines: len(lines),
		Extracted:       profile != nil,
	}

	notes := []pendingNote{
		{kind: "call", body: buildCallNote(payload, normalized)},
		{kind: "transcript", body: buildTranscriptNote(transcript)},
		{kind: "summary", body: buildSummaryNote(profile)},
	}
	for _, n := range notes {
		result.NotesAttempted++
		if err := s.crm.AddNote(ctx, contact.ID, n.body); err != nil {
			result.NotesFailed++
			s.metrics.RecordNoteFailure(ctx, n.kind)
			s.logger.WarnContext(ctx, "note not saved", "kind", n.kind, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "call processed",
		"notes_attempted", result.NotesAttempted,
		"notes_failed", result.NotesFailed,
	)
	return result, nil
}

// Lookup returns the caller's profile plus the transcript and notes stored
// by earlier calls.
func (s *CallService) Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error) {
	raw := req.Phone
	if raw == "" {
		raw = req.CallerID
	}
	normalized, err := s.resolvePhone(ctx, raw)
	if err != nil {
		return nil, err
	}

	contact, err := s.crm.FindContactByPhone(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	if contact == nil {
		s.logger.InfoContext(ctx, "lookup: contact not found", "phone", normalized)
		return &LookupResponse{Found: false}, nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{ContactID: contact.ID})

	notes, err := s.crm.GetContactNotes(ctx, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch notes: %w", err)
	}

	s.logger.InfoContext(ctx, "lookup: contact found", "notes", len(notes))
	return &LookupResponse{
		Found:      true,
		FirstName:  strPtr(contact.FirstName),
		LastName:   strPtr(contact.LastName),
		Email:      strPtr(contact.Email),
		Company:    strPtr(contact.CompanyName),
		Transcript: strPtr(transcriptFromNotes(notes)),
		Notes:      strPtr(joinNotes(notes)),
	}, nil
}

func strPtr(s string) *string {
	return &s
}
