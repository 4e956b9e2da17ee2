package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ghlrelay/internal/logger"
	"ghlrelay/internal/observe"
)

// DefaultBaseURL is the GoHighLevel v1 REST root.
const DefaultBaseURL = "https://rest.gohighlevel.com/v1"

// Config holds the GHL connection settings.
type Config struct {
	APIKey     string
	LocationID string
	BaseURL    string
	Timeout    time.Duration
}

// GHL is the live GoHighLevel client.
type GHL struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observe.Metrics
}

var _ Client = (*GHL)(nil)

// NewGHL creates a live client. A nil logger or metrics falls back to the
// default logger and discarded metrics.
func NewGHL(cfg Config, log *slog.Logger, metrics *observe.Metrics) *GHL {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.Discard()
	}
	return &GHL{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.With("component", "relay.crm.ghl"),
		metrics:    metrics,
	}
}

// request performs one authenticated call and returns the raw body of a 2xx
// answer. Non-2xx answers come back as *APIError.
func (g *GHL) request(ctx context.Context, method, endpoint string, query url.Values, body any) ([]byte, error) {
	target := strings.TrimRight(g.cfg.BaseURL, "/") + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
		g.logger.DebugContext(ctx, "ghl request body", "body", logger.Truncate(string(data), 500))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	g.logger.DebugContext(ctx, "ghl request", "method", method, "endpoint", endpoint)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	g.logger.DebugContext(ctx, "ghl response",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"body", logger.Truncate(string(respBody), 500),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}
	return respBody, nil
}

// track opens a span for one CRM operation. The returned func records the
// outcome metric and ends the span.
func (g *GHL) track(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(outcome string, err error)) {
	start := time.Now()
	ctx, span := logger.StartSpan(ctx, "crm."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(outcome string, err error) {
		span.SetAttributes(attribute.String("crm.outcome", outcome))
		g.metrics.RecordCRM(ctx, op, outcome, time.Since(start))
		logger.EndSpan(span, err)
	}
}

// upstreamAttrs adds the upstream status and body to a log line when err is
// an *APIError.
func upstreamAttrs(err error) []any {
	attrs := []any{"error", err}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			"upstream_status", apiErr.StatusCode,
			"upstream_body", logger.Truncate(apiErr.Body, 500),
		)
	}
	return attrs
}

// FindContactByPhone searches the location's contacts for phone. Any failure
// is logged and reported as not found.
func (g *GHL) FindContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	if phone == "" {
		return nil, nil
	}
	ctx, done := g.track(ctx, "find_contact")

	query := url.Values{}
	query.Set("locationId", g.cfg.LocationID)
	query.Set("query", phone)

	body, err := g.request(ctx, http.MethodGet, "/contacts/", query, nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "contact search failed", upstreamAttrs(err)...)
		done(observe.OutcomeError, err)
		return nil, nil
	}

	candidates, err := parseContactList(body)
	if err != nil {
		g.logger.WarnContext(ctx, "contact search returned unexpected shape",
			"error", err,
			"body", logger.Truncate(string(body), 500),
		)
		done(observe.OutcomeError, err)
		return nil, nil
	}

	match := matchContact(candidates, phone)
	if match == nil {
		g.logger.InfoContext(ctx, "no contact found", "phone", phone)
		done(observe.OutcomeEmpty, nil)
		return nil, nil
	}

	g.logger.InfoContext(ctx, "found existing contact",
		"contact_id", match.ID,
		"candidates", len(candidates),
	)
	done(observe.OutcomeOK, nil)
	return match, nil
}

// upsertPayload mirrors the GHL contact upsert body.
type upsertPayload struct {
	LocationID  string `json:"locationId"`
	Phone       string `json:"phone,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// CreateOrUpdateContact upserts a contact and returns the stored record.
func (g *GHL) CreateOrUpdateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	ctx, done := g.track(ctx, "upsert_contact")

	payload := upsertPayload{
		LocationID:  g.cfg.LocationID,
		Phone:       in.Phone,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		CompanyName: in.Company,
	}

	body, err := g.request(ctx, http.MethodPost, "/contacts/", nil, payload)
	if err != nil {
		g.logger.ErrorContext(ctx, "contact upsert failed", upstreamAttrs(err)...)
		done(observe.OutcomeError, err)
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	contact, err := parseContact(body)
	if err != nil {
		g.logger.ErrorContext(ctx, "contact upsert returned unexpected shape",
			"error", err,
			"body", logger.Truncate(string(body), 500),
		)
		done(observe.OutcomeError, err)
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	g.logger.InfoContext(ctx, "contact upserted", "contact_id", contact.ID)
	done(observe.OutcomeOK, nil)
	return contact, nil
}

// AddNote posts a note to a contact. Failures are logged and returned for
// counting only.
func (g *GHL) AddNote(ctx context.Context, contactID, body string) error {
	if contactID == "" || body == "" {
		g.logger.WarnContext(ctx, "skipping note: missing contact id or body",
			"contact_id", contactID,
			"body_len", len(body),
		)
		return nil
	}
	ctx, done := g.track(ctx, "add_note", attribute.String("crm.contact_id", contactID))

	endpoint := "/contacts/" + url.PathEscape(contactID) + "/notes/"
	if _, err := g.request(ctx, http.MethodPost, endpoint, nil, map[string]string{"body": body}); err != nil {
		g.logger.ErrorContext(ctx, "failed to add note",
			append(upstreamAttrs(err), "contact_id", contactID)...)
		done(observe.OutcomeError, err)
		return fmt.Errorf("add note: %w", err)
	}

	g.logger.InfoContext(ctx, "note added",
		"contact_id", contactID,
		"preview", logger.Truncate(body, 40),
	)
	done(observe.OutcomeOK, nil)
	return nil
}

// GetContactNotes lists the notes of a contact.
func (g *GHL) GetContactNotes(ctx context.Context, contactID string) ([]Note, error) {
	if contactID == "" {
		return nil, errors.New("get contact notes: contact id is required")
	}
	ctx, done := g.track(ctx, "list_notes", attribute.String("crm.contact_id", contactID))

	endpoint := "/contacts/" + url.PathEscape(contactID) + "/notes/"
	body, err := g.request(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to fetch notes",
			append(upstreamAttrs(err), "contact_id", contactID)...)
		done(observe.OutcomeError, err)
		return nil, fmt.Errorf("get contact notes: %w", err)
	}

	notes, err := parseNoteList(body)
	if err != nil {
		done(observe.OutcomeError, err)
		return nil, fmt.Errorf("get contact notes: %w", err)
	}

	outcome := observe.OutcomeOK
	if len(notes) == 0 {
		outcome = observe.OutcomeEmpty
	}
	done(outcome, nil)
	return notes, nil
}
