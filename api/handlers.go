package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ghlrelay/internal/crm"
	"ghlrelay/internal/logger"
	"ghlrelay/internal/snapshot"
)

const maxBodyBytes = 1 << 20

// Plain-text replies of POST /elevenlabs.
const (
	msgProcessed      = "Webhook processed successfully"
	msgCallerRequired = "caller_id is required"
	msgInvalidJSON    = "Invalid JSON payload"
	msgTooLarge       = "Payload too large"
	msgNoContactID    = "Could not determine contact ID"
	msgFailed         = "Error processing webhook"
)

// errorAttrs adds the upstream status and payload to a log line when the
// CRM rejected a request.
func errorAttrs(err error) []any {
	attrs := []any{"error", err}
	var apiErr *crm.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			"upstream_status", apiErr.StatusCode,
			"upstream_body", logger.Truncate(apiErr.Body, 1000),
		)
	}
	return attrs
}

func readBody(c *gin.Context) ([]byte, int, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}
	return raw, 0, nil
}

// ElevenLabsWebhookHandler handles ElevenLabs post-call transcription webhooks
func ElevenLabsWebhookHandler(svc *CallService, snapshots *snapshot.Store, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw, status, err := readBody(c)
		if err != nil {
			log.WarnContext(ctx, "failed to read webhook body", "error", err)
			msg := msgInvalidJSON
			if status == http.StatusRequestEntityTooLarge {
				msg = msgTooLarge
			}
			c.String(status, msg)
			return
		}

		if snapshots != nil {
			if err := snapshots.Record(raw); err != nil {
				log.WarnContext(ctx, "failed to record webhook snapshot", "error", err)
			}
		}

		var payload ElevenLabsWebhookPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			log.WarnContext(ctx, "invalid webhook payload", "error", err)
			c.String(http.StatusBadRequest, msgInvalidJSON)
			return
		}

		log.InfoContext(ctx, "received ElevenLabs webhook",
			"type", payload.Type,
			"conversation_id", payload.Data.ConversationID,
			"turns", len(payload.Data.Transcript),
		)

		result, err := svc.ProcessCall(ctx, &payload)
		switch {
		case err == nil:
			log.InfoContext(ctx, "webhook processed", "contact_id", result.ContactID)
			c.String(http.StatusOK, msgProcessed)
		case errors.Is(err, ErrMissingPhone):
			log.WarnContext(ctx, "missing caller_id in webhook payload")
			c.String(http.StatusBadRequest, msgCallerRequired)
		case errors.Is(err, ErrNoContactID):
			log.ErrorContext(ctx, "failed to resolve contact", errorAttrs(err)...)
			c.String(http.StatusInternalServerError, msgNoContactID)
		default:
			log.ErrorContext(ctx, "error processing ElevenLabs webhook", errorAttrs(err)...)
			c.String(http.StatusInternalServerError, msgFailed)
		}
	}
}

// LookupHandler returns the stored profile for a caller
func LookupHandler(svc *CallService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw, status, err := readBody(c)
		if err != nil {
			c.JSON(status, gin.H{"error": "Invalid request body"})
			return
		}

		var req LookupRequest
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				log.WarnContext(ctx, "invalid lookup payload", "error", err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}

		resp, err := svc.Lookup(ctx, req)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, resp)
		case errors.Is(err, ErrMissingPhone):
			log.WarnContext(ctx, "missing phone in lookup request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing phone"})
		default:
			log.ErrorContext(ctx, "lookup error", errorAttrs(err)...)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
	}
}

// RootHandler is the plain-text liveness check.
func RootHandler(c *gin.Context) {
	c.String(http.StatusOK, "ElevenLabs → GHL Webhook Server is running")
}

// HealthCheckHandler provides a simple health check endpoint
func HealthCheckHandler(config *Config) gin.HandlerFunc {
	crmMode := "simulated"
	if config.IsProduction() {
		crmMode = "live"
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"service":    "ElevenLabs GHL Relay",
			"version":    config.OTel.ServiceVersion,
			"env":        config.Env,
			"crm":        crmMode,
			"extraction": config.HasOpenAIConfig(),
		})
	}
}

// TestElevenLabsHandler runs a built-in sample call through the service.
// Only registered outside production.
func TestElevenLabsHandler(svc *CallService) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := samplePayload(time.Now())

		result, err := svc.ProcessCall(c.Request.Context(), &payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, WebhookResponse{
				Success: false,
				Message: "Test failed: " + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, WebhookResponse{
			Success: true,
			Message: "Test ElevenLabs webhook processed successfully!",
			Data:    result,
		})
	}
}

func samplePayload(now time.Time) ElevenLabsWebhookPayload {
	msg := func(s string) *string { return &s }
	start := now.Add(-3 * time.Minute).Unix()

	return ElevenLabsWebhookPayload{
		Type: "post_call_transcription",
		Data: ConversationData{
			ConversationID: "conv-test-" + strconv.FormatInt(now.Unix(), 10),
			Transcript: []TranscriptTurn{
				{Role: "agent", Message: msg("Thanks for calling, who am I speaking with?")},
				{Role: "user", Message: msg("Hi, this is Jane Doe from Acme Plumbing. My email is jane@acmeplumbing.com.")},
				{Role: "agent", Message: msg("Great, how can I help today?")},
				{Role: "user", Message: msg("I'd like a quote for a commercial water heater install.")},
			},
			Metadata: CallMetadata{
				StartTimeUnixSecs:    Seconds(start),
				AcceptedTimeUnixSecs: Seconds(start),
				CallDurationSecs:     150,
			},
			ConversationInitiationClientData: InitiationClientData{
				DynamicVariables: map[string]any{
					"system__caller_id": "(555) 010-4477",
					"system__call_sid":  "CA" + uuid.NewString(),
				},
			},
		},
	}
}
