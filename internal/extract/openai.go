package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"

	"ghlrelay/internal/logger"
	"ghlrelay/internal/observe"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Config configures the OpenAI extractor.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // zero keeps the client default
}

// OpenAI extracts profiles with a single chat completion per transcript.
type OpenAI struct {
	client  openai.Client
	model   string
	logger  *slog.Logger
	metrics *observe.Metrics
}

var _ Extractor = (*OpenAI)(nil)

func NewOpenAI(cfg Config, log *slog.Logger, metrics *observe.Metrics) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("extract: API key is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.Discard()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   model,
		logger:  log.With("component", "relay.extract"),
		metrics: metrics,
	}, nil
}

func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Extract(ctx context.Context, transcript string) (*Profile, error) {
	if strings.TrimSpace(transcript) == "" {
		o.metrics.RecordExtract(ctx, observe.OutcomeSkipped, 0)
		return nil, nil
	}

	start := time.Now()
	ctx, span := logger.StartSpan(ctx, "extract.profile")
	span.SetAttributes(attribute.String("llm.model", o.model))

	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(transcript)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        schemaName,
					Description: openai.String("Caller details extracted from a phone call"),
					Schema:      profileSchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		attrs := []any{"error", err, "model", o.model}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			attrs = append(attrs,
				"upstream_status", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code,
			)
		}
		o.logger.ErrorContext(ctx, "transcript extraction failed", attrs...)
		o.metrics.RecordExtract(ctx, observe.OutcomeError, time.Since(start))
		logger.EndSpan(span, err)
		return nil, fmt.Errorf("openai chat: %w", err)
	}

	o.logger.DebugContext(ctx, "extraction completed",
		"model", o.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	profile := parseProfile(resp)
	if profile == nil {
		content := ""
		if len(resp.Choices) > 0 {
			content = resp.Choices[0].Message.Content
		}
		o.logger.ErrorContext(ctx, "extraction returned unparsable content",
			"content", logger.Truncate(content, 500),
		)
		o.metrics.RecordExtract(ctx, observe.OutcomeEmpty, time.Since(start))
		logger.EndSpan(span, nil)
		return nil, nil
	}

	o.metrics.RecordExtract(ctx, observe.OutcomeOK, time.Since(start))
	logger.EndSpan(span, nil)
	return profile, nil
}

func parseProfile(resp *openai.ChatCompletion) *Profile {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}
	var p Profile
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &p); err != nil {
		return nil
	}
	return &p
}
