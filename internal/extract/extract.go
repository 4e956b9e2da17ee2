// Package extract turns a call transcript into structured caller details
// using a chat completion model.
package extract

import (
	"context"
	"log/slog"
)

// Profile is what the model is asked to pull out of a transcript. Any field
// may be empty.
type Profile struct {
	FirstName    string `json:"firstName" jsonschema:"description=Caller first name, empty if unknown"`
	LastName     string `json:"lastName" jsonschema:"description=Caller last name, empty if unknown"`
	Email        string `json:"email" jsonschema:"description=Caller email address, empty if unknown"`
	BusinessName string `json:"businessName" jsonschema:"description=Caller company or business, empty if unknown"`
	Summary      string `json:"summary" jsonschema:"description=Short summary of the call"`
}

// Extractor extracts a Profile from a transcript.
//
// A nil Profile with a nil error means nothing usable came back (empty
// transcript, or the model answered with something that is not the
// requested JSON). An error means the model could not be reached.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (*Profile, error)
}

// Disabled is the Extractor used when no model is configured.
type Disabled struct {
	logger *slog.Logger
}

var _ Extractor = (*Disabled)(nil)

func NewDisabled(log *slog.Logger) *Disabled {
	if log == nil {
		log = slog.Default()
	}
	return &Disabled{logger: log}
}

func (d *Disabled) Extract(ctx context.Context, transcript string) (*Profile, error) {
	d.logger.DebugContext(ctx, "transcript extraction disabled", "transcript_len", len(transcript))
	return nil, nil
}
