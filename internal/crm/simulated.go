package crm

import (
	"context"
	"log/slog"

	"ghlrelay/internal/logger"
)

// Simulated IDs returned without touching GHL.
const (
	SimulatedContactID = "mock-contact"
	SimulatedUpsertID  = "mock-upsert"
)

// Simulated is a Client that logs what it would do and returns canned
// records. It is used whenever the relay is not running in production,
// regardless of configured GHL credentials.
type Simulated struct {
	logger *slog.Logger
}

var _ Client = (*Simulated)(nil)

func NewSimulated(log *slog.Logger) *Simulated {
	if log == nil {
		log = slog.Default()
	}
	return &Simulated{logger: log.With("component", "relay.crm.simulated")}
}

func (s *Simulated) FindContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	if phone == "" {
		return nil, nil
	}
	s.logger.InfoContext(ctx, "simulated contact search", "phone", phone, "contact_id", SimulatedContactID)
	return &Contact{ID: SimulatedContactID, Phone: phone}, nil
}

func (s *Simulated) CreateOrUpdateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	s.logger.InfoContext(ctx, "simulated contact upsert",
		"phone", in.Phone,
		"first_name", in.FirstName,
		"contact_id", SimulatedUpsertID,
	)
	return &Contact{
		ID:          SimulatedUpsertID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		CompanyName: in.Company,
		Phone:       in.Phone,
	}, nil
}

func (s *Simulated) AddNote(ctx context.Context, contactID, body string) error {
	if contactID == "" || body == "" {
		s.logger.WarnContext(ctx, "skipping note: missing contact id or body", "contact_id", contactID)
		return nil
	}
	s.logger.InfoContext(ctx, "simulated note",
		"contact_id", contactID,
		"preview", logger.Truncate(body, 40),
	)
	return nil
}

// GetContactNotes always returns no notes.
func (s *Simulated) GetContactNotes(ctx context.Context, contactID string) ([]Note, error) {
	s.logger.InfoContext(ctx, "simulated notes fetch", "contact_id", contactID)
	return nil, nil
}
