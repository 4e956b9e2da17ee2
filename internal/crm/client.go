// Package crm talks to GoHighLevel, the system of record for contacts and
// their notes.
//
// Two implementations of [Client] exist: [GHL] performs real REST calls and
// [Simulated] returns static mock records without any network traffic. One of
// them is chosen at startup and injected into the handlers.
package crm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnrecognizedResponseShape is returned when a GHL response matches none
// of the documented envelope shapes.
var ErrUnrecognizedResponseShape = errors.New("crm: unrecognized response shape")

// Client is the set of CRM operations the relay needs.
type Client interface {
	// FindContactByPhone returns the best match for phone, or nil when there is
	// none. Lookup failures are logged and reported as "not found".
	FindContactByPhone(ctx context.Context, phone string) (*Contact, error)

	// CreateOrUpdateContact upserts a contact; GHL decides create vs update
	// from its own duplicate matching. Failures are returned.
	CreateOrUpdateContact(ctx context.Context, in ContactInput) (*Contact, error)

	// AddNote appends a note to a contact. A missing contact id or body is a
	// logged no-op. A returned error has already been logged and must not fail
	// the caller's request.
	AddNote(ctx context.Context, contactID, body string) error

	// GetContactNotes lists every note attached to a contact.
	GetContactNotes(ctx context.Context, contactID string) ([]Note, error)
}

// Contact is the subset of a GHL contact the relay reads.
type Contact struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	ContactName string `json:"contactName,omitempty"`
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	Phone       string `json:"phone"`
}

// ContactInput carries the fields written on upsert. Empty fields are not
// sent, so an upsert never blanks out values already stored in GHL.
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
	Phone     string
}

// Note is a free-text record attached to a contact.
type Note struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	ContactID string `json:"contactId,omitempty"`
	DateAdded string `json:"dateAdded,omitempty"`
}

// APIError is a non-2xx answer from GHL. Body holds the upstream payload so
// it can be logged by whoever gives up on the request.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ghl %s %s: HTTP %d", e.Method, e.Endpoint, e.StatusCode)
}
