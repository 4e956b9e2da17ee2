package crm

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"ghlrelay/internal/phone"
)

// GHL wraps the same records differently depending on endpoint and API
// version. The paths below are tried in order; "" means the document root.
var (
	contactPaths     = []string{"contact", "data", "contacts", ""}
	contactListPaths = []string{"contacts", "contacts.contacts", "contacts.items", "data", ""}
	noteListPaths    = []string{"notes", "data", ""}
)

func lookup(body []byte, path string) gjson.Result {
	if path == "" {
		return gjson.ParseBytes(body)
	}
	return gjson.GetBytes(body, path)
}

// parseContact extracts a single contact: the first object along
// contactPaths that carries a non-empty id.
func parseContact(body []byte) (*Contact, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrUnrecognizedResponseShape)
	}
	for _, path := range contactPaths {
		r := lookup(body, path)
		if !r.IsObject() || r.Get("id").String() == "" {
			continue
		}
		var c Contact
		if err := json.Unmarshal([]byte(r.Raw), &c); err != nil {
			return nil, fmt.Errorf("decoding contact at %q: %w", path, err)
		}
		return &c, nil
	}
	return nil, ErrUnrecognizedResponseShape
}

// parseContactList extracts the candidate list of a contact search.
func parseContactList(body []byte) ([]Contact, error) {
	return parseList[Contact](body, contactListPaths)
}

// parseNoteList extracts the notes of a contact.
func parseNoteList(body []byte) ([]Note, error) {
	return parseList[Note](body, noteListPaths)
}

func parseList[T any](body []byte, paths []string) ([]T, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrUnrecognizedResponseShape)
	}
	for _, path := range paths {
		r := lookup(body, path)
		if !r.IsArray() {
			continue
		}
		var out []T
		if err := json.Unmarshal([]byte(r.Raw), &out); err != nil {
			return nil, fmt.Errorf("decoding list at %q: %w", path, err)
		}
		return out, nil
	}
	return nil, ErrUnrecognizedResponseShape
}

// matchContact picks the candidate whose phone has exactly the digits of
// query, falling back to the first candidate.
func matchContact(candidates []Contact, query string) *Contact {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		if phone.Equal(candidates[i].Phone, query) {
			return &candidates[i]
		}
	}
	return &candidates[0]
}
