package handler

import (
	"fmt"
	"strings"
	"time"

	"ghlrelay/internal/crm"
	"ghlrelay/internal/extract"
)

// Versioned first lines of the notes written for every call. Lookup finds
// the transcript by TranscriptMarker, so changing it orphans old notes.
const (
	TranscriptMarker = "[elevenlabs:transcript:v1]"
	CallMarker       = "[elevenlabs:call:v1]"
	SummaryMarker    = "[elevenlabs:summary:v1]"

	// NotesSeparator joins note bodies in the lookup response.
	NotesSeparator = "\n\n---\n\n"
)

const unknown = "Unknown"

// flattenTranscript renders one "ROLE: message" line per turn. Line breaks
// inside a message are folded so the line count always equals the turn count.
func flattenTranscript(turns []TranscriptTurn) []string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		msg := ""
		if t.Message != nil {
			msg = strings.Join(strings.Fields(*t.Message), " ")
		}
		lines = append(lines, strings.ToUpper(t.Role)+": "+msg)
	}
	return lines
}

func formatTime(t time.Time, ok bool) string {
	if !ok {
		return unknown
	}
	return t.Format(time.RFC3339)
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// buildCallNote records who called and when.
func buildCallNote(payload *ElevenLabsWebhookPayload, phone string) string {
	start, startOK := payload.StartTime()
	end, endOK := payload.EndTime()

	duration := unknown
	if d, ok := payload.Duration(); ok {
		duration = d.String()
	}

	callSID := payload.dynamicVar("system__call_sid")
	if callSID == "" && payload.Data.Metadata.PhoneCall != nil {
		callSID = payload.Data.Metadata.PhoneCall.CallSID
	}

	var b strings.Builder
	b.WriteString(CallMarker + "\n")
	fmt.Fprintf(&b, "Caller: %s\n", phone)
	fmt.Fprintf(&b, "Call SID: %s\n", orUnknown(callSID))
	fmt.Fprintf(&b, "Conversation ID: %s\n", orUnknown(payload.Data.ConversationID))
	fmt.Fprintf(&b, "Start: %s\n", formatTime(start, startOK))
	fmt.Fprintf(&b, "End: %s\n", formatTime(end, endOK))
	fmt.Fprintf(&b, "Duration: %s", duration)
	return b.String()
}

func buildTranscriptNote(transcript string) string {
	return TranscriptMarker + "\n" + transcript
}

// buildSummaryNote renders the extracted profile. A nil profile yields the
// same layout with empty values.
func buildSummaryNote(p *extract.Profile) string {
	if p == nil {
		p = &extract.Profile{}
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)

	var b strings.Builder
	b.WriteString(SummaryMarker + "\n")
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n", p.Email)
	fmt.Fprintf(&b, "Business: %s\n", p.BusinessName)
	fmt.Fprintf(&b, "Summary: %s", p.Summary)
	return b.String()
}

// transcriptFromNotes returns the newest transcript note with its marker
// removed, or "" when there is none. A note with a parsable dateAdded beats
// one without; ties keep list order.
func transcriptFromNotes(notes []crm.Note) string {
	best := -1
	var bestAt time.Time
	var bestDated bool

	for i, n := range notes {
		if !strings.HasPrefix(strings.TrimLeft(n.Body, " \t\r\n"), TranscriptMarker) {
			continue
		}
		at, err := time.Parse(time.RFC3339, n.DateAdded)
		dated := err == nil
		if best == -1 || (dated && bestDated && at.After(bestAt)) || (dated && !bestDated) {
			best, bestAt, bestDated = i, at, dated
		}
	}
	if best == -1 {
		return ""
	}

	body := strings.TrimLeft(notes[best].Body, " \t\r\n")
	body = strings.TrimPrefix(body, TranscriptMarker)
	body = strings.TrimPrefix(body, "\r")
	return strings.TrimPrefix(body, "\n")
}

// joinNotes concatenates every note body in list order.
func joinNotes(notes []crm.Note) string {
	bodies := make([]string, 0, len(notes))
	for _, n := range notes {
		bodies = append(bodies, n.Body)
	}
	return strings.Join(bodies, NotesSeparator)
}
