package crm_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ghlrelay/internal/crm"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Auth   string
	Body   map[string]any
}

// fakeGHL serves canned responses per "METHOD path" key and records calls.
type fakeGHL struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeGHL) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  map[string]string{},
		Auth:   r.Header.Get("Authorization"),
	}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	resp, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (f *fakeGHL) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

var _ = Describe("GHL client", func() {
	var (
		fake   *fakeGHL
		server *httptest.Server
		client *crm.GHL
		logBuf *bytes.Buffer
		ctx    context.Context
	)

	BeforeEach(func() {
		fake = &fakeGHL{responses: map[string]fakeResponse{}}
		server = httptest.NewServer(fake)
		logBuf = &bytes.Buffer{}
		log := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		client = crm.NewGHL(crm.Config{
			APIKey:     "test-key",
			LocationID: "loc-1",
			BaseURL:    server.URL,
		}, log, nil)
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("FindContactByPhone", func() {
		It("searches by location and phone with a bearer token", func() {
			fake.responses["GET /contacts/"] = fakeResponse{200, `{"contacts":[{"id":"abc123","phone":"+15551234567"}]}`}

			c, err := client.FindContactByPhone(ctx, "+15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
			Expect(c.ID).To(Equal("abc123"))

			calls := fake.calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Auth).To(Equal("Bearer test-key"))
			Expect(calls[0].Query).To(HaveKeyWithValue("locationId", "loc-1"))
			Expect(calls[0].Query).To(HaveKeyWithValue("query", "+15551234567"))
		})

		It("picks the candidate with matching digits", func() {
			fake.responses["GET /contacts/"] = fakeResponse{200, `{"contacts":[{"id":"other","phone":"+15550000000"},{"id":"match","phone":"+1 555 123 4567"}]}`}

			c, err := client.FindContactByPhone(ctx, "+15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal("match"))
		})

		It("returns nil when nothing matches", func() {
			fake.responses["GET /contacts/"] = fakeResponse{200, `{"contacts":[]}`}

			c, err := client.FindContactByPhone(ctx, "+15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("swallows upstream errors and logs the status", func() {
			fake.responses["GET /contacts/"] = fakeResponse{401, `{"msg":"invalid api key"}`}

			c, err := client.FindContactByPhone(ctx, "+15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
			Expect(logBuf.String()).To(ContainSubstring(`"upstream_status":401`))
		})

		It("treats an unknown response shape as not found", func() {
			fake.responses["GET /contacts/"] = fakeResponse{200, `{"meta":{}}`}

			c, err := client.FindContactByPhone(ctx, "+15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("does not call GHL for an empty phone", func() {
			c, err := client.FindContactByPhone(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
			Expect(fake.calls()).To(BeEmpty())
		})
	})

	Describe("CreateOrUpdateContact", func() {
		DescribeTable("reads the id from any envelope",
			func(body string) {
				fake.responses["POST /contacts/"] = fakeResponse{200, body}

				c, err := client.CreateOrUpdateContact(ctx, crm.ContactInput{Phone: "+15551234567"})
				Expect(err).NotTo(HaveOccurred())
				Expect(c.ID).To(Equal("abc123"))
			},
			Entry("contact", `{"contact":{"id":"abc123"}}`),
			Entry("data", `{"data":{"id":"abc123"}}`),
			Entry("top level", `{"id":"abc123"}`),
		)

		It("sends only non-empty fields plus the location", func() {
			fake.responses["POST /contacts/"] = fakeResponse{201, `{"contact":{"id":"abc123"}}`}

			_, err := client.CreateOrUpdateContact(ctx, crm.ContactInput{
				FirstName: "Ada",
				Company:   "Analytical Engines",
				Phone:     "+15551234567",
			})
			Expect(err).NotTo(HaveOccurred())

			body := fake.calls()[0].Body
			Expect(body).To(HaveKeyWithValue("locationId", "loc-1"))
			Expect(body).To(HaveKeyWithValue("firstName", "Ada"))
			Expect(body).To(HaveKeyWithValue("companyName", "Analytical Engines"))
			Expect(body).To(HaveKeyWithValue("phone", "+15551234567"))
			Expect(body).NotTo(HaveKey("lastName"))
			Expect(body).NotTo(HaveKey("email"))
		})

		It("returns an APIError on non-2xx", func() {
			fake.responses["POST /contacts/"] = fakeResponse{422, `{"message":"phone invalid"}`}

			_, err := client.CreateOrUpdateContact(ctx, crm.ContactInput{Phone: "x"})
			var apiErr *crm.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(422))
			Expect(apiErr.Body).To(ContainSubstring("phone invalid"))
		})

		It("returns ErrUnrecognizedResponseShape when no id is present", func() {
			fake.responses["POST /contacts/"] = fakeResponse{200, `{"succeeded":true}`}

			_, err := client.CreateOrUpdateContact(ctx, crm.ContactInput{Phone: "+15551234567"})
			Expect(err).To(MatchError(crm.ErrUnrecognizedResponseShape))
		})
	})

	Describe("AddNote", func() {
		It("posts the body to the contact's notes", func() {
			fake.responses["POST /contacts/abc123/notes/"] = fakeResponse{200, `{"id":"n1"}`}

			Expect(client.AddNote(ctx, "abc123", "hello")).To(Succeed())

			calls := fake.calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Body).To(HaveKeyWithValue("body", "hello"))
		})

		It("is a no-op without a contact id or body", func() {
			Expect(client.AddNote(ctx, "", "hello")).To(Succeed())
			Expect(client.AddNote(ctx, "abc123", "")).To(Succeed())
			Expect(fake.calls()).To(BeEmpty())
		})

		It("logs and reports failures", func() {
			fake.responses["POST /contacts/abc123/notes/"] = fakeResponse{500, `oops`}

			Expect(client.AddNote(ctx, "abc123", "hello")).NotTo(Succeed())
			Expect(logBuf.String()).To(ContainSubstring("failed to add note"))
		})
	})

	Describe("GetContactNotes", func() {
		It("lists notes from a notes envelope", func() {
			fake.responses["GET /contacts/abc123/notes/"] = fakeResponse{200, `{"notes":[{"id":"n1","body":"a","dateAdded":"2024-01-01T00:00:00Z"},{"id":"n2","body":"b"}]}`}

			notes, err := client.GetContactNotes(ctx, "abc123")
			Expect(err).NotTo(HaveOccurred())
			Expect(notes).To(HaveLen(2))
			Expect(notes[0].DateAdded).To(Equal("2024-01-01T00:00:00Z"))
		})

		It("returns upstream errors", func() {
			fake.responses["GET /contacts/abc123/notes/"] = fakeResponse{503, `down`}

			_, err := client.GetContactNotes(ctx, "abc123")
			Expect(err).To(HaveOccurred())
		})

		It("requires a contact id", func() {
			_, err := client.GetContactNotes(ctx, "")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Simulated client", func() {
	var sim *crm.Simulated

	BeforeEach(func() {
		sim = crm.NewSimulated(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	It("returns the mock contact for a phone", func() {
		c, err := sim.FindContactByPhone(context.Background(), "+15551234567")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.ID).To(Equal(crm.SimulatedContactID))
	})

	It("returns nil for an empty phone", func() {
		c, err := sim.FindContactByPhone(context.Background(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeNil())
	})

	It("upserts into the mock id", func() {
		c, err := sim.CreateOrUpdateContact(context.Background(), crm.ContactInput{FirstName: "Ada"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.ID).To(Equal(crm.SimulatedUpsertID))
		Expect(c.FirstName).To(Equal("Ada"))
	})

	It("has no notes", func() {
		Expect(sim.AddNote(context.Background(), "x", "y")).To(Succeed())
		notes, err := sim.GetContactNotes(context.Background(), "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(notes).To(BeEmpty())
	})
})
