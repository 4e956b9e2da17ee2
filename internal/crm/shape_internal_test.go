package crm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("response shapes", func() {
	DescribeTable("parseContact finds the id in every envelope",
		func(body string) {
			c, err := parseContact([]byte(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal("abc123"))
		},
		Entry("contact envelope", `{"contact":{"id":"abc123","firstName":"Ada"}}`),
		Entry("data envelope", `{"data":{"id":"abc123"}}`),
		Entry("contacts object", `{"contacts":{"id":"abc123"}}`),
		Entry("bare object", `{"id":"abc123","phone":"+15551234567"}`),
	)

	It("skips envelopes without an id", func() {
		c, err := parseContact([]byte(`{"contact":{"id":""},"data":{"id":"abc123"}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.ID).To(Equal("abc123"))
	})

	DescribeTable("parseContact rejects unknown shapes",
		func(body string) {
			_, err := parseContact([]byte(body))
			Expect(err).To(MatchError(ErrUnrecognizedResponseShape))
		},
		Entry("no id anywhere", `{"succeeded":true}`),
		Entry("array", `[{"id":"abc123"}]`),
		Entry("not JSON", `<html>bad gateway</html>`),
	)

	DescribeTable("parseContactList",
		func(body string, want int) {
			list, err := parseContactList([]byte(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(want))
		},
		Entry("contacts array", `{"contacts":[{"id":"a"},{"id":"b"}]}`, 2),
		Entry("nested contacts", `{"contacts":{"contacts":[{"id":"a"}]}}`, 1),
		Entry("nested items", `{"contacts":{"items":[{"id":"a"}]}}`, 1),
		Entry("data array", `{"data":[]}`, 0),
		Entry("top-level array", `[{"id":"a"},{"id":"b"},{"id":"c"}]`, 3),
	)

	It("reports a list shape it does not know", func() {
		_, err := parseContactList([]byte(`{"meta":{"total":0}}`))
		Expect(err).To(MatchError(ErrUnrecognizedResponseShape))
	})

	DescribeTable("parseNoteList",
		func(body string, want int) {
			notes, err := parseNoteList([]byte(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(notes).To(HaveLen(want))
		},
		Entry("notes array", `{"notes":[{"id":"n1","body":"x"}]}`, 1),
		Entry("data array", `{"data":[{"id":"n1"},{"id":"n2"}]}`, 2),
		Entry("top-level array", `[]`, 0),
	)

	Describe("matchContact", func() {
		It("prefers the candidate with the same digits", func() {
			got := matchContact([]Contact{
				{ID: "first", Phone: "+15550000000"},
				{ID: "exact", Phone: "+1 (555) 123-4567"},
			}, "+15551234567")
			Expect(got.ID).To(Equal("exact"))
		})

		It("falls back to the first candidate", func() {
			got := matchContact([]Contact{{ID: "a", Phone: "1"}, {ID: "b"}}, "+15551234567")
			Expect(got.ID).To(Equal("a"))
		})

		It("returns nil for no candidates", func() {
			Expect(matchContact(nil, "+15551234567")).To(BeNil())
		})
	})
})
