package snapshot_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ghlrelay/internal/snapshot"
)

var _ = Describe("Store", func() {
	var (
		dir   string
		store *snapshot.Store
		clock time.Time
	)

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "logs")
		clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		store = snapshot.New(dir, 3, snapshot.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}))
	})

	It("writes the last payload pretty-printed", func() {
		Expect(store.Record([]byte(`{"type":"post_call_transcription"}`))).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, snapshot.LastFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("\n  \"type\": \"post_call_transcription\""))
	})

	It("keeps only the newest three entries, oldest first", func() {
		for i := 1; i <= 5; i++ {
			Expect(store.Record([]byte(fmt.Sprintf(`{"n":%d}`, i)))).To(Succeed())
		}

		history, err := store.History()
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(3))

		var ns []int
		for _, e := range history {
			var v struct{ N int }
			Expect(json.Unmarshal(e.Body, &v)).To(Succeed())
			ns = append(ns, v.N)
		}
		Expect(ns).To(Equal([]int{3, 4, 5}))
		Expect(history[0].ReceivedAt.Before(history[2].ReceivedAt)).To(BeTrue())
	})

	It("stores non-JSON bodies as a string", func() {
		Expect(store.Record([]byte("not json"))).To(Succeed())

		history, err := store.History()
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
		Expect(string(history[0].Body)).To(Equal(`"not json"`))
	})

	It("starts over when the history file is corrupt", func() {
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, snapshot.HistoryFile), []byte("{"), 0o644)).To(Succeed())

		Expect(store.Record([]byte(`{}`))).To(Succeed())
		history, err := store.History()
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
	})

	It("defaults the limit", func() {
		s := snapshot.New(dir, 0)
		for i := 0; i < snapshot.DefaultLimit+2; i++ {
			Expect(s.Record([]byte(`{}`))).To(Succeed())
		}
		history, err := s.History()
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(snapshot.DefaultLimit))
	})
})
