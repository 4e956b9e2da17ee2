package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ghlrelay/internal/logger"
)

var _ = Describe("TraceHandler", func() {
	It("adds context log fields to every record", func() {
		buf := &bytes.Buffer{}
		l := slog.New(logger.NewTraceHandler(slog.NewJSONHandler(buf, nil)))

		ctx := logger.WithLogFields(context.Background(), logger.LogFields{RequestID: "req-1", CallID: "CA123"})
		ctx = logger.WithLogFields(ctx, logger.LogFields{ContactID: "abc123", Component: "relay.test"})
		l.InfoContext(ctx, "hello")

		out := buf.String()
		Expect(out).To(ContainSubstring(`"request_id":"req-1"`))
		Expect(out).To(ContainSubstring(`"call_id":"CA123"`))
		Expect(out).To(ContainSubstring(`"contact_id":"abc123"`))
		Expect(out).To(ContainSubstring(`"component":"relay.test"`))
	})

	It("omits empty fields", func() {
		buf := &bytes.Buffer{}
		l := slog.New(logger.NewTraceHandler(slog.NewJSONHandler(buf, nil)))
		l.InfoContext(context.Background(), "bare")
		Expect(buf.String()).NotTo(ContainSubstring("call_id"))
	})
})

var _ = Describe("WithLogFields", func() {
	It("keeps existing values when newer ones are empty", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{CallID: "first"})
		ctx = logger.WithLogFields(ctx, logger.LogFields{ContactID: "c1"})
		fields := logger.GetLogFields(ctx)
		Expect(fields.CallID).To(Equal("first"))
		Expect(fields.ContactID).To(Equal("c1"))
	})
})

var _ = Describe("Setup", func() {
	var previous *slog.Logger

	BeforeEach(func() {
		previous = slog.Default()
	})

	AfterEach(func() {
		slog.SetDefault(previous)
	})

	It("creates the log directory and splits error records into their own file", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "logs")
		l, closer, err := logger.Setup(logger.Options{Level: "info", Dir: dir})
		Expect(err).NotTo(HaveOccurred())

		l.Info("contact upserted")
		l.Error("note failed")
		Expect(closer.Close()).To(Succeed())

		all, err := os.ReadFile(filepath.Join(dir, "relay.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(all)).To(ContainSubstring("contact upserted"))
		Expect(string(all)).To(ContainSubstring("note failed"))

		errs, err := os.ReadFile(filepath.Join(dir, "relay-error.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(errs)).To(ContainSubstring("note failed"))
		Expect(string(errs)).NotTo(ContainSubstring("contact upserted"))
	})
})

var _ = DescribeTable("ParseLevel",
	func(in string, expected slog.Level) {
		Expect(logger.ParseLevel(in)).To(Equal(expected))
	},
	Entry("debug", "debug", slog.LevelDebug),
	Entry("upper-case warn", "WARN", slog.LevelWarn),
	Entry("error", "error", slog.LevelError),
	Entry("unknown defaults to info", "verbose", slog.LevelInfo),
	Entry("empty defaults to info", "", slog.LevelInfo),
)

var _ = Describe("Truncate", func() {
	It("leaves short strings alone and cuts long ones", func() {
		Expect(logger.Truncate("short", 10)).To(Equal("short"))
		Expect(logger.Truncate("0123456789abc", 10)).To(Equal("0123456789..."))
	})
})
