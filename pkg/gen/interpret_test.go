package gen_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/gen"
)

var _ = Describe("Interpreter", func() {
	var (
		in  *gen.Interpreter
		now time.Time
	)

	BeforeEach(func() {
		in = gen.NewInterpreter(zap.NewNop())
		now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	})

	Context("with well-formed JSON chunks", func() {
		It("interprets a token chunk", func() {
			chunk, ok := in.Interpret(`{"type":"token","content":"def "}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Type).To(Equal(gen.ChunkToken))
			Expect(chunk.Content).To(Equal("def "))
			Expect(chunk.Sequence).To(Equal(0))
			Expect(chunk.Timestamp).To(Equal(now))
		})

		It("accepts text as an alias for content", func() {
			chunk, ok := in.Interpret(`{"type":"explanation","text":"adds two numbers"}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Content).To(Equal("adds two numbers"))
		})

		It("prefers content when both content and text are present", func() {
			chunk, ok := in.Interpret(`{"type":"token","content":"a","text":"b"}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Content).To(Equal("a"))
		})

		It("defaults a missing type to code", func() {
			chunk, ok := in.Interpret(`{"content":"x := 1"}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Type).To(Equal(gen.ChunkCode))
		})

		It("uses a source-provided sequence", func() {
			chunk, ok := in.Interpret(`{"type":"token","content":"a","sequence":7}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Sequence).To(Equal(7))
		})

		It("keeps local sequences monotonic after a source-provided one", func() {
			chunk, _ := in.Interpret(`{"type":"token","content":"a","sequence":7}`, now)
			Expect(chunk.Sequence).To(Equal(7))

			chunk, _ = in.Interpret(`{"type":"token","content":"b"}`, now)
			Expect(chunk.Sequence).To(Equal(8))
		})

		It("clamps a source-provided sequence that would decrease", func() {
			chunk, _ := in.Interpret(`{"type":"token","content":"a","sequence":5}`, now)
			Expect(chunk.Sequence).To(Equal(5))

			chunk, _ = in.Interpret(`{"type":"token","content":"b","sequence":2}`, now)
			Expect(chunk.Sequence).To(Equal(6))

			chunk, _ = in.Interpret(`{"type":"token","content":"c"}`, now)
			Expect(chunk.Sequence).To(Equal(7))
		})

		It("accepts control chunks without content", func() {
			chunk, ok := in.Interpret(`{"type":"start"}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Type).To(Equal(gen.ChunkStart))
			Expect(chunk.Content).To(BeEmpty())
		})

		It("uses a source-provided timestamp", func() {
			chunk, ok := in.Interpret(`{"type":"token","content":"a","timestamp":"2026-07-01T00:00:00Z"}`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Timestamp.Year()).To(Equal(2026))
			Expect(chunk.Timestamp.Month()).To(Equal(time.July))
		})
	})

	Context("with non-JSON frames", func() {
		It("falls back to a synthetic code chunk", func() {
			chunk, ok := in.Interpret("print(1)", now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Type).To(Equal(gen.ChunkCode))
			Expect(chunk.Content).To(Equal("print(1)"))
			Expect(chunk.Sequence).To(Equal(0))
		})

		It("assigns increasing local sequences across fallbacks", func() {
			first, _ := in.Interpret("a", now)
			second, _ := in.Interpret("b", now)
			Expect(second.Sequence).To(Equal(first.Sequence + 1))
		})

		It("treats bare JSON scalars as plain payloads", func() {
			chunk, ok := in.Interpret(`"just a string"`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Type).To(Equal(gen.ChunkCode))
			Expect(chunk.Content).To(Equal(`"just a string"`))
		})

		It("treats malformed JSON objects as plain payloads", func() {
			chunk, ok := in.Interpret(`{"type":"token","content":`, now)
			Expect(ok).To(BeTrue())
			Expect(chunk.Type).To(Equal(gen.ChunkCode))
		})
	})

	Context("with undeterminable chunks", func() {
		It("drops objects with an unrecognized type", func() {
			_, ok := in.Interpret(`{"type":"telemetry","content":"x"}`, now)
			Expect(ok).To(BeFalse())
		})

		It("drops objects with neither type nor content", func() {
			_, ok := in.Interpret(`{"model":"small-coder"}`, now)
			Expect(ok).To(BeFalse())
		})

		It("does not consume a sequence number for dropped chunks", func() {
			_, ok := in.Interpret(`{"type":"telemetry","content":"x"}`, now)
			Expect(ok).To(BeFalse())

			chunk, _ := in.Interpret(`{"type":"token","content":"a"}`, now)
			Expect(chunk.Sequence).To(Equal(0))
		})
	})
})
