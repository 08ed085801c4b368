package gen_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/gen"
)

var _ = Describe("IsSentinel", func() {
	Context("with exact markers", func() {
		It("matches [DONE]", func() {
			marker, ok := gen.IsSentinel("[DONE]")
			Expect(ok).To(BeTrue())
			Expect(marker).To(Equal("[DONE]"))
		})

		It("matches [STREAM_COMPLETE]", func() {
			_, ok := gen.IsSentinel("[STREAM_COMPLETE]")
			Expect(ok).To(BeTrue())
		})

		It("matches the end-of-text token", func() {
			_, ok := gen.IsSentinel("<|endoftext|>")
			Expect(ok).To(BeTrue())
		})

		It("matches the model early-stop token", func() {
			_, ok := gen.IsSentinel("<|im_end|>")
			Expect(ok).To(BeTrue())
		})

		It("tolerates surrounding whitespace", func() {
			_, ok := gen.IsSentinel("  [DONE]  ")
			Expect(ok).To(BeTrue())
		})
	})

	Context("with banner substrings", func() {
		It("matches a completion banner anywhere in the frame", func() {
			_, ok := gen.IsSentinel("--- Generation complete in 2.3s ---")
			Expect(ok).To(BeTrue())
		})

		It("matches a context-close marker case-insensitively", func() {
			_, ok := gen.IsSentinel("Context Window Closed")
			Expect(ok).To(BeTrue())
		})
	})

	Context("with non-sentinel frames", func() {
		It("does not match ordinary JSON chunks", func() {
			_, ok := gen.IsSentinel(`{"type":"token","content":"hi"}`)
			Expect(ok).To(BeFalse())
		})

		It("does not match partial marker text", func() {
			_, ok := gen.IsSentinel("[DONE] trailing")
			Expect(ok).To(BeFalse())
		})

		It("does not match plain code output", func() {
			_, ok := gen.IsSentinel("print(1)")
			Expect(ok).To(BeFalse())
		})
	})

	Context("with frames that are both JSON and sentinel-bearing", func() {
		It("still matches a banner inside a JSON payload", func() {
			// Sentinel detection is pure string matching and must win over
			// JSON interpretation for the same frame.
			_, ok := gen.IsSentinel(`{"note":"generation complete"}`)
			Expect(ok).To(BeTrue())
		})
	})
})
