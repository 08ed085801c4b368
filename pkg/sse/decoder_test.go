package sse_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/sse"
)

// decodeAll feeds every fragment to a fresh decoder and returns the full
// frame sequence including the flushed tail.
func decodeAll(fragments ...string) []string {
	dec := sse.NewDecoder()
	var frames []string
	for _, fragment := range fragments {
		frames = append(frames, dec.Feed(fragment)...)
	}
	if tail, ok := dec.Flush(); ok {
		frames = append(frames, tail)
	}
	return frames
}

var _ = Describe("Decoder", func() {
	Describe("Feed", func() {
		It("emits one frame per data line", func() {
			dec := sse.NewDecoder()
			frames := dec.Feed("data: hello\ndata: world\n")
			Expect(frames).To(Equal([]string{"hello", "world"}))
		})

		It("retains an incomplete trailing fragment", func() {
			dec := sse.NewDecoder()
			Expect(dec.Feed("data: par")).To(BeEmpty())
			Expect(dec.Buffered()).To(Equal(len("data: par")))

			frames := dec.Feed("tial\n")
			Expect(frames).To(Equal([]string{"partial"}))
			Expect(dec.Buffered()).To(BeZero())
		})

		It("reassembles a JSON payload split mid-token", func() {
			dec := sse.NewDecoder()
			Expect(dec.Feed(`data: {"type":"tok`)).To(BeEmpty())

			frames := dec.Feed("en\",\"content\":\"x\"}\n\n")
			Expect(frames).To(Equal([]string{`{"type":"token","content":"x"}`}))
		})

		It("skips blank event delimiter lines", func() {
			frames := decodeAll("data: a\n\ndata: b\n\n")
			Expect(frames).To(Equal([]string{"a", "b"}))
		})

		It("skips comment lines", func() {
			frames := decodeAll(": keep-alive\ndata: a\n: ping\n")
			Expect(frames).To(Equal([]string{"a"}))
		})

		It("skips empty data fields", func() {
			frames := decodeAll("data: \ndata: a\n")
			Expect(frames).To(Equal([]string{"a"}))
		})

		It("passes through lines without a data prefix", func() {
			frames := decodeAll("[DONE]\n")
			Expect(frames).To(Equal([]string{"[DONE]"}))
		})

		It("tolerates CRLF line endings", func() {
			frames := decodeAll("data: a\r\ndata: b\r\n")
			Expect(frames).To(Equal([]string{"a", "b"}))
		})

		It("strips only a single data prefix", func() {
			frames := decodeAll("data: data: nested\n")
			Expect(frames).To(Equal([]string{"data: nested"}))
		})
	})

	Describe("Flush", func() {
		It("drains a final unterminated frame", func() {
			dec := sse.NewDecoder()
			Expect(dec.Feed("data: tail")).To(BeEmpty())

			frame, ok := dec.Flush()
			Expect(ok).To(BeTrue())
			Expect(frame).To(Equal("tail"))
		})

		It("is empty after a clean terminator", func() {
			dec := sse.NewDecoder()
			dec.Feed("data: a\n")

			_, ok := dec.Flush()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("chunking-boundary invariance", func() {
		input := "data: {\"type\":\"token\",\"content\":\"def \"}\n" +
			": comment\n" +
			"data: {\"text\":\"foo():\"}\n" +
			"\n" +
			"data: print(1)\n" +
			"data: [DONE]\n"

		reference := decodeAll(input)

		It("produces identical frames for every two-fragment split", func() {
			for i := 0; i <= len(input); i++ {
				frames := decodeAll(input[:i], input[i:])
				Expect(frames).To(Equal(reference), "split at byte %d", i)
			}
		})

		It("produces identical frames fed one byte at a time", func() {
			fragments := make([]string, 0, len(input))
			for i := range input {
				fragments = append(fragments, input[i:i+1])
			}
			Expect(decodeAll(fragments...)).To(Equal(reference))
		})

		It("produces identical frames for uneven three-way splits", func() {
			for i := 0; i < len(input); i += 7 {
				for j := i; j < len(input); j += 11 {
					frames := decodeAll(input[:i], input[i:j], input[j:])
					Expect(frames).To(Equal(reference), "split at %d/%d", i, j)
				}
			}
		})
	})
})
