package session_test

import (
	"io"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/gen"
	"github.com/papercomputeco/spool/pkg/session"
)

// recorder captures handler callbacks for assertion. Callbacks arrive from
// the reader goroutine and the claiming goroutine, so access is locked.
type recorder struct {
	mu        sync.Mutex
	chunks    []gen.Chunk
	completed []string
	errs      []*gen.ClassifiedError
}

func (r *recorder) handler() session.Handler {
	return session.Handler{
		OnChunk: func(c gen.Chunk) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.chunks = append(r.chunks, c)
		},
		OnComplete: func(content string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, content)
		},
		OnError: func(err *gen.ClassifiedError) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) chunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func (r *recorder) chunkList() []gen.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gen.Chunk(nil), r.chunks...)
}

func (r *recorder) completions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.completed...)
}

func (r *recorder) errors() []*gen.ClassifiedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*gen.ClassifiedError(nil), r.errs...)
}

var _ = Describe("Session", func() {
	var (
		rec  *recorder
		sess *session.Session
		pr   *io.PipeReader
		pw   *io.PipeWriter
	)

	// start builds a session with short liveness timeouts, begins it, and
	// streams a pipe the test writes frames into.
	start := func(connectTimeout, chunkTimeout time.Duration) {
		sess = session.New(session.Config{
			Handler:        rec.handler(),
			ConnectTimeout: connectTimeout,
			ChunkTimeout:   chunkTimeout,
		})
		Expect(sess.Begin(func() {})).To(BeTrue())
		pr, pw = io.Pipe()
		sess.Stream(pr)
	}

	write := func(frames ...string) {
		for _, f := range frames {
			_, err := io.WriteString(pw, f)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		rec = &recorder{}
	})

	AfterEach(func() {
		if pw != nil {
			pw.Close()
		}
	})

	Describe("normal completion", func() {
		It("accumulates token chunks and completes on [DONE]", func() {
			start(time.Second, time.Second)
			write(
				"data: {\"type\":\"token\",\"content\":\"def \"}\n",
				"data: {\"type\":\"token\",\"content\":\"foo():\"}\n",
				"data: [DONE]\n",
			)

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateCompleted))
			Expect(sess.Content()).To(Equal("def foo():"))
			Expect(rec.completions()).To(Equal([]string{"def foo():"}))
			Expect(rec.errors()).To(BeEmpty())
		})

		It("interprets a raw non-JSON line as one code chunk", func() {
			start(time.Second, time.Second)
			write("data: print(1)\n", "data: [DONE]\n")

			Eventually(sess.Done()).Should(BeClosed())
			chunks := rec.chunkList()
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Type).To(Equal(gen.ChunkCode))
			Expect(chunks[0].Content).To(Equal("print(1)"))
		})

		It("completes on clean end-of-stream without a sentinel", func() {
			start(time.Second, time.Second)
			write("data: {\"type\":\"token\",\"content\":\"hi\"}\n")
			pw.Close()

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateCompleted))
			Expect(sess.TerminationReason()).To(Equal(session.ReasonEndOfStream))
			Expect(sess.Content()).To(Equal("hi"))
		})

		It("excludes control chunk content from accumulation", func() {
			start(time.Second, time.Second)
			write(
				"data: {\"type\":\"start\"}\n",
				"data: {\"type\":\"token\",\"content\":\"a\"}\n",
				"data: {\"type\":\"explanation\",\"content\":\"b\"}\n",
				"data: {\"type\":\"done\"}\n",
				"data: [DONE]\n",
			)

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.Content()).To(Equal("ab"))
		})

		It("records the matched sentinel as the termination reason", func() {
			start(time.Second, time.Second)
			write("data: <|endoftext|>\n")

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.TerminationReason()).To(Equal("<|endoftext|>"))
		})

		It("reassembles a frame split across writes", func() {
			start(time.Second, time.Second)
			write("data: {\"type\":\"tok")
			write("en\",\"content\":\"x\"}\n\n", "data: [DONE]\n")

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.Content()).To(Equal("x"))
			Expect(rec.chunkCount()).To(Equal(1))
		})
	})

	Describe("sentinel priority", func() {
		It("treats a JSON frame containing a banner as termination", func() {
			start(time.Second, time.Second)
			write(
				"data: {\"type\":\"token\",\"content\":\"a\"}\n",
				"data: {\"type\":\"token\",\"content\":\"Generation complete\"}\n",
				"data: {\"type\":\"token\",\"content\":\"never\"}\n",
			)

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateCompleted))
			// The sentinel frame is not interpreted as a chunk.
			Expect(sess.Content()).To(Equal("a"))
			Expect(rec.chunkCount()).To(Equal(1))
		})
	})

	Describe("sequence monotonicity", func() {
		It("delivers non-decreasing sequences across mixed framing", func() {
			start(time.Second, time.Second)
			write(
				"data: {\"type\":\"token\",\"content\":\"a\",\"sequence\":3}\n",
				"data: plain text\n",
				"data: {\"type\":\"token\",\"content\":\"b\"}\n",
				"data: [DONE]\n",
			)

			Eventually(sess.Done()).Should(BeClosed())
			chunks := rec.chunkList()
			Expect(chunks).To(HaveLen(3))
			for i := 1; i < len(chunks); i++ {
				Expect(chunks[i].Sequence).To(BeNumerically(">=", chunks[i-1].Sequence))
			}
		})
	})

	Describe("liveness timeouts", func() {
		It("fails with connect-timeout when no byte ever arrives", func() {
			start(40*time.Millisecond, time.Second)

			Eventually(sess.Done(), time.Second).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateFailed))
			Expect(sess.TerminationReason()).To(Equal(string(gen.KindConnectTimeout)))

			errs := rec.errors()
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].Kind).To(Equal(gen.KindConnectTimeout))
			Expect(errs[0].Retryable()).To(BeTrue())
		})

		It("fails with chunk-timeout and keeps partial content", func() {
			start(time.Second, 60*time.Millisecond)
			write("data: {\"type\":\"token\",\"content\":\"partial\"}\n")

			Eventually(sess.Done(), time.Second).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateFailed))
			Expect(sess.TerminationReason()).To(Equal(string(gen.KindChunkTimeout)))
			Expect(sess.Content()).To(Equal("partial"))
			Expect(rec.completions()).To(BeEmpty())
		})

		It("stays alive while frames keep arriving within the timeout", func() {
			start(time.Second, 120*time.Millisecond)
			for i := 0; i < 4; i++ {
				write("data: {\"type\":\"token\",\"content\":\".\"}\n")
				time.Sleep(60 * time.Millisecond)
			}
			write("data: [DONE]\n")

			Eventually(sess.Done(), time.Second).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateCompleted))
			Expect(sess.Content()).To(Equal("...."))
		})

		It("rearms the inter-chunk timer on dropped frames", func() {
			start(time.Second, 120*time.Millisecond)
			for i := 0; i < 4; i++ {
				// Unrecognized type: interpreted and dropped, still progress.
				write("data: {\"type\":\"telemetry\",\"content\":\"x\"}\n")
				time.Sleep(60 * time.Millisecond)
			}
			write("data: [DONE]\n")

			Eventually(sess.Done(), time.Second).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateCompleted))
		})
	})

	Describe("cancellation", func() {
		It("claims Cancelled with exactly the delivered content", func() {
			start(time.Second, time.Second)
			write(
				"data: {\"type\":\"token\",\"content\":\"one\"}\n",
				"data: {\"type\":\"token\",\"content\":\"two\"}\n",
			)
			Eventually(rec.chunkCount).Should(Equal(2))

			sess.Cancel()

			Eventually(sess.Done()).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateCancelled))
			Expect(sess.Content()).To(Equal("onetwo"))
			Expect(rec.completions()).To(BeEmpty())

			errs := rec.errors()
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].Kind).To(Equal(gen.KindCancelled))
			Expect(errs[0].Retryable()).To(BeFalse())
		})

		It("unblocks a reader waiting on the network", func() {
			start(time.Second, time.Second)
			write("data: {\"type\":\"token\",\"content\":\"a\"}\n")
			Eventually(rec.chunkCount).Should(Equal(1))

			done := make(chan struct{})
			go func() {
				defer close(done)
				sess.Cancel()
			}()

			Eventually(done).Should(BeClosed())
			Eventually(sess.Done()).Should(BeClosed())
		})

		It("is idempotent", func() {
			start(time.Second, time.Second)
			sess.Cancel()
			sess.Cancel()
			sess.Cancel()

			Eventually(sess.Done()).Should(BeClosed())
			Expect(rec.errors()).To(HaveLen(1))
		})

		It("prevents Begin after a pre-start cancel", func() {
			s := session.New(session.Config{Handler: rec.handler()})
			s.Cancel()
			Expect(s.Begin(func() {})).To(BeFalse())
		})
	})

	Describe("terminal idempotence", func() {
		It("ignores frames injected after completion", func() {
			start(time.Second, time.Second)
			write("data: {\"type\":\"token\",\"content\":\"a\"}\n", "data: [DONE]\n")
			Eventually(sess.Done()).Should(BeClosed())

			content := sess.Content()
			state := sess.State()

			// The pipe is closed by the terminal claim; late writes fail and
			// nothing downstream changes.
			io.WriteString(pw, "data: {\"type\":\"token\",\"content\":\"late\"}\n")
			sess.Cancel()

			Consistently(sess.Content).Should(Equal(content))
			Expect(sess.State()).To(Equal(state))
			Expect(rec.completions()).To(HaveLen(1))
			Expect(rec.errors()).To(BeEmpty())
		})

		It("fires exactly one terminal callback when triggers race", func() {
			start(time.Second, 50*time.Millisecond)
			write("data: {\"type\":\"token\",\"content\":\"a\"}\n")

			// Race the inter-chunk timer against an explicit cancel.
			time.Sleep(45 * time.Millisecond)
			sess.Cancel()

			Eventually(sess.Done(), time.Second).Should(BeClosed())
			Consistently(func() int {
				return len(rec.errors()) + len(rec.completions())
			}).Should(Equal(1))
		})
	})

	Describe("pull-based consumption", func() {
		It("delivers chunks over the channel when no OnChunk is registered", func() {
			sess = session.New(session.Config{
				Handler: session.Handler{},
			})
			Expect(sess.Begin(func() {})).To(BeTrue())
			pr, pw = io.Pipe()
			sess.Stream(pr)

			go func() {
				defer pw.Close()
				io.WriteString(pw, "data: {\"type\":\"token\",\"content\":\"a\"}\n")
				io.WriteString(pw, "data: {\"type\":\"token\",\"content\":\"b\"}\n")
				io.WriteString(pw, "data: [DONE]\n")
			}()

			var got []string
			for chunk := range sess.Chunks() {
				got = append(got, chunk.Content)
			}
			Expect(got).To(Equal([]string{"a", "b"}))
			Expect(sess.State()).To(Equal(session.StateCompleted))
		})

		It("closes the channel when a session fails before streaming", func() {
			sess = session.New(session.Config{
				ConnectTimeout: 30 * time.Millisecond,
			})
			Expect(sess.Begin(func() {})).To(BeTrue())

			Eventually(sess.Chunks(), time.Second).Should(BeClosed())
			Expect(sess.State()).To(Equal(session.StateFailed))
		})
	})
})
