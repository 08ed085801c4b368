// Package session owns the lifecycle of one streaming generation request:
// the state machine, the content accumulator, the two liveness timers, and
// the single atomic claim that moves a session into exactly one terminal
// state despite racing triggers (sentinel, timeout, cancellation, transport
// error).
package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/gen"
	"github.com/papercomputeco/spool/pkg/sse"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultChunkTimeout   = 30 * time.Second
	defaultChunkBuffer    = 64

	// ReasonEndOfStream records a clean transport end without a sentinel.
	ReasonEndOfStream = "end-of-stream"
)

// Handler receives session outcomes. All fields are optional.
//
// OnChunk fires from the session's reader goroutine, strictly in arrival
// order. Registering OnChunk selects push delivery: the Chunks channel then
// stays empty. Exactly one of OnComplete or OnError fires, at most once,
// from whichever goroutine wins the terminal claim.
type Handler struct {
	OnChunk    func(gen.Chunk)
	OnComplete func(content string)
	OnError    func(err *gen.ClassifiedError)
}

// Config configures a Session.
type Config struct {
	// Logger is the zap logger for per-frame warnings and lifecycle debug.
	Logger *zap.Logger

	// Handler receives chunk, completion, and error callbacks.
	Handler Handler

	// ConnectTimeout bounds the wait for the first response byte.
	ConnectTimeout time.Duration

	// ChunkTimeout bounds the silence between successive decoded frames.
	ChunkTimeout time.Duration

	// ChunkBuffer is the capacity of the Chunks channel (defaults to 64).
	ChunkBuffer int
}

// Session is one streaming request's lifecycle. It is created by the client,
// fed a response body via Stream, and driven to exactly one terminal state.
//
// Exactly one reader goroutine processes frames in arrival order. The two
// liveness timers and Cancel may race it; all terminal transitions funnel
// through the claim operation, so the first claimant wins and every later
// trigger is a no-op.
type Session struct {
	id      string
	logger  *zap.Logger
	handler Handler

	connectTimeout time.Duration
	chunkTimeout   time.Duration

	state atomic.Int32

	// mu guards the accumulator, timers, transport handle, and termination
	// metadata. Claim and append both take it, which is what makes "no chunk
	// is appended after a terminal claim" a hard invariant rather than a race.
	mu            sync.Mutex
	content       strings.Builder
	chunkCount    int
	lastActivity  time.Time
	reason        string
	err           *gen.ClassifiedError
	body          io.Closer
	cancelRequest context.CancelFunc
	connectTimer  *time.Timer
	chunkTimer    *time.Timer
	streamStarted bool

	chunks chan gen.Chunk
	done   chan struct{}
}

// New creates an idle Session.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = defaultChunkTimeout
	}
	if cfg.ChunkBuffer <= 0 {
		cfg.ChunkBuffer = defaultChunkBuffer
	}

	return &Session{
		id:             uuid.NewString(),
		logger:         cfg.Logger,
		handler:        cfg.Handler,
		connectTimeout: cfg.ConnectTimeout,
		chunkTimeout:   cfg.ChunkTimeout,
		chunks:         make(chan gen.Chunk, cfg.ChunkBuffer),
		done:           make(chan struct{}),
	}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Content returns the content accumulated so far. Always available,
// including after cancellation or failure.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content.String()
}

// ChunkCount returns the number of chunks delivered so far.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCount
}

// LastActivity returns the time of the most recently decoded frame.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// TerminationReason returns the reason recorded by the terminal claim, empty
// while the session is live.
func (s *Session) TerminationReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err returns the classified error for Failed and Cancelled sessions, nil
// otherwise.
func (s *Session) Err() *gen.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Chunks returns the pull-based chunk channel, the alternative to an OnChunk
// handler. It is closed when the session terminates; consumers should also
// watch Done for sessions that fail before streaming begins.
func (s *Session) Chunks() <-chan gen.Chunk { return s.chunks }

// Done is closed when the session reaches a terminal state by any means.
func (s *Session) Done() <-chan struct{} { return s.done }

// Begin transitions Idle → Connecting, records the transport cancel function,
// and arms the connect timer. Returns false if the session was already
// claimed terminal (e.g. cancelled before the request was issued).
func (s *Session) Begin(cancelRequest context.CancelFunc) bool {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return false
	}

	s.mu.Lock()
	s.cancelRequest = cancelRequest
	s.connectTimer = time.AfterFunc(s.connectTimeout, func() {
		s.claim(StateFailed, string(gen.KindConnectTimeout),
			gen.NewError(gen.KindConnectTimeout, "no response within connect timeout"))
	})
	s.mu.Unlock()

	s.logger.Debug("session connecting",
		zap.String("session_id", s.id),
		zap.Duration("connect_timeout", s.connectTimeout),
	)
	return true
}

// Fail claims a terminal state for a classified error. Cancellation-kind
// errors claim Cancelled, everything else Failed. No-op once terminal.
func (s *Session) Fail(cerr *gen.ClassifiedError) bool {
	target := StateFailed
	if cerr.Kind == gen.KindCancelled {
		target = StateCancelled
	}
	return s.claim(target, string(cerr.Kind), cerr)
}

// Cancel cooperatively terminates the session. Idempotent and callable from
// any goroutine at any time: it aborts the in-flight transport read, stops
// both timers, and claims Cancelled with whatever content has accumulated.
// Calling Cancel after termination is a no-op.
func (s *Session) Cancel() {
	s.claim(StateCancelled, string(gen.KindCancelled),
		gen.NewError(gen.KindCancelled, "cancelled by caller"))
}

// Stream hands the response body to the session and starts the reader loop.
// If the session was already claimed terminal (connect timeout or cancel
// racing the response), the body is closed and no reader starts.
func (s *Session) Stream(body io.ReadCloser) {
	s.mu.Lock()
	if s.State().Terminal() {
		s.mu.Unlock()
		body.Close()
		return
	}
	s.body = body
	s.streamStarted = true
	s.mu.Unlock()

	go s.readLoop(body)
}

// readLoop is the single sequential pipeline for one session:
// decode → sentinel check → interpret → accumulate → deliver.
func (s *Session) readLoop(body io.ReadCloser) {
	defer close(s.chunks)

	interpreter := gen.NewInterpreter(s.logger)
	reader := sse.NewReader(&activationReader{src: body, onFirst: s.activate})

	for {
		frame, err := reader.Next()
		if err != nil {
			// A forced body close after a terminal claim surfaces here as a
			// read error; the claim already handled the outcome.
			if s.State().Terminal() {
				return
			}
			if err == io.EOF {
				s.claim(StateCompleted, ReasonEndOfStream, nil)
				return
			}
			s.Fail(gen.Classify(err))
			return
		}

		// Any decoded frame is forward progress, including sentinels and
		// frames the interpreter will drop.
		s.touch()

		if marker, ok := gen.IsSentinel(frame); ok {
			s.logger.Debug("termination sentinel",
				zap.String("session_id", s.id),
				zap.String("marker", marker),
			)
			s.claim(StateCompleted, marker, nil)
			return
		}

		chunk, ok := interpreter.Interpret(frame, time.Now())
		if !ok {
			continue
		}

		if !s.append(chunk) {
			return
		}

		// Push mode and pull mode are alternatives: with an OnChunk handler
		// registered, the channel stays empty so callback consumers are not
		// obliged to drain it.
		if s.handler.OnChunk != nil {
			s.handler.OnChunk(chunk)
			continue
		}
		select {
		case s.chunks <- chunk:
		case <-s.done:
			return
		}
	}
}

// activate runs once, on the first response byte: the connect timer is
// disarmed, the session enters Streaming, and the inter-chunk timer arms.
func (s *Session) activate() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateStreaming)) {
		// Sessions streamed without Begin (no connect phase) activate
		// straight from Idle.
		s.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A claim can win the race to the first response byte (cancel or connect
	// timeout); it already stopped the timers, so don't arm a stray one.
	if s.State().Terminal() {
		return
	}

	if s.connectTimer != nil {
		s.connectTimer.Stop()
	}
	s.lastActivity = time.Now()
	s.chunkTimer = time.AfterFunc(s.chunkTimeout, func() {
		s.claim(StateFailed, string(gen.KindChunkTimeout),
			gen.NewError(gen.KindChunkTimeout, "stream went silent"))
	})

	s.logger.Debug("session streaming", zap.String("session_id", s.id))
}

// touch records frame arrival and rearms the inter-chunk timer.
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	if s.chunkTimer != nil {
		s.chunkTimer.Reset(s.chunkTimeout)
	}
}

// append accumulates a chunk's content. Returns false without appending if
// the session is already terminal.
func (s *Session) append(chunk gen.Chunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State().Terminal() {
		return false
	}
	if !chunk.Type.Control() {
		s.content.WriteString(chunk.Content)
	}
	s.chunkCount++
	return true
}

// claim is the single atomic claim-terminal operation. The first caller to
// observe a non-terminal state performs the transition, stops both timers,
// aborts the transport, and fires the completion or error callback; every
// later caller returns false and does nothing.
func (s *Session) claim(target State, reason string, cerr *gen.ClassifiedError) bool {
	s.mu.Lock()
	if s.State().Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state.Store(int32(target))
	s.reason = reason
	s.err = cerr
	content := s.content.String()
	streamStarted := s.streamStarted

	if s.connectTimer != nil {
		s.connectTimer.Stop()
	}
	if s.chunkTimer != nil {
		s.chunkTimer.Stop()
	}
	cancelRequest := s.cancelRequest
	body := s.body
	s.mu.Unlock()

	// Interrupt a reader blocked on the network so the claim is observed
	// promptly rather than after the next successful read.
	if cancelRequest != nil {
		cancelRequest()
	}
	if body != nil {
		body.Close()
	}

	// No reader goroutine ever started, so nothing else will close the
	// chunk channel.
	if !streamStarted {
		close(s.chunks)
	}
	close(s.done)

	s.logger.Debug("session terminal",
		zap.String("session_id", s.id),
		zap.Stringer("state", target),
		zap.String("reason", reason),
	)

	if target == StateCompleted {
		if s.handler.OnComplete != nil {
			s.handler.OnComplete(content)
		}
		return true
	}
	if s.handler.OnError != nil {
		s.handler.OnError(cerr)
	}
	return true
}

// activationReader invokes onFirst exactly once, on the first successful
// read of the response body.
type activationReader struct {
	src     io.Reader
	once    sync.Once
	onFirst func()
}

func (r *activationReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.once.Do(r.onFirst)
	}
	return n, err
}
