package gen

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// wireChunk is the union of field spellings observed across backends.
// A single normalization point keeps the rest of the pipeline on the
// canonical Chunk shape.
type wireChunk struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Text     string `json:"text"`
	Sequence *int   `json:"sequence"`

	Timestamp *time.Time `json:"timestamp"`
}

// Interpreter normalizes raw frames into canonical Chunks. It owns the
// session-local sequence counter used when the wire omits sequence numbers.
// Not safe for concurrent use: one Interpreter per session reader loop.
type Interpreter struct {
	logger *zap.Logger

	// nextSeq is the next locally assigned sequence number.
	nextSeq int
}

// NewInterpreter creates an Interpreter starting at sequence zero.
func NewInterpreter(logger *zap.Logger) *Interpreter {
	return &Interpreter{logger: logger}
}

// Interpret converts one raw frame (already confirmed not to be a
// termination sentinel) into a canonical Chunk.
//
// JSON object frames are normalized: "text" is accepted as an alias for
// "content", a missing type defaults to code, and a missing sequence is
// assigned locally. Non-JSON frames become synthetic code chunks carrying
// the raw text — a non-fatal fallback, not an error.
//
// Returns ok=false for frames whose type or content cannot be determined;
// such frames are dropped with a logged warning and do not fail the session.
func (in *Interpreter) Interpret(frame string, now time.Time) (Chunk, bool) {
	var wire wireChunk
	if err := json.Unmarshal([]byte(frame), &wire); err != nil || !looksLikeObject(frame) {
		// Plain-text payload: the whole raw line is treated as code.
		return Chunk{
			Type:      ChunkCode,
			Content:   frame,
			Sequence:  in.assignSequence(),
			Timestamp: now,
		}, true
	}

	content := wire.Content
	if content == "" {
		content = wire.Text
	}

	chunkType := ChunkType(wire.Type)
	switch {
	case wire.Type == "":
		chunkType = ChunkCode
	case !chunkType.Valid():
		in.logger.Warn("dropping chunk with unrecognized type",
			zap.String("type", wire.Type),
		)
		return Chunk{}, false
	}

	// An object with no recognized fields at all carries nothing to deliver.
	if content == "" && wire.Type == "" {
		in.logger.Warn("dropping chunk with no determinable content",
			zap.String("frame", frame),
		)
		return Chunk{}, false
	}

	timestamp := now
	if wire.Timestamp != nil {
		timestamp = *wire.Timestamp
	}

	return Chunk{
		Type:      chunkType,
		Content:   content,
		Sequence:  in.resolveSequence(wire.Sequence),
		Timestamp: timestamp,
	}, true
}

// assignSequence returns the next locally assigned sequence number.
func (in *Interpreter) assignSequence() int {
	seq := in.nextSeq
	in.nextSeq++
	return seq
}

// resolveSequence prefers a source-provided sequence, advancing the local
// counter past it so later locally assigned numbers stay monotonic. A
// provided value lower than one already handed out is clamped to the local
// counter: delivered sequences never decrease, even from a misbehaving
// backend.
func (in *Interpreter) resolveSequence(provided *int) int {
	if provided == nil || *provided < in.nextSeq {
		return in.assignSequence()
	}
	in.nextSeq = *provided + 1
	return *provided
}

// looksLikeObject gates the JSON path on object-shaped frames. Bare JSON
// scalars like `42` or `"text"` unmarshal into wireChunk without error but
// are plain payloads, not chunk envelopes.
func looksLikeObject(frame string) bool {
	return strings.HasPrefix(strings.TrimSpace(frame), "{")
}
