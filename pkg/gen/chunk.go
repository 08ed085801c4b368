// Package gen defines the canonical representation of streamed generation
// data: the typed Chunk, the interpreter that normalizes heterogeneous wire
// payloads into Chunks, the termination sentinel detector, and the closed
// error taxonomy for failed streams.
package gen

import "time"

// ChunkType classifies a streamed chunk.
type ChunkType string

const (
	// ChunkStart marks the beginning of a generation. Pure control, no content.
	ChunkStart ChunkType = "start"

	// ChunkToken carries an incremental text token.
	ChunkToken ChunkType = "token"

	// ChunkCode carries generated code. Also the fallback type for payloads
	// that omit an explicit type.
	ChunkCode ChunkType = "code"

	// ChunkExplanation carries prose accompanying generated code.
	ChunkExplanation ChunkType = "explanation"

	// ChunkDone marks the end of a generation. Pure control, no content.
	ChunkDone ChunkType = "done"

	// ChunkError carries an in-band error report from the backend.
	ChunkError ChunkType = "error"
)

// Valid reports whether t is a recognized chunk type.
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkStart, ChunkToken, ChunkCode, ChunkExplanation, ChunkDone, ChunkError:
		return true
	}
	return false
}

// Control reports whether chunks of this type carry no accumulable content.
// Control chunk content is excluded from the session's accumulated output.
func (t ChunkType) Control() bool {
	switch t {
	case ChunkStart, ChunkDone, ChunkError:
		return true
	}
	return false
}

// Chunk is the canonical unit of streamed generation data, produced by the
// Interpreter after wire-format normalization. The rest of the pipeline only
// ever sees this shape.
type Chunk struct {
	// Type classifies the chunk.
	Type ChunkType `json:"type"`

	// Content is the string payload. Empty for pure control chunks.
	Content string `json:"content"`

	// Sequence orders the chunk within its session. Source-provided when the
	// wire carries one, locally assigned otherwise.
	Sequence int `json:"sequence"`

	// Timestamp is the receipt time, or the source timestamp when provided.
	Timestamp time.Time `json:"timestamp"`
}
