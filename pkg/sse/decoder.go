package sse

import "strings"

// Decoder reassembles arbitrarily-fragmented stream reads into complete
// payload frames. The transport makes no guarantee that one read equals one
// frame: a single read may carry half a line, several lines, or a line split
// mid-rune boundary across two reads.
//
// Decoder guarantees chunking-boundary invariance: feeding the same logical
// byte sequence split at any boundaries yields the identical frame sequence.
type Decoder struct {
	// buf holds the tail fragment of the most recent feed that did not yet
	// contain a line terminator. After every Feed it is either empty or
	// exactly one incomplete trailing fragment, never a complete line.
	buf strings.Builder
}

// NewDecoder returns a Decoder with an empty line buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a fragment to the line buffer and returns every complete
// frame now available. Comment lines, blank delimiter lines, and empty
// data fields are consumed but not returned.
func (d *Decoder) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}

	d.buf.WriteString(fragment)
	buffered := d.buf.String()

	// No terminator yet: everything stays buffered.
	if !strings.Contains(buffered, "\n") {
		return nil
	}

	parts := strings.Split(buffered, "\n")

	// The final split element is the (possibly empty) incomplete tail.
	d.buf.Reset()
	d.buf.WriteString(parts[len(parts)-1])

	var frames []string
	for _, line := range parts[:len(parts)-1] {
		if frame, ok := stripFrame(line); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Flush drains a final unterminated fragment at end-of-stream. Streams that
// end without a trailing newline still yield their last frame.
func (d *Decoder) Flush() (string, bool) {
	if d.buf.Len() == 0 {
		return "", false
	}
	line := d.buf.String()
	d.buf.Reset()
	return stripFrame(line)
}

// Buffered reports the size of the pending incomplete fragment.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}
