package sse

import "io"

// readBufSize is the transport read granularity. Frames are typically far
// smaller, but a single large frame may span many reads.
const readBufSize = 32 * 1024

// Reader drives a Decoder from an io.Reader, yielding one frame per call.
// It is the bridge between a streaming HTTP response body and the
// frame-at-a-time session reader loop.
type Reader struct {
	src     io.Reader
	dec     *Decoder
	pending []string
	readBuf []byte
	err     error
	done    bool
}

// NewReader returns a Reader that decodes frames from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:     src,
		dec:     NewDecoder(),
		readBuf: make([]byte, readBufSize),
	}
}

// Next returns the next frame from the stream. It blocks on the underlying
// reader until a complete frame is available. At clean end-of-stream it
// returns io.EOF after draining any unterminated trailing frame.
func (r *Reader) Next() (string, error) {
	for {
		if len(r.pending) > 0 {
			frame := r.pending[0]
			r.pending = r.pending[1:]
			return frame, nil
		}

		if r.err != nil {
			return "", r.err
		}
		if r.done {
			return "", io.EOF
		}

		n, err := r.src.Read(r.readBuf)
		if n > 0 {
			r.pending = r.dec.Feed(string(r.readBuf[:n]))
		}

		if err == io.EOF {
			r.done = true
			if frame, ok := r.dec.Flush(); ok {
				r.pending = append(r.pending, frame)
			}
			continue
		}
		if err != nil {
			// Surface the error only after pending frames are drained.
			r.err = err
			continue
		}
	}
}
