// Package sse provides a minimal, purpose-built decoder for the SSE-like
// (Server-Sent Events) framing used by streaming generation endpoints. It
// splits an incrementally delivered byte stream into candidate payload lines
// ("frames") regardless of how the transport fragments its reads.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

const (
	// dataPrefix is the optional SSE field prefix stripped from payload lines.
	dataPrefix = "data: "

	// commentPrefix marks SSE comment lines, which carry no payload.
	commentPrefix = ":"
)

// stripFrame converts one complete line into a frame payload.
// Returns ok=false for lines that carry no payload: blank event
// delimiters, comment lines, and "data:" fields with an empty value.
func stripFrame(line string) (string, bool) {
	// Tolerate CRLF framing from upstreams that terminate lines with \r\n.
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		return "", false
	}
	if strings.HasPrefix(line, commentPrefix) {
		return "", false
	}

	frame := strings.TrimPrefix(line, dataPrefix)
	if frame == "" {
		return "", false
	}
	return frame, true
}
