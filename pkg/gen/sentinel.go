package gen

import "strings"

// SentinelSetVersion identifies the recognized sentinel vocabulary. Bump when
// markers are added so recorded sessions can state which set terminated them.
const SentinelSetVersion = 1

// exactSentinels are plain-text markers that terminate a stream when a frame
// equals one of them. Frames arrive with any "data: " prefix already
// stripped, so the bare forms cover both spellings.
var exactSentinels = []string{
	"[DONE]",
	"[STREAM_COMPLETE]",
	"<|endoftext|>",
	"<|im_end|>",
}

// substringSentinels are human-readable completion banners matched anywhere
// in a frame. Matching is case-insensitive since upstreams are not consistent
// about casing in banner text.
var substringSentinels = []string{
	"generation complete",
	"context window closed",
}

// IsSentinel reports whether a raw frame is a termination sentinel, returning
// the matched marker. Detection is pure string matching, independent of JSON
// structure, and callers must check it before chunk interpretation: a frame
// that is both valid JSON and a sentinel still terminates the stream.
func IsSentinel(frame string) (string, bool) {
	trimmed := strings.TrimSpace(frame)

	for _, s := range exactSentinels {
		if trimmed == s {
			return s, true
		}
	}

	lowered := strings.ToLower(trimmed)
	for _, s := range substringSentinels {
		if strings.Contains(lowered, s) {
			return s, true
		}
	}

	return "", false
}
