package mockgen

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// duration wraps time.Duration so TOML scripts can spell delays as "20ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Frame is one scripted wire frame. Data holds the payload written after the
// "data: " prefix; Comment frames are written as SSE comments instead.
type Frame struct {
	Data    string   `toml:"data"`
	Comment string   `toml:"comment"`
	Delay   duration `toml:"delay"`
}

// Script describes a canned generation response: an optional injected HTTP
// status and the ordered frames to stream back.
type Script struct {
	// Status, when set to a non-2xx value, is returned immediately with an
	// error body instead of a stream.
	Status int `toml:"status"`

	// DefaultDelay is the inter-frame pause for frames without an explicit delay.
	DefaultDelay duration `toml:"default_delay"`

	Frames []Frame `toml:"frames"`
}

// LoadScript parses a TOML script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}

	var script Script
	if err := toml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}

	return &script, nil
}

// DefaultScript returns the built-in response used when no script file is
// configured: a short code generation ending in a completion sentinel.
func DefaultScript() *Script {
	return &Script{
		DefaultDelay: duration{20 * time.Millisecond},
		Frames: []Frame{
			{Data: `{"type":"start","content":""}`},
			{Data: `{"type":"code","content":"def greet(name):\n"}`},
			{Data: `{"type":"code","content":"    return f\"hello, {name}\"\n"}`},
			{Data: `{"type":"explanation","content":"Greets the given name."}`},
			{Data: "[DONE]"},
		},
	}
}
