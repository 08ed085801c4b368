// Package mockgen provides a mock generation server for developing and
// testing streaming clients without a real model behind them. It speaks the
// same wire protocol the client consumes: an SSE response on /v1/generate
// whose frames come from a configurable script.
package mockgen

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/spool/pkg/logger"
)

const generatePath = "/v1/generate"

// Config is the configuration options for the mock server.
type Config struct {
	// ListenAddr is the address to serve on, e.g. "127.0.0.1:8077".
	ListenAddr string

	// APIKey, when set, requires clients to send "Authorization: Bearer <key>".
	// Requests with a missing or wrong key get a 401.
	APIKey string

	// ScriptPath is an optional TOML script file. When set it is loaded at
	// startup and hot-reloaded on change.
	ScriptPath string

	// Script is the in-process script to serve. Ignored when ScriptPath is
	// set; defaults to DefaultScript.
	Script *Script

	// Logger is the CLI-facing slog logger. Defaults to a nop logger.
	Logger *slog.Logger
}

// Server is the mock generation server.
type Server struct {
	config Config
	app    *fiber.App
	logger *slog.Logger

	// mu guards script, which the watcher goroutine swaps on reload.
	mu     sync.RWMutex
	script *Script

	watchDone chan struct{}
}

// New creates a new mock server. If Config.ScriptPath is set the script file
// is loaded now and watched for changes until Close.
func New(config Config) (*Server, error) {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		app:    app,
		logger: log,
		script: config.Script,
	}

	if config.ScriptPath != "" {
		script, err := LoadScript(config.ScriptPath)
		if err != nil {
			return nil, err
		}
		s.script = script

		s.watchDone = make(chan struct{})
		if err := s.watchScript(); err != nil {
			return nil, err
		}
	}

	if s.script == nil {
		s.script = DefaultScript()
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post(generatePath, s.handleGenerate)

	return s, nil
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting mock generation server",
		"listen", s.config.ListenAddr,
		"script", s.config.ScriptPath,
	)

	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting mock generation server",
		"listen", listener.Addr().String(),
	)

	return s.app.Listener(listener)
}

// Close shuts down the server and stops the script watcher.
func (s *Server) Close() error {
	if s.watchDone != nil {
		close(s.watchDone)
		s.watchDone = nil
	}
	return s.app.Shutdown()
}

// currentScript snapshots the active script under the read lock.
func (s *Server) currentScript() *Script {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.script
}

func (s *Server) setScript(script *Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	if s.config.APIKey != "" {
		if c.Get(fiber.HeaderAuthorization) != "Bearer "+s.config.APIKey {
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "invalid api key"})
		}
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "malformed request body"})
	}
	if req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "prompt is required"})
	}

	script := s.currentScript()

	if script.Status != 0 && (script.Status < 200 || script.Status > 299) {
		s.logger.Debug("injecting scripted error status", "status", script.Status)
		return c.Status(script.Status).JSON(errorResponse{Error: "scripted failure"})
	}

	s.logger.Debug("streaming scripted response",
		"model", req.Model,
		"frame_count", len(script.Frames),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe + SetBodyStream: pw.Write blocks until fasthttp reads from the
	// pipe and flushes to the socket, so every scripted frame reaches the
	// client as its own chunk instead of buffering in memory.
	pr, pw := io.Pipe()
	go s.streamScript(pw, script)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamScript writes the script's frames to the pipe, honoring per-frame
// delays. Runs in its own goroutine; the handler has already returned.
func (s *Server) streamScript(pw *io.PipeWriter, script *Script) {
	defer pw.Close()

	for _, frame := range script.Frames {
		delay := frame.Delay.Duration
		if delay == 0 {
			delay = script.DefaultDelay.Duration
		}
		if delay > 0 {
			time.Sleep(delay)
		}

		var wire string
		switch {
		case frame.Comment != "":
			wire = ": " + frame.Comment + "\n\n"
		default:
			wire = "data: " + frame.Data + "\n\n"
		}

		if _, err := pw.Write([]byte(wire)); err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				s.logger.Error("error writing frame to pipe", "error", err)
			}
			return
		}
	}
}

func validateScript(script *Script) error {
	if script == nil {
		return errors.New("script is nil")
	}
	for i, frame := range script.Frames {
		if frame.Data == "" && frame.Comment == "" {
			return fmt.Errorf("frame %d has neither data nor comment", i)
		}
	}
	return nil
}
