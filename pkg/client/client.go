// Package client opens streaming generation requests and hands the response
// stream to a session. It is a thin connection manager: request construction,
// auth headers, status classification, and nothing else — retry policy and
// prompt formatting belong to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/gen"
	"github.com/papercomputeco/spool/pkg/session"
)

// generatePath is the streaming generation endpoint path.
const generatePath = "/v1/generate"

// errorBodyLimit caps how much of a non-2xx response body is read for the
// classified error message.
const errorBodyLimit = 2 * 1024

// Config configures a Client. A Client is an explicit value: there is no
// process-wide default client and no mutable global configuration.
type Config struct {
	// Endpoint is the base URL of the generation service
	// (e.g. "http://localhost:8080").
	Endpoint string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the default model for requests that do not name one.
	Model string

	// ConnectTimeout bounds the wait for the first response byte.
	ConnectTimeout time.Duration

	// ChunkTimeout bounds the silence between streamed frames.
	ChunkTimeout time.Duration

	// HTTPClient overrides the transport. The default client carries no
	// global timeout: generations are long-lived and the session's liveness
	// timers guard against stalls instead.
	HTTPClient *http.Client
}

// GenerateRequest is the prompt payload for one streaming generation.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stream      bool     `json:"stream"`
}

// Client issues streaming generation requests against a single endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Client from the given configuration.
func New(config Config, logger *zap.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if _, err := url.Parse(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Generate opens a streaming generation request and returns its session
// handle. The returned error covers request construction only; transport
// failures, non-2xx statuses, timeouts, and cancellation all surface through
// the session as classified errors.
//
// Cancel the stream via the session handle or by cancelling ctx.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, handler session.Handler) (*session.Session, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}
	req.Stream = true

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	reqCtx, cancelRequest := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		strings.TrimSuffix(c.config.Endpoint, "/")+generatePath,
		bytes.NewReader(payload),
	)
	if err != nil {
		cancelRequest()
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	sess := session.New(session.Config{
		Logger:         c.logger,
		Handler:        handler,
		ConnectTimeout: c.config.ConnectTimeout,
		ChunkTimeout:   c.config.ChunkTimeout,
	})
	sess.Begin(cancelRequest)

	c.logger.Debug("issuing generation request",
		zap.String("session_id", sess.ID()),
		zap.String("model", req.Model),
		zap.String("endpoint", c.config.Endpoint),
	)

	go c.connect(sess, httpReq)

	return sess, nil
}

// connect performs the blocking request issue and routes the outcome into
// the session. Runs on its own goroutine so Generate returns the handle
// immediately.
func (c *Client) connect(sess *session.Session, httpReq *http.Request) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		sess.Fail(gen.Classify(err))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()

		classified := gen.ClassifyStatus(resp.StatusCode)
		if len(snippet) > 0 {
			classified.Message = fmt.Sprintf("%s: %s", classified.Message, strings.TrimSpace(string(snippet)))
		}

		c.logger.Warn("generation request rejected",
			zap.String("session_id", sess.ID()),
			zap.Int("status", resp.StatusCode),
		)
		sess.Fail(classified)
		return
	}

	sess.Stream(resp.Body)
}
