// Package recorder provides an asynchronous worker pool for persisting
// finished generation sessions through a history.Driver.
//
// The pool decouples persistence from the streaming hot path: a session's
// terminal callback enqueues its record and returns immediately, so slow
// storage never delays chunk delivery or terminal claims.
package recorder

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/history"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 128
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *history.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the history backend for persisting session records.
	Driver history.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 128).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes history jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("history driver is required")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Record == nil {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("record queued",
			zap.String("session_id", job.Record.ID),
			zap.String("state", job.Record.State),
		)
		return true
	default:
		p.logger.Error("record not queued, queue full, record dropped",
			zap.String("session_id", job.Record.ID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after live sessions have terminated.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("recorder worker stopped", zap.Uint("worker_id", id))
}

// processJob persists one session record.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Driver.Save(ctx, job.Record); err != nil {
		p.logger.Error("async session record storage failed",
			zap.String("session_id", job.Record.ID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("session recorded",
		zap.String("session_id", job.Record.ID),
		zap.String("state", job.Record.State),
		zap.String("reason", job.Record.Reason),
		zap.Int("chunk_count", job.Record.ChunkCount),
	)
}
