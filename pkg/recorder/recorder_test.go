package recorder

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/history/inmemory"
)

// newTestPool creates a worker pool backed by an in-memory driver.
// Callers should "p.Close()" to drain enqueued jobs before asserting
// storage state.
func newTestPool() (*Pool, *inmemory.Driver) {
	logger, _ := zap.NewDevelopment()
	driver := inmemory.NewDriver()

	p, err := NewPool(&Config{
		Driver: driver,
		Logger: logger,
	})
	Expect(err).NotTo(HaveOccurred())
	return p, driver
}

func testRecord(id string) *history.Record {
	return &history.Record{
		ID:        id,
		State:     "completed",
		Reason:    "[DONE]",
		Content:   "output",
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	}
}

var _ = Describe("Pool", func() {
	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})

		It("applies worker and queue defaults", func() {
			p, _ := newTestPool()
			defer p.Close()

			Expect(p.config.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(p.config.QueueSize).To(Equal(defaultJobQueueSize))
		})
	})

	Describe("Enqueue", func() {
		It("persists enqueued records", func() {
			p, driver := newTestPool()

			Expect(p.Enqueue(Job{Record: testRecord("s-1")})).To(BeTrue())
			Expect(p.Enqueue(Job{Record: testRecord("s-2")})).To(BeTrue())
			p.Close()

			records, err := driver.List(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("rejects jobs without a record", func() {
			p, _ := newTestPool()
			defer p.Close()

			Expect(p.Enqueue(Job{})).To(BeFalse())
		})

		It("drops jobs when the queue is full", func() {
			driver := inmemory.NewDriver()
			p := &Pool{
				config: &Config{Driver: driver},
				queue:  make(chan Job, 1),
				logger: zap.NewNop(),
			}
			// No workers draining: the second enqueue must not block.
			Expect(p.Enqueue(Job{Record: testRecord("s-1")})).To(BeTrue())
			Expect(p.Enqueue(Job{Record: testRecord("s-2")})).To(BeFalse())
		})
	})

	Describe("Close", func() {
		It("drains in-flight jobs before returning", func() {
			p, driver := newTestPool()

			for i := 0; i < 20; i++ {
				Expect(p.Enqueue(Job{Record: testRecord(fmt.Sprintf("s-%d", i))})).To(BeTrue())
			}
			p.Close()

			records, err := driver.List(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(20))
		})
	})
})
