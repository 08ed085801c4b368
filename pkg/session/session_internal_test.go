package session

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/gen"
)

var _ = Describe("activation racing a terminal claim", func() {
	It("does not arm the inter-chunk timer after cancellation", func() {
		s := New(Config{})
		Expect(s.Begin(func() {})).To(BeTrue())
		s.Cancel()

		s.activate()

		s.mu.Lock()
		timer := s.chunkTimer
		s.mu.Unlock()
		Expect(timer).To(BeNil())
		Expect(s.State()).To(Equal(StateCancelled))
	})

	It("does not arm the inter-chunk timer after a connect-timeout claim", func() {
		s := New(Config{})
		Expect(s.Begin(func() {})).To(BeTrue())
		s.claim(StateFailed, string(gen.KindConnectTimeout),
			gen.NewError(gen.KindConnectTimeout, "no response within connect timeout"))

		s.activate()

		s.mu.Lock()
		timer := s.chunkTimer
		s.mu.Unlock()
		Expect(timer).To(BeNil())
		Expect(s.State()).To(Equal(StateFailed))
	})
})
