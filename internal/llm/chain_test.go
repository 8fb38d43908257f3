package llm

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockProvider is a mock implementation of Provider
type mockProvider struct {
	name   string
	text   string
	err    error
	delay  time.Duration
	calls  int
	params Params
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	m.calls++
	m.params = params
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

var _ = Describe("Chain", func() {
	var (
		first  *mockProvider
		second *mockProvider
		chain  *Chain
		reply  Reply
	)

	BeforeEach(func() {
		first = &mockProvider{name: "first", text: "from first"}
		second = &mockProvider{name: "second", text: "from second"}
	})

	JustBeforeEach(func() {
		chain = NewChain(50*time.Millisecond, DefaultParams, first, second)
		reply = chain.Respond(context.Background(), "prompt")
	})

	When("the first provider answers", func() {
		It("returns its text", func() {
			Expect(reply.OK).To(BeTrue())
			Expect(reply.Text).To(Equal("from first"))
			Expect(reply.Provider).To(Equal("first"))
		})

		It("does not call later providers", func() {
			Expect(second.calls).To(BeZero())
		})

		It("passes the sampling parameters", func() {
			Expect(first.params).To(Equal(DefaultParams))
		})
	})

	When("the first provider fails", func() {
		BeforeEach(func() {
			first.err = errors.New("boom")
		})

		It("falls back to the next provider", func() {
			Expect(reply.OK).To(BeTrue())
			Expect(reply.Provider).To(Equal("second"))
		})

		It("records the failed attempt", func() {
			Expect(reply.Attempts).To(HaveLen(1))
			Expect(reply.Attempts[0].Provider).To(Equal("first"))
			Expect(reply.Attempts[0].Error).To(Equal("boom"))
		})
	})

	When("the first provider is too slow", func() {
		BeforeEach(func() {
			first.delay = time.Second
		})

		It("gives up on it after the timeout", func() {
			Expect(reply.Provider).To(Equal("second"))
			Expect(reply.Attempts[0].Error).To(ContainSubstring("deadline exceeded"))
		})
	})

	When("a provider echoes the prompt", func() {
		BeforeEach(func() {
			first.text = "prompt  the answer"
		})

		It("strips the echo", func() {
			Expect(reply.Text).To(Equal("the answer"))
		})
	})

	When("a provider returns only whitespace", func() {
		BeforeEach(func() {
			first.text = "  \n"
		})

		It("treats it as a failure", func() {
			Expect(reply.Provider).To(Equal("second"))
			Expect(reply.Attempts[0].Error).To(Equal(ErrEmptyResponse.Error()))
		})
	})

	When("every provider fails", func() {
		BeforeEach(func() {
			first.err = errors.New("down")
			second.err = errors.New("also down")
		})

		It("returns the failure message", func() {
			Expect(reply.OK).To(BeFalse())
			Expect(reply.Text).To(Equal(FailureMessage))
			Expect(reply.Provider).To(BeEmpty())
			Expect(reply.Attempts).To(HaveLen(2))
		})

		It("tries every provider again on the next call", func() {
			chain.Respond(context.Background(), "prompt")
			Expect(first.calls).To(Equal(2))
			Expect(second.calls).To(Equal(2))
		})
	})
})

var _ = Describe("Chain.Generate", func() {
	It("returns the text on success", func() {
		chain := NewChain(0, DefaultParams, &mockProvider{name: "p", text: "ok"})
		text, err := chain.Generate(context.Background(), "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("ok"))
	})

	It("returns ErrAllProvidersFailed on exhaustion", func() {
		chain := NewChain(0, DefaultParams, &mockProvider{name: "p", err: errors.New("x")})
		_, err := chain.Generate(context.Background(), "q")
		Expect(err).To(MatchError(ErrAllProvidersFailed))
	})

	It("fails with no providers", func() {
		_, err := NewChain(0, DefaultParams).Generate(context.Background(), "q")
		Expect(err).To(MatchError(ErrAllProvidersFailed))
	})

	It("stops when the caller's context is done", func() {
		p := &mockProvider{name: "p", text: "ok"}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		reply := NewChain(0, DefaultParams, p).Respond(ctx, "q")
		Expect(reply.OK).To(BeFalse())
		Expect(p.calls).To(BeZero())
	})

	It("lists provider names in order", func() {
		chain := NewChain(0, DefaultParams, &mockProvider{name: "a"}, &mockProvider{name: "b"})
		Expect(chain.Providers()).To(Equal([]string{"a", "b"}))
	})
})
