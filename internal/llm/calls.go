package llm

import "context"

// CallCounter counts provider invocations for one generation attempt. It is
// threaded through the context rather than held as shared state, so parallel
// attempts never see each other's counts.
type CallCounter struct {
	n int
}

// Increment records one provider call and returns the new total.
func (c *CallCounter) Increment() int {
	c.n++
	return c.n
}

// Count returns the number of recorded calls.
func (c *CallCounter) Count() int {
	if c == nil {
		return 0
	}
	return c.n
}

type counterKey struct{}

// WithCallCounter attaches a fresh call counter to the context.
func WithCallCounter(ctx context.Context) (context.Context, *CallCounter) {
	counter := &CallCounter{}
	return context.WithValue(ctx, counterKey{}, counter), counter
}

// CounterFromContext returns the attached counter, or nil when absent.
func CounterFromContext(ctx context.Context) *CallCounter {
	counter, _ := ctx.Value(counterKey{}).(*CallCounter)
	return counter
}
