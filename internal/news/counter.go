package news

import (
	"strconv"
	"sync/atomic"
)

// CallCounter tracks outbound proxy calls for a single worker invocation. It
// is threaded through the fetch path rather than held in a package global so
// concurrent invocations for different countries cannot contaminate each
// other's counts.
type CallCounter struct {
	n atomic.Int64
}

// Inc records one outbound call attempt.
func (c *CallCounter) Inc() {
	c.n.Add(1)
}

// Value returns the current count.
func (c *CallCounter) Value() int64 {
	return c.n.Load()
}

// String renders the count the way the status store records it.
func (c *CallCounter) String() string {
	return strconv.FormatInt(c.n.Load(), 10)
}
