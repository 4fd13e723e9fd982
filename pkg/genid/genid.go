// Package genid hands out the monotonic integer ids used throughout the
// generator: index ids, intermediate-tensor labels, and task ids during a
// single emission pass.
package genid

// Counter is a single monotonically increasing id source. The generator is
// single-threaded and deterministic (see spec §5): a Counter carries no
// synchronization and must not be shared across goroutines.
type Counter struct {
	next int
}

// NewCounter returns a Counter starting at 0.
func NewCounter() *Counter {
	return &Counter{next: 0}
}

// Next returns the next id and advances the counter.
func (c *Counter) Next() int {
	id := c.next
	c.next++
	return id
}

// Peek returns the id that the next call to Next will return, without
// advancing the counter.
func (c *Counter) Peek() int {
	return c.next
}

// Reset sets the counter back to 0. Used at the start of each emission pass
// so task ids always form a contiguous range starting at 0 (spec §8).
func (c *Counter) Reset() {
	c.next = 0
}
