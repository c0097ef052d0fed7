package quadtree

import "runtime"

const defaultParallelThreshold = 256

type config struct {
	parallelThreshold int
	workers           int
	capacity          int
}

func newConfig(opts []Option) config {
	c := config{
		parallelThreshold: defaultParallelThreshold,
		workers:           runtime.GOMAXPROCS(0),
		capacity:          64,
	}
	for _, opt := range opts {
		opt(&c)
	}

	if c.workers < 1 {
		c.workers = 1
	}
	return c
}

// Option configures a tree.
type Option func(*config)

// WithParallelFixups sets the number of nodes a neighbor fix-up batch must
// reach before it is spread over the worker pool. Zero or less keeps every
// fix-up on the calling goroutine.
func WithParallelFixups(threshold int) Option {
	return func(c *config) {
		c.parallelThreshold = threshold
	}
}

// WithWorkers sets the number of goroutines used for parallel fix-ups.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithCapacity preallocates room for n nodes.
func WithCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}
