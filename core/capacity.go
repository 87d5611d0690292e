//go:build !runqueue_small

package core

// LocalQueueCapacity bounds each worker's local queue. Pushes beyond it overflow to the
// injection queue.
const LocalQueueCapacity = 256
