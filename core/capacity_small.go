//go:build runqueue_small

package core

// LocalQueueCapacity is shrunk under the runqueue_small tag so that stress tests hit the
// overflow and steal-abort paths far more often. Ordering logic is unaffected.
const LocalQueueCapacity = 4
