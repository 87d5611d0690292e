package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	taskruntime "github.com/Swind/go-task-runtime"
	"github.com/urfave/cli/v2"
)

func ThroughputCommand() *cli.Command {
	return &cli.Command{
		Name:    "throughput",
		Aliases: []string{"t"},
		Usage:   "Spawn no-op tasks with random deadlines and report tasks per second",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   1000,
				Usage:   "Number of tasks in the measured run",
			},
			&cli.IntFlag{
				Name:  "warmup",
				Value: 100,
				Usage: "Number of tasks in the warm-up run",
			},
		},
		Action: ThroughputAction,
	}
}

func ThroughputAction(c *cli.Context) error {
	n := c.Int("tasks")
	if n < 1 {
		return cli.Exit("tasks must be at least 1", 1)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := timeTasks(c.Context, s.rt, c.Int("warmup")); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	elapsed, err := timeTasks(c.Context, s.rt, n)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	fmt.Printf("throughput: %.0f tasks / sec\n", float64(n)/elapsed.Seconds())
	stats := s.rt.Stats()
	fmt.Printf("stolen=%d overflowed=%d deadline_misses=%d\n", stats.Stolen, stats.Overflowed, stats.DeadlineMisses)
	return nil
}

// timeTasks spawns n no-op tasks, each with a deadline up to 255s out, and waits for all
// of them.
func timeTasks(ctx context.Context, rt *taskruntime.Runtime, n int) (time.Duration, error) {
	noop := func(context.Context) {}
	handles := make([]*taskruntime.TaskHandle, 0, n)

	start := time.Now()
	for range n {
		deadline := time.Now().Add(time.Duration(rand.IntN(256)) * time.Second)
		handles = append(handles, rt.SpawnWithDeadline(noop, deadline))
	}
	for _, h := range handles {
		if err := h.Wait(ctx); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}
