package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	taskruntime "github.com/Swind/go-task-runtime"
	"github.com/urfave/cli/v2"
)

func DeadlinesCommand() *cli.Command {
	return &cli.Command{
		Name:    "deadlines",
		Aliases: []string{"d"},
		Usage:   "Queue tasks with mixed priorities and deadlines and print their run order",
		Action:  DeadlinesAction,
	}
}

func DeadlinesAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	record := func(label string) taskruntime.Task {
		wg.Add(1)
		return func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}
	}

	// The children are spawned from inside a running task, so they all land on that
	// worker's local queue and are ordered there before any of them runs.
	now := time.Now()
	err = s.rt.BlockOn(c.Context, func(ctx context.Context) {
		s.rt.SpawnContext(ctx, record("default"), taskruntime.DefaultTaskSpec())
		s.rt.SpawnContext(ctx, record("deadline+100ms"), taskruntime.SpecWithDeadline(now.Add(100*time.Millisecond)))
		s.rt.SpawnContext(ctx, record("deadline+50ms"), taskruntime.SpecWithDeadline(now.Add(50*time.Millisecond)))
		s.rt.SpawnContext(ctx, record("priority=1"), taskruntime.TaskSpec{Priority: 1})
		s.rt.SpawnContext(ctx, record("user_blocking"), taskruntime.SpecUserBlocking())
	}, taskruntime.SpecUserBlocking())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	wg.Wait()

	out := c.App.Writer
	if s.rt.Stats().Workers > 1 {
		// Idle peers may steal part of the parent's queue, so the order is only maximal per pop.
		fmt.Fprintln(out, "note: with several workers, stolen tasks can run out of order")
	}
	for i, label := range order {
		fmt.Fprintf(out, "%d. %s\n", i+1, label)
	}
	return nil
}
