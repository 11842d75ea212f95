package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunParallelTasksKeepsOrder(t *testing.T) {
	boom := errors.New("boom")
	tasks := []ParallelTask[string]{
		func() (string, error) { return "cover", nil },
		func() (string, error) { return "", boom },
		func() (string, error) { return "image-2", nil },
	}

	results, errs := RunParallelTasks(tasks)
	if results[0] != "cover" || results[2] != "image-2" {
		t.Fatalf("results out of order: %v", results)
	}
	if errs[0] != nil || !errors.Is(errs[1], boom) {
		t.Fatalf("errors misplaced: %v", errs)
	}
	if !errors.Is(JoinErrors(errs), boom) {
		t.Fatal("JoinErrors lost the failure")
	}
	if JoinErrors([]error{nil, nil}) != nil {
		t.Fatal("JoinErrors should be nil without failures")
	}
}

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3)
	var done int64
	for i := 0; i < 50; i++ {
		pool.Go(func(context.Context) error {
			atomic.AddInt64(&done, 1)
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatal(err)
	}
	if done != 50 {
		t.Fatalf("expected 50 tasks, ran %d", done)
	}
}

func TestWorkerPoolCollectsErrors(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2)
	bad := errors.New("bad hash")
	for i := 0; i < 6; i++ {
		i := i
		pool.Go(func(context.Context) error {
			if i%3 == 0 {
				return bad
			}
			return nil
		})
	}
	err := pool.Wait()
	if !errors.Is(err, bad) {
		t.Fatalf("expected the task error, got %v", err)
	}
	if n := len(err.(interface{ Unwrap() []error }).Unwrap()); n != 2 {
		t.Fatalf("expected 2 errors, got %d", n)
	}
}

func TestWorkerPoolSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := NewWorkerPool(ctx, 2)
	var ran int64
	for i := 0; i < 10; i++ {
		pool.Go(func(context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		})
	}
	if err := pool.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran != 0 {
		t.Fatalf("%d tasks ran after cancel", ran)
	}
}
