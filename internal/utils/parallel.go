package utils

import (
	"context"
	"errors"
	"sync"
)

// ParallelTask is one unit of work for RunParallelTasks.
type ParallelTask[T any] func() (T, error)

// RunParallelTasks runs every task in its own goroutine. results[i] and
// errs[i] belong to tasks[i].
func RunParallelTasks[T any](tasks []ParallelTask[T]) ([]T, []error) {
	var wg sync.WaitGroup
	results := make([]T, len(tasks))
	errs := make([]error, len(tasks))

	wg.Add(len(tasks))
	for i, task := range tasks {
		go func(index int, t ParallelTask[T]) {
			defer wg.Done()
			results[index], errs[index] = t()
		}(i, task)
	}

	wg.Wait()
	return results, errs
}

// JoinErrors joins the non-nil errors of a RunParallelTasks call.
func JoinErrors(errs []error) error {
	return errors.Join(errs...)
}

// WorkerPool runs queued tasks on a fixed number of goroutines and collects
// their errors. Tasks still queued when ctx is done are skipped and report
// ctx.Err().
type WorkerPool struct {
	ctx   context.Context
	tasks chan func(context.Context) error
	wg    sync.WaitGroup
	once  sync.Once

	mu   sync.Mutex
	errs []error
}

func NewWorkerPool(ctx context.Context, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	p := &WorkerPool{ctx: ctx, tasks: make(chan func(context.Context) error, workers*2)}
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	for task := range p.tasks {
		err := p.ctx.Err()
		if err == nil {
			err = task(p.ctx)
		}
		p.record(err)
		p.wg.Done()
	}
}

func (p *WorkerPool) record(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

// Go queues a task, blocking while the queue is full. It must not be called
// after Wait.
func (p *WorkerPool) Go(task func(context.Context) error) {
	p.wg.Add(1)
	select {
	case p.tasks <- task:
	case <-p.ctx.Done():
		p.record(p.ctx.Err())
		p.wg.Done()
	}
}

// Wait stops accepting tasks, waits for the queued ones and returns their
// joined errors.
func (p *WorkerPool) Wait() error {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}
