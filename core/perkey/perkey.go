// Package perkey runs deferred work serially per key while different keys
// proceed concurrently.
//
// The cache uses it as its low-priority write queue: every persistence
// write for one storage key goes through the same worker, so the
// read-modify-write cycles on that key are applied in the order the cache
// issued them and never overlap.
package perkey

import (
	"context"
	"sync"
)

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	bufferSize int
	onError    func(key any, err error)
}

// WithBufferSize sets the task buffer size per worker (default: 64).
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithErrorHandler is called with the error of every submitted task that
// fails. Errors of tasks run through Do are returned to the caller instead.
func WithErrorHandler(fn func(key any, err error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// Scheduler runs tasks such that for any given key K, tasks are executed
// sequentially in submission order.
type Scheduler[K comparable] struct {
	mu         sync.Mutex
	workers    map[K]*worker
	closed     bool
	enqueuing  sync.WaitGroup // callers between the closed check and the channel send
	running    sync.WaitGroup // live worker goroutines
	bufferSize int
	onError    func(key any, err error)
}

type worker struct {
	tasks chan *task
}

type task struct {
	fn   func() error
	done chan error // nil for submitted tasks
}

// New creates a new Scheduler.
func New[K comparable](opts ...Option) *Scheduler[K] {
	cfg := &config{bufferSize: 64}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Scheduler[K]{
		workers:    make(map[K]*worker),
		bufferSize: cfg.bufferSize,
		onError:    cfg.onError,
	}
}

// Do schedules fn for key and blocks until it finished.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but gives up waiting when ctx is done. A task that
// was already enqueued still runs.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := s.acquire(key)
	if err != nil {
		return err
	}

	t := &task{fn: fn, done: make(chan error, 1)}

	select {
	case w.tasks <- t:
		s.enqueuing.Done()
	case <-ctx.Done():
		s.enqueuing.Done()
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues fn for key and returns without waiting for it to run.
// It only blocks while the key's buffer is full.
func (s *Scheduler[K]) Submit(key K, fn func() error) error {
	w, err := s.acquire(key)
	if err != nil {
		return err
	}
	w.tasks <- &task{fn: fn}
	s.enqueuing.Done()
	return nil
}

func (s *Scheduler[K]) acquire(key K) (*worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	s.enqueuing.Add(1)
	return s.getOrCreateWorkerLocked(key), nil
}

// Close stops accepting tasks and blocks until every task already
// enqueued has run. It is safe to call more than once.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.running.Wait()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// no sends may be in progress once the channels close
	s.enqueuing.Wait()

	s.mu.Lock()
	for _, w := range s.workers {
		close(w.tasks)
	}
	s.workers = nil
	s.mu.Unlock()

	s.running.Wait()
}

func (s *Scheduler[K]) getOrCreateWorkerLocked(key K) *worker {
	w, ok := s.workers[key]
	if ok {
		return w
	}

	w = &worker{
		tasks: make(chan *task, s.bufferSize),
	}
	s.workers[key] = w
	s.running.Add(1)
	go s.runWorker(key, w)

	return w
}

func (s *Scheduler[K]) runWorker(key K, w *worker) {
	defer s.running.Done()
	for t := range w.tasks {
		err := t.fn()
		if t.done != nil {
			t.done <- err
			continue
		}
		if err != nil && s.onError != nil {
			s.onError(key, err)
		}
	}
}

// ----- Errors -----

// ErrSchedulerClosed is returned when work is scheduled on a closed scheduler.
var ErrSchedulerClosed = &SchedulerError{"scheduler is closed"}

// SchedulerError is a simple error implementation.
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string { return e.msg }
