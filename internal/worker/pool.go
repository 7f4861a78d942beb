// Package worker runs units of work on a fixed set of long-lived workers.
//
// Each worker owns a Runtime (its container and reset engine). After every
// job the worker runs a reset cycle on that runtime before it takes the next
// job. A worker whose cycle fails, or whose job panicked, is retired: its
// runtime is closed and a fresh one is built in its place.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"

	"github.com/google/uuid"
)

// Runtime is the state a worker carries from one job to the next
type Runtime interface {
	RunCycle(ctx context.Context) error
	Close() error
}

// Builder makes the runtime for the worker with the given id
type Builder[R Runtime] func(ctx context.Context, workerID string) (R, error)

// Job is one unit of work run against a worker's runtime
type Job[R Runtime] func(ctx context.Context, rt R) error

// Config sizes the pool and paces rebuilds
type Config struct {
	Size           int           // default 1
	BackoffStart   time.Duration // first wait after a failed rebuild; default 150ms
	BackoffCeiling time.Duration // default 2s
}

// Stats are cumulative pool counters
type Stats struct {
	Workers int    `json:"workers"`
	Jobs    uint64 `json:"jobs"`
	Failed  uint64 `json:"failed"`
	Cycles  uint64 `json:"cycles"`
	Retired uint64 `json:"retired"`
	Rebuilt uint64 `json:"rebuilt"`
}

// ErrClosed is returned by Do once Close has been called
var ErrClosed = perr.Unavailablef("worker: pool closed")

type request[R Runtime] struct {
	ctx context.Context
	fn  Job[R]
	res chan error
}

type slot[R Runtime] struct {
	mu  sync.Mutex
	id  string
	rt  R
	ok  bool
	log *logger.Logger
}

// Pool is a fixed set of workers
type Pool[R Runtime] struct {
	cfg   Config
	build Builder[R]
	base  context.Context
	log   *logger.Logger

	slots []*slot[R]
	reqs  chan request[R]
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	jobs, failed, cycles, retired, rebuilt atomic.Uint64
}

// New builds every worker's runtime up front and starts the workers. If any
// build fails the runtimes already built are closed and the error returned.
func New[R Runtime](ctx context.Context, cfg Config, build Builder[R]) (*Pool[R], error) {
	if build == nil {
		return nil, perr.InvalidArgf("worker: nil builder")
	}
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.BackoffStart <= 0 {
		cfg.BackoffStart = 150 * time.Millisecond
	}
	if cfg.BackoffCeiling < cfg.BackoffStart {
		cfg.BackoffCeiling = max(2*time.Second, cfg.BackoffStart)
	}

	p := &Pool[R]{
		cfg:   cfg,
		build: build,
		base:  context.WithoutCancel(ctx),
		log:   logger.Named("worker"),
		reqs:  make(chan request[R]),
		quit:  make(chan struct{}),
	}

	for range cfg.Size {
		id := uuid.NewString()
		rt, err := build(ctx, id)
		if err != nil {
			for _, s := range p.slots {
				_ = s.rt.Close()
			}
			return nil, perr.WithOp(err, "worker.New")
		}
		p.slots = append(p.slots, &slot[R]{id: id, rt: rt, ok: true, log: p.workerLog(id)})
	}

	for _, s := range p.slots {
		p.wg.Add(1)
		go p.loop(s)
	}
	p.log.Info().Int("workers", cfg.Size).Msg("pool started")
	return p, nil
}

func (p *Pool[R]) workerLog(id string) *logger.Logger {
	l := p.log.With().Str("worker_id", id).Logger()
	return &l
}

// Do runs fn on the next free worker and returns its error. The reset cycle
// that follows runs after Do has returned. If ctx ends first Do returns
// ctx.Err(); a job already handed to a worker still runs to completion.
func (p *Pool[R]) Do(ctx context.Context, fn Job[R]) error {
	if fn == nil {
		return perr.InvalidArgf("worker: nil job")
	}
	req := request[R]{ctx: ctx, fn: fn, res: make(chan error, 1)}
	select {
	case <-p.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.reqs <- req:
	}
	select {
	case err := <-req.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[R]) loop(s *slot[R]) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			s.mu.Lock()
			if s.ok {
				if err := s.rt.Close(); err != nil {
					s.log.Warn().Err(err).Msg("close runtime")
				}
				s.ok = false
			}
			s.mu.Unlock()
			return
		case req := <-p.reqs:
			if !p.serve(s, req) {
				return
			}
		}
	}
}

// serve runs one job and the cycle after it. It returns false when the
// worker could not be rebuilt because the pool is closing.
func (p *Pool[R]) serve(s *slot[R], req request[R]) bool {
	s.mu.Lock()
	id, rt := s.id, s.rt
	s.mu.Unlock()

	ctx := logger.WithWorker(req.ctx, id)
	err := p.call(ctx, req.fn, rt)
	req.res <- err
	p.jobs.Add(1)
	if err != nil {
		p.failed.Add(1)
	}

	cerr := rt.RunCycle(context.WithoutCancel(ctx))
	p.cycles.Add(1)

	switch {
	case cerr != nil:
		return p.retire(s, cerr)
	case perr.Fatal(err):
		return p.retire(s, err)
	}
	return true
}

func (p *Pool[R]) call(ctx context.Context, fn Job[R], rt R) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("worker: job panicked: %v", r)
		}
	}()
	return fn(ctx, rt)
}

// retire closes the worker's runtime and builds a replacement, retrying with
// backoff until it succeeds or the pool closes
func (p *Pool[R]) retire(s *slot[R], cause error) bool {
	p.retired.Add(1)
	s.mu.Lock()
	s.log.Warn().Err(cause).Msg("retiring worker")
	if err := s.rt.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close runtime")
	}
	s.ok = false
	s.mu.Unlock()

	backoff := p.cfg.BackoffStart
	for {
		id := uuid.NewString()
		rt, err := p.build(p.base, id)
		if err == nil {
			s.mu.Lock()
			s.id, s.rt, s.ok, s.log = id, rt, true, p.workerLog(id)
			s.mu.Unlock()
			p.rebuilt.Add(1)
			s.log.Info().Msg("worker rebuilt")
			return true
		}
		s.log.Error().Err(err).Dur("backoff", backoff).Msg("rebuild failed")

		select {
		case <-p.quit:
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, p.cfg.BackoffCeiling)
	}
}

// Visit calls fn with each live worker's id and runtime. fn must only use
// the runtime's concurrency safe methods; a job may be running on it.
func (p *Pool[R]) Visit(fn func(id string, rt R)) {
	for _, s := range p.slots {
		s.mu.Lock()
		id, rt, ok := s.id, s.rt, s.ok
		s.mu.Unlock()
		if ok {
			fn(id, rt)
		}
	}
}

// Stats returns a snapshot of the counters
func (p *Pool[R]) Stats() Stats {
	return Stats{
		Workers: len(p.slots),
		Jobs:    p.jobs.Load(),
		Failed:  p.failed.Load(),
		Cycles:  p.cycles.Load(),
		Retired: p.retired.Load(),
		Rebuilt: p.rebuilt.Load(),
	}
}

// Close stops accepting jobs, waits for running jobs and their cycles, and
// closes every runtime. It is safe to call more than once.
func (p *Pool[R]) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
		p.log.Info().Uint64("jobs", p.jobs.Load()).Uint64("retired", p.retired.Load()).Msg("pool stopped")
	})
}
