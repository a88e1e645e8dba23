// Package dispatch runs batches of matches on a fixed pool of long-lived
// workers. Workers are created once per pool generation and reused across
// batches; correlation between jobs and results is strictly by JobID.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"neuroarena/internal/arena"
	"neuroarena/internal/fitness"
	"neuroarena/internal/model"
)

var (
	// ErrBatchTimeout reports a batch that did not complete within the
	// configured deadline.
	ErrBatchTimeout = errors.New("batch deadline exceeded")

	// ErrBatchInFlight reports a Submit while another batch is running.
	ErrBatchInFlight = errors.New("batch already in flight")

	// ErrPoolClosed reports use of a pool after Close.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolRebuilt reports a batch abandoned because the pool was
	// resized or closed while the batch was running.
	ErrPoolRebuilt = errors.New("pool rebuilt while batch in flight")
)

const defaultBatchTimeout = 5 * time.Minute

type Config struct {
	Workers      int
	Evaluator    *fitness.Evaluator
	MatchTicks   int
	BatchTimeout time.Duration
}

// workerSet is one generation of workers. Resize retires the whole set and
// builds a fresh one; the epoch token keeps results from a retired set from
// leaking into a later batch.
type workerSet struct {
	epoch int
	size  int
	tasks chan assignment
	stop  chan struct{}
	wg    sync.WaitGroup
}

type assignment struct {
	epoch   int
	jobs    []model.MatchJob
	replies chan<- delivery
}

type delivery struct {
	epoch   int
	results []model.MatchResult
	err     error
}

type Pool struct {
	cfg Config

	mu       sync.Mutex
	set      *workerSet
	inFlight bool
	closed   bool
}

// NewPool starts cfg.Workers match workers and blocks until every worker has
// signalled readiness.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.Workers)
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.MatchTicks <= 0 {
		cfg.MatchTicks = arena.DefaultMatchTicks
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	p := &Pool{cfg: cfg}
	p.set = p.spawn(cfg.Workers, 0)
	return p, nil
}

// spawn builds a worker set and waits for the readiness handshake from every
// worker before returning.
func (p *Pool) spawn(n, epoch int) *workerSet {
	set := &workerSet{
		epoch: epoch,
		size:  n,
		tasks: make(chan assignment, n),
		stop:  make(chan struct{}),
	}
	ready := make(chan struct{})
	set.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker(set, ready)
	}
	for i := 0; i < n; i++ {
		<-ready
	}
	return set
}

func (p *Pool) worker(set *workerSet, ready chan<- struct{}) {
	defer set.wg.Done()
	ready <- struct{}{}

	for {
		select {
		case <-set.stop:
			return
		case task, ok := <-set.tasks:
			if !ok {
				return
			}
			out := make([]model.MatchResult, 0, len(task.jobs))
			var err error
			for _, job := range task.jobs {
				res, runErr := arena.RunMatch(job, p.cfg.Evaluator, p.cfg.MatchTicks)
				if runErr != nil {
					err = fmt.Errorf("job %d: %w", job.JobID, runErr)
					break
				}
				out = append(out, res)
			}
			select {
			case task.replies <- delivery{epoch: task.epoch, results: out, err: err}:
			case <-set.stop:
				return
			}
		}
	}
}

// Submit runs every job in the batch and returns all results. Jobs are split
// into contiguous slices of ceil(len(jobs)/workers); each worker runs its
// slice sequentially. Result ordering across workers is unspecified. Only one
// batch may be in flight per pool.
func (p *Pool) Submit(ctx context.Context, jobs []model.MatchJob) ([]model.MatchResult, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrBatchInFlight
	}
	p.inFlight = true
	set := p.set
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	slices := splitJobs(jobs, set.size)
	replies := make(chan delivery, len(slices))
	for _, slice := range slices {
		select {
		case set.tasks <- assignment{epoch: set.epoch, jobs: slice, replies: replies}:
		case <-set.stop:
			return nil, ErrPoolRebuilt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	timer := time.NewTimer(p.cfg.BatchTimeout)
	defer timer.Stop()

	results := make([]model.MatchResult, 0, len(jobs))
	for len(results) < len(jobs) {
		select {
		case d := <-replies:
			if d.epoch != set.epoch {
				continue
			}
			if d.err != nil {
				return nil, d.err
			}
			results = append(results, d.results...)
		case <-set.stop:
			return nil, ErrPoolRebuilt
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("batch of %d jobs after %s: %w", len(jobs), p.cfg.BatchTimeout, ErrBatchTimeout)
		}
	}
	return results, nil
}

// Resize tears down the current workers and builds a fresh set of n. Any
// batch in flight is abandoned; its Submit returns ErrPoolRebuilt and any
// results it produced are discarded.
func (p *Pool) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	old := p.set
	close(old.stop)
	old.wg.Wait()

	p.set = p.spawn(n, old.epoch+1)
	return nil
}

// Size reports the current worker count.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.size
}

// Close stops all workers. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.set.stop)
	p.set.wg.Wait()
}

func splitJobs(jobs []model.MatchJob, workers int) [][]model.MatchJob {
	unit := (len(jobs) + workers - 1) / workers
	out := make([][]model.MatchJob, 0, workers)
	for start := 0; start < len(jobs); start += unit {
		end := start + unit
		if end > len(jobs) {
			end = len(jobs)
		}
		out = append(out, jobs[start:end])
	}
	return out
}
