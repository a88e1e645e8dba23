package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"neuroarena/internal/fitness"
	"neuroarena/internal/model"
	"neuroarena/internal/nn"
)

func testEvaluator(t *testing.T) *fitness.Evaluator {
	t.Helper()
	eval, err := fitness.NewEvaluator(fitness.DefaultConfig())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return eval
}

func testJobs(t *testing.T, count int) []model.MatchJob {
	t.Helper()
	arch := model.Architecture{Inputs: model.InputCount, Hidden: []int{8}, Outputs: model.OutputCount}
	rng := rand.New(rand.NewSource(42))
	jobs := make([]model.MatchJob, 0, count)
	for i := 0; i < count; i++ {
		net1, err := nn.NewRandom(arch, rng)
		if err != nil {
			t.Fatalf("new random: %v", err)
		}
		net2, err := nn.NewRandom(arch, rng)
		if err != nil {
			t.Fatalf("new random: %v", err)
		}
		jobs = append(jobs, model.MatchJob{
			JobID:   i,
			Genome1: model.Genome{ID: "a", Network: net1},
			Genome2: model.Genome{ID: "b", Network: net2},
			Spawn1X: 250,
			Spawn2X: 550,
		})
	}
	return jobs
}

func TestNewPoolValidation(t *testing.T) {
	if _, err := NewPool(Config{Workers: 0, Evaluator: testEvaluator(t)}); err == nil {
		t.Fatal("expected error for zero workers")
	}
	if _, err := NewPool(Config{Workers: 2}); err == nil {
		t.Fatal("expected error for missing evaluator")
	}
}

func TestSubmitCompletesBatchWithJobIDCorrelation(t *testing.T) {
	pool, err := NewPool(Config{Workers: 3, Evaluator: testEvaluator(t), MatchTicks: 120})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	jobs := testJobs(t, 10)
	results, err := pool.Submit(context.Background(), jobs)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}

	seen := make(map[int]bool, len(results))
	for _, res := range results {
		if seen[res.JobID] {
			t.Fatalf("duplicate result for job %d", res.JobID)
		}
		seen[res.JobID] = true
	}
	for _, job := range jobs {
		if !seen[job.JobID] {
			t.Fatalf("missing result for job %d", job.JobID)
		}
	}
}

func TestSubmitEmptyBatch(t *testing.T) {
	pool, err := NewPool(Config{Workers: 2, Evaluator: testEvaluator(t), MatchTicks: 60})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	results, err := pool.Submit(context.Background(), nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSubmitRejectsSecondBatchInFlight(t *testing.T) {
	pool, err := NewPool(Config{Workers: 1, Evaluator: testEvaluator(t), MatchTicks: 60})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	pool.mu.Lock()
	pool.inFlight = true
	pool.mu.Unlock()

	if _, err := pool.Submit(context.Background(), testJobs(t, 2)); !errors.Is(err, ErrBatchInFlight) {
		t.Fatalf("expected ErrBatchInFlight, got %v", err)
	}

	pool.mu.Lock()
	pool.inFlight = false
	pool.mu.Unlock()
}

func TestSubmitHonorsBatchTimeout(t *testing.T) {
	pool, err := NewPool(Config{
		Workers:      1,
		Evaluator:    testEvaluator(t),
		BatchTimeout: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Submit(context.Background(), testJobs(t, 64)); !errors.Is(err, ErrBatchTimeout) {
		t.Fatalf("expected ErrBatchTimeout, got %v", err)
	}
}

func TestSubmitHonorsContextCancellation(t *testing.T) {
	pool, err := NewPool(Config{Workers: 1, Evaluator: testEvaluator(t)})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Submit(ctx, testJobs(t, 8)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResizeRebuildsWorkersAndAbandonsBatch(t *testing.T) {
	pool, err := NewPool(Config{Workers: 1, Evaluator: testEvaluator(t)})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	jobs := testJobs(t, 400)
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Submit(context.Background(), jobs)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := pool.Resize(4); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got := pool.Size(); got != 4 {
		t.Fatalf("size=%d, want 4", got)
	}

	if err := <-errCh; !errors.Is(err, ErrPoolRebuilt) {
		t.Fatalf("expected ErrPoolRebuilt, got %v", err)
	}

	// The rebuilt pool accepts fresh work.
	results, err := pool.Submit(context.Background(), testJobs(t, 8))
	if err != nil {
		t.Fatalf("submit after resize: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("got %d results, want 8", len(results))
	}
}

func TestClosedPoolRejectsWork(t *testing.T) {
	pool, err := NewPool(Config{Workers: 2, Evaluator: testEvaluator(t)})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Close()
	pool.Close() // idempotent

	if _, err := pool.Submit(context.Background(), testJobs(t, 2)); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if err := pool.Resize(3); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}
