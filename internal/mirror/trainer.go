// Package mirror fits an opponent-imitation network online from observed
// state/action pairs. Training runs off the tick path; the tick loop only
// ever appends observations and reads the latest published network.
package mirror

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"neuroarena/internal/arena"
	"neuroarena/internal/model"
	"neuroarena/internal/nn"
)

const (
	softActive   = 0.9
	softInactive = 0.1
)

type Config struct {
	Seed         model.Network
	BufferSize   int
	Cadence      int
	MinSamples   int
	Decay        float64
	LearningRate float64
	Epochs       int
}

type observation struct {
	inputs []float64
	action arena.ActionFlags
}

// Trainer accumulates a bounded time-ordered observation buffer and retrains
// the mirror network every Cadence ticks. At most one training pass runs at a
// time; the result is published with an atomic swap.
type Trainer struct {
	cfg Config

	current  atomic.Pointer[model.Network]
	training atomic.Bool

	mu     sync.Mutex
	buffer []observation
	ticks  int

	done sync.WaitGroup
}

func NewTrainer(cfg Config) (*Trainer, error) {
	if err := nn.Validate(cfg.Seed); err != nil {
		return nil, fmt.Errorf("seed network: %w", err)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 240
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = 60
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 30
	}
	if cfg.MinSamples > cfg.BufferSize {
		return nil, fmt.Errorf("min samples %d exceeds buffer size %d", cfg.MinSamples, cfg.BufferSize)
	}
	if cfg.Decay <= 0 || cfg.Decay > 1 || math.IsNaN(cfg.Decay) {
		cfg.Decay = 0.95
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.05
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 3
	}

	t := &Trainer{cfg: cfg}
	seed := nn.Clone(cfg.Seed)
	t.current.Store(&seed)
	return t, nil
}

// Observe appends one state/action pair, evicting the oldest entry once the
// buffer is full. Never blocks on training.
func (t *Trainer) Observe(inputs []float64, action arena.ActionFlags) error {
	if len(inputs) != model.InputCount {
		return fmt.Errorf("observation length mismatch: got %d, want %d", len(inputs), model.InputCount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer = append(t.buffer, observation{
		inputs: append([]float64(nil), inputs...),
		action: action,
	})
	if len(t.buffer) > t.cfg.BufferSize {
		t.buffer = t.buffer[1:]
	}
	return nil
}

// Tick advances the cadence counter and kicks off a background training pass
// when one is due, the buffer holds enough samples, and no pass is already
// running. It returns immediately in every case.
func (t *Trainer) Tick() {
	t.mu.Lock()
	t.ticks++
	due := t.ticks%t.cfg.Cadence == 0
	enough := len(t.buffer) >= t.cfg.MinSamples
	var snapshot []observation
	if due && enough {
		snapshot = make([]observation, len(t.buffer))
		copy(snapshot, t.buffer)
	}
	t.mu.Unlock()

	if snapshot == nil {
		return
	}
	if !t.training.CompareAndSwap(false, true) {
		return
	}

	t.done.Add(1)
	go func() {
		defer t.done.Done()
		defer t.training.Store(false)
		t.train(snapshot)
	}()
}

// Current returns the latest published mirror network. The returned value
// must be treated as read-only.
func (t *Trainer) Current() model.Network {
	return *t.current.Load()
}

// TrainingInFlight reports whether a background pass is currently running.
func (t *Trainer) TrainingInFlight() bool {
	return t.training.Load()
}

// Wait blocks until any in-flight training pass has completed.
func (t *Trainer) Wait() {
	t.done.Wait()
}

func (t *Trainer) train(snapshot []observation) {
	samples := buildSamples(snapshot, t.cfg.Decay)
	trained, err := nn.TrainBatch(t.Current(), samples, t.cfg.LearningRate, t.cfg.Epochs)
	if err != nil {
		return
	}
	t.current.Store(&trained)
}

// buildSamples converts boolean action observations into soft targets and
// assigns exponentially decaying recency weights, normalized to sum to one.
// The newest sample carries the largest weight.
func buildSamples(snapshot []observation, decay float64) []model.TrainingSample {
	n := len(snapshot)
	samples := make([]model.TrainingSample, 0, n)
	total := 0.0
	for i, obs := range snapshot {
		targets := make([]float64, 0, model.OutputCount)
		for _, v := range obs.action.Vector() {
			if v > 0.5 {
				targets = append(targets, softActive)
			} else {
				targets = append(targets, softInactive)
			}
		}
		weight := math.Pow(decay, float64(n-1-i))
		total += weight
		samples = append(samples, model.TrainingSample{
			Inputs:  obs.inputs,
			Targets: targets,
			Weight:  weight,
		})
	}
	for i := range samples {
		samples[i].Weight /= total
	}
	return samples
}
