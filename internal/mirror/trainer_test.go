package mirror

import (
	"math"
	"math/rand"
	"testing"

	"neuroarena/internal/arena"
	"neuroarena/internal/model"
	"neuroarena/internal/nn"
)

func seedNetwork(t *testing.T) model.Network {
	t.Helper()
	arch := model.Architecture{Inputs: model.InputCount, Hidden: []int{8}, Outputs: model.OutputCount}
	net, err := nn.NewRandom(arch, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("new random: %v", err)
	}
	return net
}

func observationInputs(i int) []float64 {
	inputs := make([]float64, model.InputCount)
	for j := range inputs {
		inputs[j] = float64(i+j) / 20
	}
	return inputs
}

func TestNewTrainerValidation(t *testing.T) {
	if _, err := NewTrainer(Config{}); err == nil {
		t.Fatal("expected error for invalid seed network")
	}
	if _, err := NewTrainer(Config{Seed: seedNetwork(t), BufferSize: 10, MinSamples: 20}); err == nil {
		t.Fatal("expected error for min samples above buffer size")
	}
}

func TestObserveRejectsWrongLengthAndBoundsBuffer(t *testing.T) {
	trainer, err := NewTrainer(Config{Seed: seedNetwork(t), BufferSize: 4, MinSamples: 2})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	if err := trainer.Observe([]float64{1, 2}, arena.ActionFlags{}); err == nil {
		t.Fatal("expected error for short observation")
	}

	for i := 0; i < 10; i++ {
		if err := trainer.Observe(observationInputs(i), arena.ActionFlags{}); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if len(trainer.buffer) != 4 {
		t.Fatalf("buffer length %d, want 4", len(trainer.buffer))
	}
	// Oldest entries evicted first.
	if trainer.buffer[0].inputs[0] != observationInputs(6)[0] {
		t.Fatalf("buffer did not evict oldest entries: %v", trainer.buffer[0].inputs[0])
	}
}

func TestBuildSamplesSoftTargetsAndRecencyWeights(t *testing.T) {
	snapshot := []observation{
		{inputs: observationInputs(0), action: arena.ActionFlags{Left: true}},
		{inputs: observationInputs(1), action: arena.ActionFlags{Block: true}},
		{inputs: observationInputs(2), action: arena.ActionFlags{}},
	}

	samples := buildSamples(snapshot, 0.5)
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}

	if samples[0].Targets[0] != softActive {
		t.Fatalf("active flag should map to %v, got %v", softActive, samples[0].Targets[0])
	}
	if samples[0].Targets[1] != softInactive {
		t.Fatalf("inactive flag should map to %v, got %v", softInactive, samples[0].Targets[1])
	}

	total := 0.0
	for _, s := range samples {
		total += s.Weight
	}
	if math.Abs(total-1) > 1e-12 {
		t.Fatalf("weights must sum to 1, got %v", total)
	}
	if !(samples[2].Weight > samples[1].Weight && samples[1].Weight > samples[0].Weight) {
		t.Fatalf("newest sample must carry the largest weight: %v %v %v",
			samples[0].Weight, samples[1].Weight, samples[2].Weight)
	}
	// Raw weights 0.25, 0.5, 1 normalize to 1/7, 2/7, 4/7.
	if math.Abs(samples[2].Weight-4.0/7.0) > 1e-12 {
		t.Fatalf("newest weight %v, want 4/7", samples[2].Weight)
	}
}

func TestTickTrainsOnCadenceAndPublishesNewNetwork(t *testing.T) {
	trainer, err := NewTrainer(Config{
		Seed:       seedNetwork(t),
		BufferSize: 32,
		Cadence:    5,
		MinSamples: 4,
	})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	for i := 0; i < 8; i++ {
		if err := trainer.Observe(observationInputs(i), arena.ActionFlags{AttackLight: i%2 == 0}); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}

	before := trainer.Current()
	for i := 0; i < 4; i++ {
		trainer.Tick()
	}
	trainer.Wait()
	if !networksEqual(before, trainer.Current()) {
		t.Fatal("training fired before the cadence boundary")
	}

	trainer.Tick() // fifth tick
	trainer.Wait()
	if networksEqual(before, trainer.Current()) {
		t.Fatal("expected a new network after the cadence boundary")
	}
}

func TestTickSkipsWhenBufferTooSmall(t *testing.T) {
	trainer, err := NewTrainer(Config{Seed: seedNetwork(t), Cadence: 2, MinSamples: 5})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Observe(observationInputs(0), arena.ActionFlags{}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	before := trainer.Current()
	for i := 0; i < 10; i++ {
		trainer.Tick()
	}
	trainer.Wait()
	if !networksEqual(before, trainer.Current()) {
		t.Fatal("training must not run below the minimum sample count")
	}
}

func TestTickLatchPreventsConcurrentPasses(t *testing.T) {
	trainer, err := NewTrainer(Config{Seed: seedNetwork(t), Cadence: 1, MinSamples: 1})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Observe(observationInputs(0), arena.ActionFlags{Block: true}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	trainer.training.Store(true)
	before := trainer.Current()
	trainer.Tick()
	trainer.Wait()
	if !networksEqual(before, trainer.Current()) {
		t.Fatal("a tick must not start a pass while one is in flight")
	}
	trainer.training.Store(false)
}

func TestSeedNetworkIsNotMutated(t *testing.T) {
	seed := seedNetwork(t)
	reference := nn.Clone(seed)

	trainer, err := NewTrainer(Config{Seed: seed, Cadence: 1, MinSamples: 1})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := trainer.Observe(observationInputs(i), arena.ActionFlags{Up: true}); err != nil {
			t.Fatalf("observe: %v", err)
		}
		trainer.Tick()
		trainer.Wait()
	}

	if !networksEqual(seed, reference) {
		t.Fatal("training mutated the caller's seed network")
	}
}

func networksEqual(a, b model.Network) bool {
	for l := range a.Weights {
		for from := range a.Weights[l] {
			for to := range a.Weights[l][from] {
				if a.Weights[l][from][to] != b.Weights[l][from][to] {
					return false
				}
			}
		}
	}
	for l := range a.Biases {
		for to := range a.Biases[l] {
			if a.Biases[l][to] != b.Biases[l][to] {
				return false
			}
		}
	}
	return true
}
