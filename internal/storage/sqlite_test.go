//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"neuroarena/internal/model"
)

func TestSQLiteStoreGenomeAndPopulationRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "neuroarena.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	genome := testGenome("g1")
	genome.Network.Weights = [][][]float64{{{0.25}}}
	if err := store.SaveGenome(ctx, genome); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	gotGenome, ok, err := store.GetGenome(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("get genome: ok=%v err=%v", ok, err)
	}
	if gotGenome.Network.Weights[0][0][0] != 0.25 {
		t.Fatalf("unexpected genome: %+v", gotGenome)
	}

	population := model.Population{
		VersionedRecord: versioned(),
		ID:              "run-1",
		GenomeIDs:       []string{"g1"},
		Generation:      3,
	}
	if err := store.SavePopulation(ctx, population); err != nil {
		t.Fatalf("save population: %v", err)
	}
	gotPopulation, ok, err := store.GetPopulation(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%v err=%v", ok, err)
	}
	if gotPopulation.Generation != 3 {
		t.Fatalf("unexpected population: %+v", gotPopulation)
	}
}

func TestSQLiteStoreRunHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "neuroarena.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.SaveFitnessHistory(ctx, "run-1", []float64{1, 2}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 2 {
		t.Fatalf("get history: %v ok=%v err=%v", history, ok, err)
	}

	diags := []model.GenerationDiagnostics{{Generation: 1, BestFitness: 5}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diags); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiags, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || gotDiags[0].BestFitness != 5 {
		t.Fatalf("get diagnostics: %v ok=%v err=%v", gotDiags, ok, err)
	}

	top := []model.TopGenomeRecord{{Rank: 1, Fitness: 5, Genome: testGenome("g1")}}
	if err := store.SaveTopGenomes(ctx, "run-1", top); err != nil {
		t.Fatalf("save top genomes: %v", err)
	}
	gotTop, ok, err := store.GetTopGenomes(ctx, "run-1")
	if err != nil || !ok || gotTop[0].Genome.ID != "g1" {
		t.Fatalf("get top genomes: %v ok=%v err=%v", gotTop, ok, err)
	}

	if _, ok, err := store.GetFitnessHistory(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}
