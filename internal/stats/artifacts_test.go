package stats

import (
	"os"
	"path/filepath"
	"testing"

	"neuroarena/internal/model"
)

func testArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			PopulationSize: 20,
			Generations:    10,
			Hidden:         []int{16, 16},
			Workers:        4,
			Seed:           7,
			EliteCount:     2,
			Selection:      "mating_pool",
			MutationMode:   "adaptive",
		},
		BestByGeneration:      []float64{10, 20, 30},
		GenerationDiagnostics: []model.GenerationDiagnostics{{Generation: 1, BestFitness: 10}},
		FinalBestFitness:      30,
		TopGenomes:            []model.TopGenomeRecord{{Rank: 1, Fitness: 30, Genome: model.Genome{ID: "g1"}}},
	}
}

func TestWriteRunArtifactsCreatesFiles(t *testing.T) {
	baseDir := t.TempDir()

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-1"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"config.json", "fitness_history.json", "generation_diagnostics.json", "top_genomes.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("missing artifact %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%v err=%v", ok, err)
	}
	if cfg.PopulationSize != 20 || cfg.Selection != "mating_pool" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestRunIndexAppendsAndUpserts(t *testing.T) {
	baseDir := t.TempDir()

	first := RunIndexEntry{RunID: "run-1", FinalBestFitness: 10, CreatedAtUTC: "2026-08-01T00:00:00Z"}
	second := RunIndexEntry{RunID: "run-2", FinalBestFitness: 20, CreatedAtUTC: "2026-08-02T00:00:00Z"}
	if err := AppendRunIndex(baseDir, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := AppendRunIndex(baseDir, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got %+v", entries)
	}

	first.FinalBestFitness = 99
	if err := AppendRunIndex(baseDir, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("upsert must not duplicate, got %d entries", len(entries))
	}
	for _, entry := range entries {
		if entry.RunID == "run-1" && entry.FinalBestFitness != 99 {
			t.Fatalf("upsert did not replace entry: %+v", entry)
		}
	}
}

func TestListRunIndexEmptyDirectory(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v", entries)
	}
}

func TestExportRunArtifactsCopiesRunDirectory(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()

	if _, err := WriteRunArtifacts(baseDir, testArtifacts("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	dst, err := ExportRunArtifacts(baseDir, "run-1", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "fitness_history.json")); err != nil {
		t.Fatalf("missing exported file: %v", err)
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
