package neuroarena

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()

	client, err := New(context.Background(), Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "artifacts"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func smallRunRequest() RunRequest {
	return RunRequest{
		Scenario:    "smoke",
		Population:  8,
		Generations: 2,
		Hidden:      []int{6},
		Workers:     2,
		Seed:        42,
		MatchTicks:  120,
	}
}

func TestClientRunRunsAndExport(t *testing.T) {
	client, _ := newTestClient(t)

	summary, err := client.Run(context.Background(), smallRunRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if !strings.HasPrefix(summary.RunID, "smoke-42-") {
		t.Fatalf("unexpected run id: %s", summary.RunID)
	}
	if len(summary.BestByGeneration) != 2 {
		t.Fatalf("unexpected generation history length: %d", len(summary.BestByGeneration))
	}
	if summary.FinalBestFitness != summary.BestByGeneration[1] {
		t.Fatalf("final best %g does not match last generation %g", summary.FinalBestFitness, summary.BestByGeneration[1])
	}

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) == 0 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected latest run %s in runs list: %+v", summary.RunID, runs)
	}

	history, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{RunID: summary.RunID, Limit: 10})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("unexpected fitness history length: %d", len(history))
	}
	diagnostics, err := client.Diagnostics(context.Background(), DiagnosticsRequest{Latest: true, Limit: 10})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 2 {
		t.Fatalf("unexpected diagnostics length: %d", len(diagnostics))
	}
	top, err := client.TopGenomes(context.Background(), TopGenomesRequest{RunID: summary.RunID, Limit: 10})
	if err != nil {
		t.Fatalf("top genomes: %v", err)
	}
	if len(top) != 5 {
		t.Fatalf("unexpected top genome count: %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Fitness > top[i-1].Fitness {
			t.Fatalf("top genomes not ranked: %g before %g", top[i-1].Fitness, top[i].Fitness)
		}
		if top[i].Rank != i+1 {
			t.Fatalf("unexpected rank at %d: %d", i, top[i].Rank)
		}
	}

	exported, err := client.Export(context.Background(), ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported run mismatch: got=%s want=%s", exported.RunID, summary.RunID)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestClientGenomeExportImportRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)

	summary, err := client.Run(context.Background(), smallRunRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	exported, err := client.ExportGenome(context.Background(), ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("export genome: %v", err)
	}

	genome, err := client.ImportGenome(context.Background(), ImportGenomeRequest{Path: exported.Directory, Hidden: []int{6}})
	if err != nil {
		t.Fatalf("import genome: %v", err)
	}
	if genome.ID == "" {
		t.Fatal("expected imported genome id")
	}

	stored, ok, err := client.store.GetGenome(context.Background(), genome.ID)
	if err != nil {
		t.Fatalf("get genome: %v", err)
	}
	if !ok {
		t.Fatal("imported genome not stored")
	}
	if stored.Fitness != genome.Fitness {
		t.Fatalf("stored fitness mismatch: got=%g want=%g", stored.Fitness, genome.Fitness)
	}

	if _, err := client.ImportGenome(context.Background(), ImportGenomeRequest{Path: exported.Directory, Hidden: []int{16, 16}}); err == nil {
		t.Fatal("expected architecture mismatch rejection")
	}
}

func TestClientRunPersistsPopulationSnapshot(t *testing.T) {
	client, _ := newTestClient(t)

	summary, err := client.Run(context.Background(), smallRunRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	population, ok, err := client.store.GetPopulation(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("get population: %v", err)
	}
	if !ok {
		t.Fatal("population snapshot not stored")
	}
	if len(population.GenomeIDs) != 8 {
		t.Fatalf("unexpected snapshot size: %d", len(population.GenomeIDs))
	}
	for _, id := range population.GenomeIDs {
		if _, ok, err := client.store.GetGenome(context.Background(), id); err != nil || !ok {
			t.Fatalf("snapshot genome %s not stored (ok=%v err=%v)", id, ok, err)
		}
	}
}

func TestClientRunFromScenarioFile(t *testing.T) {
	client, base := newTestClient(t)

	scenarioPath := filepath.Join(base, "scenario.yaml")
	scenario := `name: brawl
population: 8
generations: 1
hidden: [6]
workers: 2
seed: 7
match_ticks: 120
selection: tournament
mutation:
  mode: fixed
  rate: 0.3
`
	if err := os.WriteFile(scenarioPath, []byte(scenario), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	summary, err := client.Run(context.Background(), RunRequest{ScenarioPath: scenarioPath})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(summary.RunID, "brawl-7-") {
		t.Fatalf("unexpected run id: %s", summary.RunID)
	}
	if len(summary.BestByGeneration) != 1 {
		t.Fatalf("unexpected generation history length: %d", len(summary.BestByGeneration))
	}
}

func TestClientRunRejectsUnknownStrategies(t *testing.T) {
	client, _ := newTestClient(t)

	req := smallRunRequest()
	req.Selection = "roulette"
	if _, err := client.Run(context.Background(), req); err == nil {
		t.Fatal("expected unknown selection rejection")
	}

	req = smallRunRequest()
	req.MutationMode = "annealed"
	if _, err := client.Run(context.Background(), req); err == nil {
		t.Fatal("expected unknown mutation mode rejection")
	}

	req = smallRunRequest()
	req.MutationMode = "fixed"
	req.MutationRate = 0
	if _, err := client.Run(context.Background(), req); err == nil {
		t.Fatal("expected fixed mutation without rate rejection")
	}
}

func TestClientExportValidation(t *testing.T) {
	client, _ := newTestClient(t)

	if _, err := client.Export(context.Background(), ExportRequest{}); err == nil {
		t.Fatal("expected export without target rejection")
	}
	if _, err := client.Export(context.Background(), ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected ambiguous export rejection")
	}
	if _, err := client.Export(context.Background(), ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected export with no runs rejection")
	}
}

func TestClientQueriesRequireRunTarget(t *testing.T) {
	client, _ := newTestClient(t)

	if _, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{}); err == nil {
		t.Fatal("expected fitness history without target rejection")
	}
	if _, err := client.Diagnostics(context.Background(), DiagnosticsRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected diagnostics for unknown run rejection")
	}
	if _, err := client.TopGenomes(context.Background(), TopGenomesRequest{Limit: -1}); err == nil {
		t.Fatal("expected negative limit rejection")
	}
}
