package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"neuroarena/internal/arena"
	"neuroarena/internal/fitness"
	"neuroarena/internal/stats"
	"neuroarena/internal/storage"
	arenaapi "neuroarena/pkg/neuroarena"
)

const (
	artifactsDir = "artifacts"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "export-genome":
		return runExportGenome(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	case "fight":
		return runFight(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type runFlags struct {
	scenarioPath *string
	scenario     *string
	population   *int
	generations  *int
	hidden       *string
	workers      *int
	seed         *int64
	eliteCount   *int
	poolFraction *float64
	matchTicks   *int
	selection    *string
	mutationMode *string
	mutationRate *float64
	fitnessPath  *string
	storeKind    *string
	dbPath       *string
}

func registerRunFlags(fs *flag.FlagSet) runFlags {
	return runFlags{
		scenarioPath: fs.String("scenario", "", "optional scenario YAML path"),
		scenario:     fs.String("name", "", "scenario name used in the run id"),
		population:   fs.Int("pop", 0, "population size"),
		generations:  fs.Int("gens", 0, "generation count"),
		hidden:       fs.String("hidden", "", "comma-separated hidden layer widths, e.g. 16,16"),
		workers:      fs.Int("workers", 0, "execution unit count"),
		seed:         fs.Int64("seed", 0, "rng seed (0 picks a time-based seed)"),
		eliteCount:   fs.Int("elites", 0, "elites carried per generation"),
		poolFraction: fs.Float64("pool-fraction", 0, "mating pool fraction of the ranked population"),
		matchTicks:   fs.Int("ticks", 0, "match length in simulation ticks"),
		selection:    fs.String("selection", "", "selection strategy: mating_pool|tournament"),
		mutationMode: fs.String("mutation-mode", "", "mutation mode: adaptive|fixed"),
		mutationRate: fs.Float64("mutation-rate", 0, "mutation rate (fixed mode) or initial rate (adaptive)"),
		fitnessPath:  fs.String("fitness", "", "fitness coefficient INI path"),
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "neuroarena.db", "sqlite database path"),
	}
}

func (f runFlags) request() (arenaapi.RunRequest, error) {
	hidden, err := parseHidden(*f.hidden)
	if err != nil {
		return arenaapi.RunRequest{}, err
	}
	return arenaapi.RunRequest{
		Scenario:     *f.scenario,
		ScenarioPath: *f.scenarioPath,
		Population:   *f.population,
		Generations:  *f.generations,
		Hidden:       hidden,
		Workers:      *f.workers,
		Seed:         *f.seed,
		EliteCount:   *f.eliteCount,
		PoolFraction: *f.poolFraction,
		MatchTicks:   *f.matchTicks,
		Selection:    *f.selection,
		MutationMode: *f.mutationMode,
		MutationRate: *f.mutationRate,
		FitnessPath:  *f.fitnessPath,
	}, nil
}

func (f runFlags) client(ctx context.Context) (*arenaapi.Client, error) {
	return arenaapi.New(ctx, arenaapi.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	flags := registerRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := flags.request()
	if err != nil {
		return err
	}
	client, err := flags.client(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	fmt.Printf("final_best_fitness=%.6f\n", summary.FinalBestFitness)
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	flags := registerRunFlags(fs)
	seeds := fs.Int("seeds", 5, "number of seeds to evaluate")
	concurrency := fs.Int("concurrency", 2, "seeds trained at once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seeds <= 0 {
		return errors.New("seeds must be > 0")
	}
	if *concurrency <= 0 {
		return errors.New("concurrency must be > 0")
	}

	base, err := flags.request()
	if err != nil {
		return err
	}
	if base.Seed == 0 {
		base.Seed = 1
	}
	client, err := flags.client(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var mu sync.Mutex
	finals := make([]float64, 0, *seeds)
	var firstErr error

	p := pool.New().WithMaxGoroutines(*concurrency)
	for i := 0; i < *seeds; i++ {
		req := base
		req.Seed = base.Seed + int64(i)
		p.Go(func() {
			summary, err := client.Run(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("seed %d: %w", req.Seed, err)
				}
				return
			}
			finals = append(finals, summary.FinalBestFitness)
			fmt.Printf("seed=%d run_id=%s final_best_fitness=%.6f\n", req.Seed, summary.RunID, summary.FinalBestFitness)
		})
	}
	p.Wait()
	if firstErr != nil {
		return firstErr
	}

	mean, std, max, min := bestSeriesStats(finals)
	fmt.Printf("seeds=%d mean=%.6f std=%.6f max=%.6f min=%.6f\n", len(finals), mean, std, max, min)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		fmt.Printf("run_id=%s created=%s seed=%d pop=%d gens=%d workers=%d elites=%d final_best_fitness=%.6f\n",
			e.RunID, e.CreatedAtUTC, e.Seed, e.PopulationSize, e.Generations, e.Workers, e.EliteCount, e.FinalBestFitness)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	configPath := fs.String("check-config", "", "validate a fitness coefficient INI file and exit")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "neuroarena.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *configPath != "" {
		cfg, err := fitness.Load(*configPath)
		if err != nil {
			return err
		}
		fmt.Printf("fitness config ok: damage_multiplier=%g health_multiplier=%g knockout_bonus=%g\n",
			cfg.DamageMultiplier, cfg.HealthMultiplier, cfg.KnockoutBonus)
		return nil
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("fitness requires --run-id, --latest, or --check-config")
	}

	client, err := arenaapi.New(ctx, arenaapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, arenaapi.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}
	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "neuroarena.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("diagnostics requires --run-id or --latest")
	}

	client, err := arenaapi.New(ctx, arenaapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, arenaapi.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f mutation_rate=%.4f stale=%d\n",
			d.Generation, d.BestFitness, d.MeanFitness, d.MinFitness, d.MutationRate, d.StaleGenerations)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show top genomes for the most recent run")
	limit := fs.Int("limit", 5, "max genomes to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "neuroarena.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("top requires --run-id or --latest")
	}

	client, err := arenaapi.New(ctx, arenaapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopGenomes(ctx, arenaapi.TopGenomesRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top genomes")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(top)
	}
	for _, record := range top {
		fmt.Printf("rank=%d genome_id=%s fitness=%.6f matches_won=%d generation=%d\n",
			record.Rank, record.Genome.ID, record.Fitness, record.Genome.MatchesWon, record.Genome.Generation)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := arenaapi.New(ctx, arenaapi.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, arenaapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runExportGenome(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-genome", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the champion of the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "neuroarena.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := arenaapi.New(ctx, arenaapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.ExportGenome(ctx, arenaapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported champion of run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "genome interchange file path")
	hidden := fs.String("hidden", "", "expected hidden layer widths, e.g. 16,16 (empty skips the shape check)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "neuroarena.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("import requires --file")
	}
	hiddenShape, err := parseHidden(*hidden)
	if err != nil {
		return err
	}

	client, err := arenaapi.New(ctx, arenaapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	genome, err := client.ImportGenome(ctx, arenaapi.ImportGenomeRequest{Path: *path, Hidden: hiddenShape})
	if err != nil {
		return err
	}
	fmt.Printf("imported genome_id=%s fitness=%.6f generation=%d\n", genome.ID, genome.Fitness, genome.Generation)
	return nil
}

func runFight(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("fight", flag.ContinueOnError)
	pathA := fs.String("a", "", "genome interchange file for side 1")
	pathB := fs.String("b", "", "genome interchange file for side 2")
	ticks := fs.Int("ticks", arena.DefaultMatchTicks, "match length in simulation ticks")
	fitnessPath := fs.String("fitness", "", "fitness coefficient INI path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pathA == "" || *pathB == "" {
		return errors.New("fight requires --a and --b")
	}

	genomeA, err := stats.ImportGenome(*pathA, nil)
	if err != nil {
		return fmt.Errorf("side 1: %w", err)
	}
	genomeB, err := stats.ImportGenome(*pathB, nil)
	if err != nil {
		return fmt.Errorf("side 2: %w", err)
	}

	cfg := fitness.DefaultConfig()
	if *fitnessPath != "" {
		cfg, err = fitness.Load(*fitnessPath)
		if err != nil {
			return err
		}
	}
	evaluator, err := fitness.NewEvaluator(cfg)
	if err != nil {
		return err
	}

	match, err := arena.NewMatch(arena.MatchConfig{
		Source1:   arena.NetworkAgent{Network: genomeA.Network},
		Source2:   arena.NetworkAgent{Network: genomeB.Network},
		Spawn1X:   arena.ArenaWidth * 0.25,
		Spawn2X:   arena.ArenaWidth * 0.75,
		MaxTicks:  *ticks,
		Evaluator: evaluator,
	})
	if err != nil {
		return err
	}
	match.Run()

	summary := match.Summary()
	outcome := "timeout"
	if summary.Knockout {
		outcome = "knockout"
	}
	winner := "draw"
	switch summary.Winner {
	case 1:
		winner = filepath.Base(*pathA)
	case 2:
		winner = filepath.Base(*pathB)
	}
	fmt.Printf("outcome=%s winner=%s ticks=%d\n", outcome, winner, match.Tick())
	fmt.Printf("side1=%s health=%.1f damage_dealt=%.1f\n", genomeA.ID, summary.Health1, summary.DamageDealt1)
	fmt.Printf("side2=%s health=%.1f damage_dealt=%.1f\n", genomeB.ID, summary.Health2, summary.DamageDealt2)
	return nil
}

func bestSeriesStats(values []float64) (mean, std, max, min float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	min = values[0]
	max = values[0]
	total := 0.0
	for _, value := range values {
		total += value
		if value > max {
			max = value
		}
		if value < min {
			min = value
		}
	}
	mean = total / float64(len(values))
	sumSq := 0.0
	for _, value := range values {
		diff := mean - value
		sumSq += diff * diff
	}
	std = math.Sqrt(sumSq / float64(len(values)))
	return mean, std, max, min
}

func parseHidden(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	hidden := make([]int, 0, len(parts))
	for _, part := range parts {
		width, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid hidden layer width %q", part)
		}
		hidden = append(hidden, width)
	}
	return hidden, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: arenactl <run|benchmark|runs|fitness|diagnostics|top|export|export-genome|import|fight> [flags]", msg)
}
