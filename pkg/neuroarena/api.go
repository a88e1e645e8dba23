package neuroarena

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"neuroarena/internal/evo"
	"neuroarena/internal/fitness"
	"neuroarena/internal/model"
	"neuroarena/internal/stats"
	"neuroarena/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "neuroarena.db"

	topGenomeCount = 5
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store

	artifactsDir string
	exportsDir   string

	// indexMu serializes run-index appends; concurrent Run calls share the
	// index file.
	indexMu sync.Mutex
}

type RunRequest struct {
	Scenario     string
	ScenarioPath string
	Population   int
	Generations  int
	Hidden       []int
	Workers      int
	Seed         int64
	EliteCount   int
	PoolFraction float64
	MatchTicks   int
	Selection    string
	MutationMode string
	MutationRate float64
	FitnessPath  string
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	Workers          int
	EliteCount       int
	FinalBestFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ImportGenomeRequest struct {
	Path   string
	Hidden []int
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopGenomesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.StoreKind == "" {
		opts.StoreKind = storage.DefaultStoreKind()
	}
	if opts.DBPath == "" {
		opts.DBPath = defaultDBPath
	}
	if opts.ArtifactsDir == "" {
		opts.ArtifactsDir = defaultArtifactsDir
	}
	if opts.ExportsDir == "" {
		opts.ExportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return &Client{
		store:        store,
		artifactsDir: opts.ArtifactsDir,
		exportsDir:   opts.ExportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.ScenarioPath != "" {
		scenario, err := LoadScenario(req.ScenarioPath)
		if err != nil {
			return RunSummary{}, err
		}
		req = scenario.apply(req)
	}
	if req.Scenario == "" {
		req.Scenario = "skirmish"
	}
	if req.Population <= 0 {
		req.Population = 32
	}
	if req.Generations <= 0 {
		req.Generations = 50
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if req.Selection == "" {
		req.Selection = "mating_pool"
	}
	if req.MutationMode == "" {
		req.MutationMode = "adaptive"
	}

	selector, err := selectorFromName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}
	mutation, err := mutationFromConfig(req.MutationMode, req.MutationRate)
	if err != nil {
		return RunSummary{}, err
	}

	fitnessCfg := fitness.DefaultConfig()
	if req.FitnessPath != "" {
		fitnessCfg, err = fitness.Load(req.FitnessPath)
		if err != nil {
			return RunSummary{}, err
		}
	}
	evaluator, err := fitness.NewEvaluator(fitnessCfg)
	if err != nil {
		return RunSummary{}, err
	}

	session, err := evo.NewTrainingSession(evo.Config{
		PopulationSize: req.Population,
		EliteCount:     req.EliteCount,
		PoolFraction:   req.PoolFraction,
		Hidden:         req.Hidden,
		Workers:        req.Workers,
		Seed:           req.Seed,
		MatchTicks:     req.MatchTicks,
		Evaluator:      evaluator,
		Mutation:       mutation,
		Selector:       selector,
	})
	if err != nil {
		return RunSummary{}, err
	}
	defer session.Close()

	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%d-%d", req.Scenario, req.Seed, now.Unix())

	result, err := session.RunGenerations(ctx, req.Generations)
	if err != nil {
		return RunSummary{}, err
	}

	finalBest := 0.0
	if len(result.BestByGeneration) > 0 {
		finalBest = result.BestByGeneration[len(result.BestByGeneration)-1]
	}

	top := topGenomes(result.TopFinal, topGenomeCount)
	if err := c.persistRun(ctx, runID, result, top); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			PopulationSize: req.Population,
			Generations:    req.Generations,
			Hidden:         append([]int(nil), req.Hidden...),
			Workers:        req.Workers,
			Seed:           req.Seed,
			EliteCount:     req.EliteCount,
			PoolFraction:   req.PoolFraction,
			MatchTicks:     req.MatchTicks,
			Selection:      req.Selection,
			MutationMode:   req.MutationMode,
			MutationRate:   req.MutationRate,
			FitnessConfig:  req.FitnessPath,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		FinalBestFitness:      finalBest,
		TopGenomes:            top,
	})
	if err != nil {
		return RunSummary{}, err
	}

	c.indexMu.Lock()
	err = stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		Seed:             req.Seed,
		Workers:          req.Workers,
		EliteCount:       req.EliteCount,
		FinalBestFitness: finalBest,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
	})
	c.indexMu.Unlock()
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: finalBest,
	}, nil
}

// persistRun writes every run output the store tracks: history, diagnostics,
// the ranked top genomes, each final genome, and the population snapshot.
func (c *Client) persistRun(ctx context.Context, runID string, result evo.RunResult, top []model.TopGenomeRecord) error {
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return err
	}
	if err := c.store.SaveTopGenomes(ctx, runID, top); err != nil {
		return err
	}

	genomeIDs := make([]string, 0, len(result.Final))
	generation := 0
	for _, genome := range result.Final {
		genome.VersionedRecord = currentVersion()
		if err := c.store.SaveGenome(ctx, genome); err != nil {
			return err
		}
		genomeIDs = append(genomeIDs, genome.ID)
		generation = genome.Generation
	}
	return c.store.SavePopulation(ctx, model.Population{
		VersionedRecord: currentVersion(),
		ID:              runID,
		GenomeIDs:       genomeIDs,
		Generation:      generation,
	})
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			Workers:          e.Workers,
			EliteCount:       e.EliteCount,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// ExportGenome writes the champion of a run as an interchange file under the
// exports directory.
func (c *Client) ExportGenome(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok || len(top) == 0 {
		return ExportSummary{}, fmt.Errorf("top genomes not found for run id: %s", runID)
	}

	path, err := stats.ExportGenome(req.OutDir, top[0].Genome)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(path)}, nil
}

// ImportGenome validates an interchange file and stores the genome for later
// exhibition matches or seeding.
func (c *Client) ImportGenome(ctx context.Context, req ImportGenomeRequest) (model.Genome, error) {
	if req.Path == "" {
		return model.Genome{}, errors.New("import requires a file path")
	}
	genome, err := stats.ImportGenome(req.Path, req.Hidden)
	if err != nil {
		return model.Genome{}, err
	}
	genome.VersionedRecord = currentVersion()
	if err := c.store.SaveGenome(ctx, genome); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("fitness history requires run id or latest")
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("diagnostics requires run id or latest")
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopGenomes(ctx context.Context, req TopGenomesRequest) ([]model.TopGenomeRecord, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("top genomes requires run id or latest")
	}

	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopGenomeRecord, len(top))
	copy(out, top)
	return out, nil
}

func selectorFromName(name string) (evo.Selector, error) {
	switch name {
	case "mating_pool":
		return evo.MatingPoolSelector{}, nil
	case "tournament":
		return evo.TournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy: %s", name)
	}
}

func mutationFromConfig(mode string, rate float64) (*evo.MutationController, error) {
	switch mode {
	case "adaptive":
		if rate > 0 {
			return evo.NewAdaptiveMutation(rate, rate*0.1, 0.97)
		}
		return evo.DefaultMutation(), nil
	case "fixed":
		if rate <= 0 {
			return nil, errors.New("fixed mutation requires a rate > 0")
		}
		return evo.NewFixedMutation(rate)
	default:
		return nil, fmt.Errorf("unknown mutation mode: %s", mode)
	}
}

// topGenomes assumes genomes arrive ranked best-first, as RunGenerations
// leaves them.
func topGenomes(ranked []model.Genome, n int) []model.TopGenomeRecord {
	if n > len(ranked) {
		n = len(ranked)
	}
	top := make([]model.TopGenomeRecord, 0, n)
	for i := 0; i < n; i++ {
		genome := ranked[i]
		genome.VersionedRecord = currentVersion()
		top = append(top, model.TopGenomeRecord{Rank: i + 1, Fitness: genome.Fitness, Genome: genome})
	}
	return top
}

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}
