package evo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"neuroarena/internal/arena"
	"neuroarena/internal/dispatch"
	"neuroarena/internal/fitness"
	"neuroarena/internal/model"
	"neuroarena/internal/nn"
)

// spawnJitter bounds the random offset applied to each side's base spawn
// position so genomes never overfit to an exact starting distance.
const spawnJitter = 40.0

// Dispatcher runs a batch of match jobs to completion. Satisfied by
// dispatch.Pool.
type Dispatcher interface {
	Submit(ctx context.Context, jobs []model.MatchJob) ([]model.MatchResult, error)
}

type Config struct {
	PopulationSize int
	EliteCount     int
	PoolFraction   float64
	Hidden         []int
	Workers        int
	Seed           int64
	MatchTicks     int
	BatchTimeout   time.Duration
	Evaluator      *fitness.Evaluator
	Mutation       *MutationController
	Selector       Selector

	// Dispatcher overrides the session-owned worker pool, for embedding.
	Dispatcher Dispatcher
}

type RunResult struct {
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics

	// TopFinal is the last scored generation, ranked best first. Final is the
	// bred successor population with fresh counters.
	TopFinal []model.Genome
	Final    []model.Genome
}

// TrainingSession owns one evolving population and its worker pool. It is not
// safe for concurrent use; one goroutine drives RunGenerations at a time.
type TrainingSession struct {
	cfg        Config
	rng        *rand.Rand
	dispatcher Dispatcher
	ownedPool  *dispatch.Pool

	population []model.Genome
	generation int
	cycle      uint64

	bestHistory []float64
	diagnostics []model.GenerationDiagnostics
	lastRanked  []model.Genome
}

func NewTrainingSession(cfg Config) (*TrainingSession, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.PopulationSize < 4 {
		return nil, fmt.Errorf("population size must be >= 4, got %d", cfg.PopulationSize)
	}
	if cfg.EliteCount == 0 {
		cfg.EliteCount = 2
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size], got %d", cfg.EliteCount)
	}
	if cfg.PoolFraction == 0 {
		cfg.PoolFraction = 0.25
	}
	if cfg.PoolFraction < 0 || cfg.PoolFraction > 1 {
		return nil, fmt.Errorf("pool fraction must be in (0,1], got %v", cfg.PoolFraction)
	}
	if len(cfg.Hidden) == 0 {
		cfg.Hidden = []int{16, 16}
	}
	arch := model.Architecture{Inputs: model.InputCount, Hidden: cfg.Hidden, Outputs: model.OutputCount}
	if err := nn.ValidateArchitecture(arch); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MatchTicks <= 0 {
		cfg.MatchTicks = arena.DefaultMatchTicks
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Mutation == nil {
		cfg.Mutation = DefaultMutation()
	}
	if cfg.Selector == nil {
		cfg.Selector = MatingPoolSelector{}
	}

	s := &TrainingSession{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	if cfg.Dispatcher != nil {
		s.dispatcher = cfg.Dispatcher
	} else {
		pool, err := dispatch.NewPool(dispatch.Config{
			Workers:      cfg.Workers,
			Evaluator:    cfg.Evaluator,
			MatchTicks:   cfg.MatchTicks,
			BatchTimeout: cfg.BatchTimeout,
		})
		if err != nil {
			return nil, err
		}
		s.ownedPool = pool
		s.dispatcher = pool
	}

	population := make([]model.Genome, 0, cfg.PopulationSize)
	for i := 0; i < cfg.PopulationSize; i++ {
		net, err := nn.NewRandom(arch, s.rng)
		if err != nil {
			s.Close()
			return nil, err
		}
		population = append(population, model.Genome{ID: uuid.NewString(), Network: net})
	}
	s.population = population
	return s, nil
}

// RunGenerations advances the population by n full generation cycles.
func (s *TrainingSession) RunGenerations(ctx context.Context, n int) (RunResult, error) {
	if n <= 0 {
		return RunResult{}, fmt.Errorf("generation count must be > 0, got %d", n)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		if err := s.runGeneration(ctx); err != nil {
			return RunResult{}, err
		}
	}
	topFinal := make([]model.Genome, 0, len(s.lastRanked))
	for _, g := range s.lastRanked {
		topFinal = append(topFinal, cloneGenome(g))
	}
	return RunResult{
		BestByGeneration: append([]float64(nil), s.bestHistory...),
		Diagnostics:      append([]model.GenerationDiagnostics(nil), s.diagnostics...),
		TopFinal:         topFinal,
		Final:            s.Population(),
	}, nil
}

func (s *TrainingSession) runGeneration(ctx context.Context) error {
	s.cycle++
	cycle := s.cycle

	jobs, opponents := s.pairJobs()
	results, err := s.dispatcher.Submit(ctx, jobs)
	if err != nil {
		return fmt.Errorf("generation %d: %w", s.generation, err)
	}
	if cycle != s.cycle {
		// The pool was rebuilt under this batch; its results are stale.
		return fmt.Errorf("generation %d: training cycle superseded", s.generation)
	}
	if len(results) != len(jobs) {
		return fmt.Errorf("generation %d: got %d results for %d jobs", s.generation, len(results), len(jobs))
	}

	if err := s.applyResults(results, opponents); err != nil {
		return err
	}

	sort.SliceStable(s.population, func(i, j int) bool {
		return s.population[i].Fitness > s.population[j].Fitness
	})

	s.recordDiagnostics()

	s.lastRanked = s.lastRanked[:0]
	for _, g := range s.population {
		s.lastRanked = append(s.lastRanked, cloneGenome(g))
	}

	next, err := s.breed()
	if err != nil {
		return err
	}
	s.population = next
	s.generation++
	return nil
}

// pairJobs builds one match job per genome pair: sequential pairing, with an
// odd remainder fighting a random earlier opponent. Each job randomizes the
// spawn offsets and swaps sides with probability one half. The returned map
// correlates each JobID with the population indices on sides 1 and 2.
func (s *TrainingSession) pairJobs() ([]model.MatchJob, map[int][2]int) {
	jobs := make([]model.MatchJob, 0, (len(s.population)+1)/2)
	opponents := make(map[int][2]int, cap(jobs))

	addJob := func(i, j int) {
		if s.rng.Intn(2) == 1 {
			i, j = j, i
		}
		jobID := len(jobs)
		jobs = append(jobs, model.MatchJob{
			JobID:   jobID,
			Genome1: cloneGenome(s.population[i]),
			Genome2: cloneGenome(s.population[j]),
			Spawn1X: arena.ArenaWidth*0.25 + (s.rng.Float64()*2-1)*spawnJitter,
			Spawn2X: arena.ArenaWidth*0.75 + (s.rng.Float64()*2-1)*spawnJitter,
		})
		opponents[jobID] = [2]int{i, j}
	}

	for i := 0; i+1 < len(s.population); i += 2 {
		addJob(i, i+1)
	}
	if len(s.population)%2 == 1 {
		last := len(s.population) - 1
		addJob(last, s.rng.Intn(last))
	}
	return jobs, opponents
}

func (s *TrainingSession) applyResults(results []model.MatchResult, opponents map[int][2]int) error {
	for _, res := range results {
		pair, ok := opponents[res.JobID]
		if !ok {
			return fmt.Errorf("generation %d: result for unknown job %d", s.generation, res.JobID)
		}
		g1 := &s.population[pair[0]]
		g1.Fitness += res.Fitness1
		if res.Won1 {
			g1.MatchesWon++
		}
		g2 := &s.population[pair[1]]
		g2.Fitness += res.Fitness2
		if res.Won2 {
			g2.MatchesWon++
		}
	}
	return nil
}

func (s *TrainingSession) recordDiagnostics() {
	best := s.population[0].Fitness
	min := best
	total := 0.0
	for _, g := range s.population {
		total += g.Fitness
		if g.Fitness < min {
			min = g.Fitness
		}
	}

	s.cfg.Mutation.Observe(best)
	s.bestHistory = append(s.bestHistory, best)
	s.diagnostics = append(s.diagnostics, model.GenerationDiagnostics{
		Generation:       s.generation + 1,
		BestFitness:      best,
		MeanFitness:      total / float64(len(s.population)),
		MinFitness:       min,
		MutationRate:     s.cfg.Mutation.Rate(s.generation),
		StaleGenerations: s.cfg.Mutation.StaleGenerations(),
	})
}

// breed builds the next generation from the fitness-ranked population: the
// elites carry over with identical weights, the remainder comes from
// crossover and mutation of parents drawn from the mating pool. All fitness
// and win counters reset for the new generation.
func (s *TrainingSession) breed() ([]model.Genome, error) {
	rate := s.cfg.Mutation.Rate(s.generation)
	poolSize := int(float64(len(s.population)) * s.cfg.PoolFraction)
	if poolSize < 2 {
		poolSize = 2
	}

	next := make([]model.Genome, 0, len(s.population))
	for i := 0; i < s.cfg.EliteCount && i < len(s.population); i++ {
		elite := s.population[i]
		next = append(next, model.Genome{
			ID:         elite.ID,
			Network:    nn.Clone(elite.Network),
			Generation: s.generation + 1,
		})
	}

	for len(next) < len(s.population) {
		a := s.cfg.Selector.Select(s.rng, s.population, poolSize)
		b := s.cfg.Selector.Select(s.rng, s.population, poolSize)

		child, err := nn.Crossover(a.Network, b.Network, s.rng)
		if err != nil {
			if !errors.Is(err, nn.ErrShapeMismatch) {
				return nil, err
			}
			// Positional mixing is undefined across shapes; the child is a
			// straight copy of the first parent.
			log.Printf("evo: crossover shape mismatch between %s and %s, copying first parent", a.ID, b.ID)
		}
		mutated := nn.Mutate(child, rate, s.rng)
		next = append(next, model.Genome{
			ID:         uuid.NewString(),
			Network:    mutated,
			Generation: s.generation + 1,
		})
	}
	return next, nil
}

// ResizeWorkers rebuilds the session-owned pool with n workers. Any batch in
// flight is invalidated.
func (s *TrainingSession) ResizeWorkers(n int) error {
	if s.ownedPool == nil {
		return fmt.Errorf("session uses an external dispatcher")
	}
	s.cycle++
	return s.ownedPool.Resize(n)
}

// Population returns a deep copy of the current population in rank order.
func (s *TrainingSession) Population() []model.Genome {
	out := make([]model.Genome, 0, len(s.population))
	for _, g := range s.population {
		out = append(out, cloneGenome(g))
	}
	return out
}

func (s *TrainingSession) Generation() int {
	return s.generation
}

func (s *TrainingSession) BestHistory() []float64 {
	return append([]float64(nil), s.bestHistory...)
}

func (s *TrainingSession) Diagnostics() []model.GenerationDiagnostics {
	return append([]model.GenerationDiagnostics(nil), s.diagnostics...)
}

func (s *TrainingSession) Close() {
	if s.ownedPool != nil {
		s.ownedPool.Close()
	}
}

func cloneGenome(g model.Genome) model.Genome {
	clone := g
	clone.Network = nn.Clone(g.Network)
	return clone
}
