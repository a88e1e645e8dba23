package storage

import (
	"context"
	"sync"

	"neuroarena/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	genomes     map[string]model.Genome
	populations map[string]model.Population
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	topGenomes  map[string][]model.TopGenomeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genomes = make(map[string]model.Genome)
	s.populations = make(map[string]model.Population)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.topGenomes = make(map[string][]model.TopGenomeRecord)
	return nil
}

func (s *MemoryStore) SaveGenome(_ context.Context, genome model.Genome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genomes[genome.ID] = genome
	return nil
}

func (s *MemoryStore) GetGenome(_ context.Context, id string) (model.Genome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genome, ok := s.genomes[id]
	return genome, ok, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.Population) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	population.GenomeIDs = append([]string(nil), population.GenomeIDs...)
	s.populations[population.ID] = population
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.Population, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	population, ok := s.populations[id]
	if !ok {
		return model.Population{}, false, nil
	}
	population.GenomeIDs = append([]string(nil), population.GenomeIDs...)
	return population, true, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopGenomes(_ context.Context, runID string, top []model.TopGenomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TopGenomeRecord, len(top))
	copy(copied, top)
	s.topGenomes[runID] = copied
	return nil
}

func (s *MemoryStore) GetTopGenomes(_ context.Context, runID string) ([]model.TopGenomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.topGenomes[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TopGenomeRecord, len(top))
	copy(copied, top)
	return copied, true, nil
}
