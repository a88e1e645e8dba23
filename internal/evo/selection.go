package evo

import (
	"math/rand"

	"neuroarena/internal/model"
)

// Selector picks a parent from a population ranked by fitness descending.
// poolSize bounds the eligible prefix for pool-based strategies.
type Selector interface {
	Select(rng *rand.Rand, ranked []model.Genome, poolSize int) model.Genome
}

// MatingPoolSelector draws uniformly from the top poolSize genomes.
type MatingPoolSelector struct{}

func (MatingPoolSelector) Select(rng *rand.Rand, ranked []model.Genome, poolSize int) model.Genome {
	if poolSize < 1 {
		poolSize = 1
	}
	if poolSize > len(ranked) {
		poolSize = len(ranked)
	}
	return ranked[rng.Intn(poolSize)]
}

// TournamentSelector draws Size contenders uniformly from the whole ranked
// population and keeps the fittest. Since the population is ranked, the
// fittest contender is the one with the lowest index.
type TournamentSelector struct {
	Size int
}

func (s TournamentSelector) Select(rng *rand.Rand, ranked []model.Genome, poolSize int) model.Genome {
	size := s.Size
	if size < 2 {
		size = 3
	}
	best := rng.Intn(len(ranked))
	for i := 1; i < size; i++ {
		if idx := rng.Intn(len(ranked)); idx < best {
			best = idx
		}
	}
	return ranked[best]
}
