package neuroarena

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a reusable training-run description loaded from YAML. Every
// field is optional; request fields set explicitly by the caller win over the
// scenario's values.
type Scenario struct {
	Name         string           `yaml:"name"`
	Population   int              `yaml:"population"`
	Generations  int              `yaml:"generations"`
	Hidden       []int            `yaml:"hidden"`
	Workers      int              `yaml:"workers"`
	Seed         int64            `yaml:"seed"`
	EliteCount   int              `yaml:"elite_count"`
	PoolFraction float64          `yaml:"pool_fraction"`
	MatchTicks   int              `yaml:"match_ticks"`
	Selection    string           `yaml:"selection"`
	Mutation     ScenarioMutation `yaml:"mutation"`
	FitnessPath  string           `yaml:"fitness_config"`
}

type ScenarioMutation struct {
	Mode string  `yaml:"mode"`
	Rate float64 `yaml:"rate"`
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := scenario.validate(); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return scenario, nil
}

func (s Scenario) validate() error {
	if s.Population < 0 {
		return fmt.Errorf("population must be >= 0, got %d", s.Population)
	}
	if s.Generations < 0 {
		return fmt.Errorf("generations must be >= 0, got %d", s.Generations)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if s.PoolFraction < 0 || s.PoolFraction > 1 {
		return fmt.Errorf("pool_fraction must be in [0, 1], got %g", s.PoolFraction)
	}
	for _, width := range s.Hidden {
		if width <= 0 {
			return fmt.Errorf("hidden layer widths must be > 0, got %d", width)
		}
	}
	if s.Mutation.Rate < 0 || s.Mutation.Rate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1], got %g", s.Mutation.Rate)
	}
	return nil
}

// apply fills the zero-valued fields of a request from the scenario.
func (s Scenario) apply(req RunRequest) RunRequest {
	if req.Scenario == "" {
		req.Scenario = s.Name
	}
	if req.Population == 0 {
		req.Population = s.Population
	}
	if req.Generations == 0 {
		req.Generations = s.Generations
	}
	if len(req.Hidden) == 0 {
		req.Hidden = append([]int(nil), s.Hidden...)
	}
	if req.Workers == 0 {
		req.Workers = s.Workers
	}
	if req.Seed == 0 {
		req.Seed = s.Seed
	}
	if req.EliteCount == 0 {
		req.EliteCount = s.EliteCount
	}
	if req.PoolFraction == 0 {
		req.PoolFraction = s.PoolFraction
	}
	if req.MatchTicks == 0 {
		req.MatchTicks = s.MatchTicks
	}
	if req.Selection == "" {
		req.Selection = s.Selection
	}
	if req.MutationMode == "" {
		req.MutationMode = s.Mutation.Mode
		if req.MutationRate == 0 {
			req.MutationRate = s.Mutation.Rate
		}
	}
	if req.FitnessPath == "" {
		req.FitnessPath = s.FitnessPath
	}
	return req
}
