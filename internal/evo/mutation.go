package evo

import (
	"fmt"
	"math"
)

// plateauWindow is the number of recent best-fitness values retained for
// stagnation detection.
const plateauWindow = 10

const improvementEpsilon = 1e-9

// MutationController produces the per-generation mutation rate. In fixed mode
// the rate is a constant. In adaptive mode the rate starts high and decays
// geometrically with generation index down to a floor, and the controller
// tracks how many consecutive generations the best fitness has failed to
// improve.
type MutationController struct {
	fixed bool
	rate  float64

	initial float64
	floor   float64
	decay   float64

	window []float64
	stale  int
}

// NewFixedMutation returns a controller that always reports rate.
func NewFixedMutation(rate float64) (*MutationController, error) {
	if rate < 0 || rate > 1 || math.IsNaN(rate) {
		return nil, fmt.Errorf("mutation rate must be in [0,1], got %v", rate)
	}
	return &MutationController{fixed: true, rate: rate}, nil
}

// NewAdaptiveMutation returns a controller whose rate decays from initial by
// a factor of decay per generation, never dropping below floor.
func NewAdaptiveMutation(initial, floor, decay float64) (*MutationController, error) {
	if initial <= 0 || initial > 1 || math.IsNaN(initial) {
		return nil, fmt.Errorf("initial mutation rate must be in (0,1], got %v", initial)
	}
	if floor < 0 || floor > initial || math.IsNaN(floor) {
		return nil, fmt.Errorf("mutation floor must be in [0,initial], got %v", floor)
	}
	if decay <= 0 || decay > 1 || math.IsNaN(decay) {
		return nil, fmt.Errorf("mutation decay must be in (0,1], got %v", decay)
	}
	return &MutationController{initial: initial, floor: floor, decay: decay}, nil
}

// DefaultMutation is the adaptive controller used when a run does not
// configure mutation explicitly.
func DefaultMutation() *MutationController {
	return &MutationController{initial: 0.2, floor: 0.02, decay: 0.97}
}

// Rate reports the mutation rate for the given generation index.
func (c *MutationController) Rate(generation int) float64 {
	if c.fixed {
		return c.rate
	}
	if generation < 0 {
		generation = 0
	}
	rate := c.initial * math.Pow(c.decay, float64(generation))
	if rate < c.floor {
		return c.floor
	}
	return rate
}

// Observe records a generation's best fitness and updates the plateau count.
func (c *MutationController) Observe(best float64) {
	improved := len(c.window) == 0 || best > c.windowMax()+improvementEpsilon
	c.window = append(c.window, best)
	if len(c.window) > plateauWindow {
		c.window = c.window[1:]
	}
	if improved {
		c.stale = 0
	} else {
		c.stale++
	}
}

// StaleGenerations reports how many consecutive generations have passed
// without an improvement in best fitness.
func (c *MutationController) StaleGenerations() int {
	return c.stale
}

// Window returns a copy of the retained best-fitness values, oldest first.
func (c *MutationController) Window() []float64 {
	return append([]float64(nil), c.window...)
}

func (c *MutationController) windowMax() float64 {
	max := c.window[0]
	for _, v := range c.window[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
