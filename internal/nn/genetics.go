package nn

import (
	"errors"
	"math/rand"

	"neuroarena/internal/model"
)

// ErrShapeMismatch reports that two parents cannot be positionally mixed.
var ErrShapeMismatch = errors.New("hidden layer shapes differ")

// Fraction of perturbations that stay small (magnitude scaled by the rate);
// the remainder draw from a fixed wider range to preserve explorability.
const smallPerturbShare = 0.9

// Mutate returns a new network in which each scalar parameter independently
// has probability rate of being perturbed. The input is not modified.
func Mutate(net model.Network, rate float64, rng *rand.Rand) model.Network {
	out := Clone(net)
	perturb := func(v float64) float64 {
		if rng.Float64() >= rate {
			return v
		}
		if rng.Float64() < smallPerturbShare {
			return v + (rng.Float64()*2-1)*rate
		}
		return v + (rng.Float64()*2 - 1)
	}

	for l := range out.Weights {
		for from := range out.Weights[l] {
			for to := range out.Weights[l][from] {
				out.Weights[l][from][to] = perturb(out.Weights[l][from][to])
			}
		}
	}
	for l := range out.Biases {
		for to := range out.Biases[l] {
			out.Biases[l][to] = perturb(out.Biases[l][to])
		}
	}
	return out
}

// Crossover builds a child by copying each scalar from either parent with
// equal probability. Positional mixing is undefined across mismatched hidden
// shapes: in that case the child is a straight copy of a and ErrShapeMismatch
// is returned so the caller can log the degradation. The returned network is
// always structurally valid.
func Crossover(a, b model.Network, rng *rand.Rand) (model.Network, error) {
	if !sameHiddenShape(a.Architecture, b.Architecture) {
		return Clone(a), ErrShapeMismatch
	}

	out := Clone(a)
	for l := range out.Weights {
		for from := range out.Weights[l] {
			for to := range out.Weights[l][from] {
				if rng.Float64() < 0.5 {
					out.Weights[l][from][to] = b.Weights[l][from][to]
				}
			}
		}
	}
	for l := range out.Biases {
		for to := range out.Biases[l] {
			if rng.Float64() < 0.5 {
				out.Biases[l][to] = b.Biases[l][to]
			}
		}
	}
	return out, nil
}

func sameHiddenShape(a, b model.Architecture) bool {
	if a.Inputs != b.Inputs || a.Outputs != b.Outputs || len(a.Hidden) != len(b.Hidden) {
		return false
	}
	for i := range a.Hidden {
		if a.Hidden[i] != b.Hidden[i] {
			return false
		}
	}
	return true
}
