package nn

import (
	"fmt"
	"math/rand"

	"neuroarena/internal/model"
)

// ValidateArchitecture rejects malformed topologies. A bad architecture is a
// construction error, never coerced at runtime.
func ValidateArchitecture(arch model.Architecture) error {
	if arch.Inputs <= 0 {
		return fmt.Errorf("architecture inputs must be > 0, got %d", arch.Inputs)
	}
	if arch.Outputs <= 0 {
		return fmt.Errorf("architecture outputs must be > 0, got %d", arch.Outputs)
	}
	for i, size := range arch.Hidden {
		if size <= 0 {
			return fmt.Errorf("architecture hidden layer %d must be > 0, got %d", i, size)
		}
	}
	return nil
}

// Validate checks that weight and bias dimensions agree with the declared
// architecture at every layer boundary.
func Validate(net model.Network) error {
	if err := ValidateArchitecture(net.Architecture); err != nil {
		return err
	}
	sizes := layerSizes(net.Architecture)
	boundaries := len(sizes) - 1
	if len(net.Weights) != boundaries {
		return fmt.Errorf("weight layer count mismatch: got %d, want %d", len(net.Weights), boundaries)
	}
	if len(net.Biases) != boundaries {
		return fmt.Errorf("bias layer count mismatch: got %d, want %d", len(net.Biases), boundaries)
	}
	for l := 0; l < boundaries; l++ {
		if len(net.Weights[l]) != sizes[l] {
			return fmt.Errorf("layer %d fan-in mismatch: got %d, want %d", l, len(net.Weights[l]), sizes[l])
		}
		for from := range net.Weights[l] {
			if len(net.Weights[l][from]) != sizes[l+1] {
				return fmt.Errorf("layer %d fan-out mismatch at node %d: got %d, want %d", l, from, len(net.Weights[l][from]), sizes[l+1])
			}
		}
		if len(net.Biases[l]) != sizes[l+1] {
			return fmt.Errorf("layer %d bias count mismatch: got %d, want %d", l, len(net.Biases[l]), sizes[l+1])
		}
	}
	return nil
}

// NewRandom builds a network with independent uniform draws in [-1, 1].
func NewRandom(arch model.Architecture, rng *rand.Rand) (model.Network, error) {
	if rng == nil {
		return model.Network{}, fmt.Errorf("random source is required")
	}
	if err := ValidateArchitecture(arch); err != nil {
		return model.Network{}, err
	}

	sizes := layerSizes(arch)
	weights := make([][][]float64, len(sizes)-1)
	biases := make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		weights[l] = make([][]float64, sizes[l])
		for from := range weights[l] {
			weights[l][from] = make([]float64, sizes[l+1])
			for to := range weights[l][from] {
				weights[l][from][to] = rng.Float64()*2 - 1
			}
		}
		biases[l] = make([]float64, sizes[l+1])
		for to := range biases[l] {
			biases[l][to] = rng.Float64()*2 - 1
		}
	}

	return model.Network{
		Architecture: model.Architecture{
			Inputs:  arch.Inputs,
			Hidden:  append([]int(nil), arch.Hidden...),
			Outputs: arch.Outputs,
		},
		Weights: weights,
		Biases:  biases,
	}, nil
}

// Predict runs a pure forward pass: ReLU on hidden layers, sigmoid on the
// output layer so every output lands in (0, 1).
func Predict(net model.Network, inputs []float64) ([]float64, error) {
	if len(inputs) != net.Architecture.Inputs {
		return nil, fmt.Errorf("input length mismatch: got %d, want %d", len(inputs), net.Architecture.Inputs)
	}

	current := append([]float64(nil), inputs...)
	last := len(net.Weights) - 1
	for l := range net.Weights {
		next := make([]float64, len(net.Biases[l]))
		for to := range next {
			total := net.Biases[l][to]
			for from := range current {
				total += current[from] * net.Weights[l][from][to]
			}
			if l == last {
				next[to] = Sigmoid(total)
			} else {
				next[to] = ReLU(total)
			}
		}
		current = next
	}
	return current, nil
}

// Clone deep-copies a network value.
func Clone(net model.Network) model.Network {
	weights := make([][][]float64, len(net.Weights))
	for l := range net.Weights {
		weights[l] = make([][]float64, len(net.Weights[l]))
		for from := range net.Weights[l] {
			weights[l][from] = append([]float64(nil), net.Weights[l][from]...)
		}
	}
	biases := make([][]float64, len(net.Biases))
	for l := range net.Biases {
		biases[l] = append([]float64(nil), net.Biases[l]...)
	}
	return model.Network{
		Architecture: model.Architecture{
			Inputs:  net.Architecture.Inputs,
			Hidden:  append([]int(nil), net.Architecture.Hidden...),
			Outputs: net.Architecture.Outputs,
		},
		Weights: weights,
		Biases:  biases,
	}
}

// ParameterCount reports the total scalar count (weights + biases).
func ParameterCount(net model.Network) int {
	count := 0
	for l := range net.Weights {
		for from := range net.Weights[l] {
			count += len(net.Weights[l][from])
		}
	}
	for l := range net.Biases {
		count += len(net.Biases[l])
	}
	return count
}

func layerSizes(arch model.Architecture) []int {
	sizes := make([]int, 0, len(arch.Hidden)+2)
	sizes = append(sizes, arch.Inputs)
	sizes = append(sizes, arch.Hidden...)
	sizes = append(sizes, arch.Outputs)
	return sizes
}
