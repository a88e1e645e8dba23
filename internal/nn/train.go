package nn

import (
	"fmt"

	"neuroarena/internal/model"
)

// TrainBatch runs full-batch gradient descent for a fixed number of epochs and
// returns a new network; the input network is not mutated. Sample weights are
// used as given; callers normalize them to sum to 1 across the batch.
// Output deltas use the sigmoid derivative, hidden deltas the ReLU derivative.
func TrainBatch(net model.Network, samples []model.TrainingSample, learningRate float64, epochs int) (model.Network, error) {
	if len(samples) == 0 {
		return model.Network{}, fmt.Errorf("training batch is empty")
	}
	if learningRate <= 0 {
		return model.Network{}, fmt.Errorf("learning rate must be > 0, got %f", learningRate)
	}
	if epochs <= 0 {
		return model.Network{}, fmt.Errorf("epochs must be > 0, got %d", epochs)
	}
	for i, sample := range samples {
		if len(sample.Inputs) != net.Architecture.Inputs {
			return model.Network{}, fmt.Errorf("sample %d input length mismatch: got %d, want %d", i, len(sample.Inputs), net.Architecture.Inputs)
		}
		if len(sample.Targets) != net.Architecture.Outputs {
			return model.Network{}, fmt.Errorf("sample %d target length mismatch: got %d, want %d", i, len(sample.Targets), net.Architecture.Outputs)
		}
	}

	out := Clone(net)
	boundaries := len(out.Weights)

	for epoch := 0; epoch < epochs; epoch++ {
		gradW := zeroWeightGrads(out)
		gradB := zeroBiasGrads(out)

		for _, sample := range samples {
			activations, preActivations := forwardTrace(out, sample.Inputs)

			// Backpropagate layer deltas from the output boundary inward.
			deltas := make([][]float64, boundaries)
			last := boundaries - 1
			deltas[last] = make([]float64, len(activations[last+1]))
			for to, y := range activations[last+1] {
				deltas[last][to] = (y - sample.Targets[to]) * SigmoidDerivativeFromOutput(y)
			}
			for l := last - 1; l >= 0; l-- {
				deltas[l] = make([]float64, len(activations[l+1]))
				for node := range deltas[l] {
					sum := 0.0
					for next := range deltas[l+1] {
						sum += out.Weights[l+1][node][next] * deltas[l+1][next]
					}
					deltas[l][node] = sum * ReLUDerivative(preActivations[l][node])
				}
			}

			for l := 0; l < boundaries; l++ {
				for from := range gradW[l] {
					for to := range gradW[l][from] {
						gradW[l][from][to] += sample.Weight * activations[l][from] * deltas[l][to]
					}
				}
				for to := range gradB[l] {
					gradB[l][to] += sample.Weight * deltas[l][to]
				}
			}
		}

		for l := 0; l < boundaries; l++ {
			for from := range out.Weights[l] {
				for to := range out.Weights[l][from] {
					out.Weights[l][from][to] -= learningRate * gradW[l][from][to]
				}
			}
			for to := range out.Biases[l] {
				out.Biases[l][to] -= learningRate * gradB[l][to]
			}
		}
	}

	return out, nil
}

// forwardTrace runs a forward pass keeping per-layer activations and
// pre-activation sums. activations[0] is the input layer; preActivations[l]
// covers layer l+1.
func forwardTrace(net model.Network, inputs []float64) (activations [][]float64, preActivations [][]float64) {
	boundaries := len(net.Weights)
	activations = make([][]float64, boundaries+1)
	preActivations = make([][]float64, boundaries)
	activations[0] = append([]float64(nil), inputs...)

	last := boundaries - 1
	for l := 0; l < boundaries; l++ {
		preActivations[l] = make([]float64, len(net.Biases[l]))
		next := make([]float64, len(net.Biases[l]))
		for to := range next {
			total := net.Biases[l][to]
			for from := range activations[l] {
				total += activations[l][from] * net.Weights[l][from][to]
			}
			preActivations[l][to] = total
			if l == last {
				next[to] = Sigmoid(total)
			} else {
				next[to] = ReLU(total)
			}
		}
		activations[l+1] = next
	}
	return activations, preActivations
}

func zeroWeightGrads(net model.Network) [][][]float64 {
	grads := make([][][]float64, len(net.Weights))
	for l := range net.Weights {
		grads[l] = make([][]float64, len(net.Weights[l]))
		for from := range net.Weights[l] {
			grads[l][from] = make([]float64, len(net.Weights[l][from]))
		}
	}
	return grads
}

func zeroBiasGrads(net model.Network) [][]float64 {
	grads := make([][]float64, len(net.Biases))
	for l := range net.Biases {
		grads[l] = make([]float64, len(net.Biases[l]))
	}
	return grads
}
