package nn

import "math"

func ReLU(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
