package nn

// SigmoidDerivativeFromOutput computes d(sigmoid)/dx given the activated
// output y = sigmoid(x).
func SigmoidDerivativeFromOutput(y float64) float64 {
	return y * (1 - y)
}

// ReLUDerivative is defined as 0 at the kink.
func ReLUDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}
