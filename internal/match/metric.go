package match

import "math"

// ComputeError returns the signed percentage deviation of candidate from
// input, summed over all fields. Each field contributes
// (candidate[i]-input[i])/input[i]*100; a field whose input is zero, or whose
// term is NaN or infinite, contributes 0. The result is always finite.
//
// input and candidate must have the same length.
func ComputeError(input, candidate Vector) float64 {
	var sum float64
	for i := range input {
		sum += safePercent(candidate[i]-input[i], input[i])
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0
	}
	return sum
}

// ComputeErrors applies ComputeError row-wise to candidates against one input.
func ComputeErrors(input Vector, candidates []Vector) []float64 {
	errs := make([]float64, len(candidates))
	for i, c := range candidates {
		errs[i] = ComputeError(input, c)
	}
	return errs
}

// safePercent returns delta/base*100, or 0 when the quotient is undefined.
func safePercent(delta, base float64) float64 {
	if base == 0 {
		return 0
	}
	p := delta / base * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}
