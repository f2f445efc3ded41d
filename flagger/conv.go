package flagger

import "math"

/*------------------------------------------------------------------
 * conv1d performs edge-aware normalised 1-D convolution (spec §4.2).
 *
 * For each output index i, let offset = i - len(kernel)/2. The kernel is
 * intersected with the valid range of src around that offset; dst[i] is
 * the weighted sum divided by the sum of kernel weights actually used, so
 * that truncation at the edges of src does not bias the result toward 0.
 * If the intersection is empty (weight == 0), dst[i] is left unchanged.
 *----------------------------------------------------------------*/
func conv1d(src []float32, dst []float32, kernel []float32) {
	n := len(src)
	k := len(kernel)
	for i := 0; i < n; i++ {
		offset := i - k/2

		start := 0
		if offset < 0 {
			start = -offset
		}
		end := k
		if offset+k > n {
			end = n - offset
		}

		var sum, weight float32
		for j := start; j < end; j++ {
			sum += src[j+offset] * kernel[j]
			weight += kernel[j]
		}

		if weight != 0 {
			dst[i] = sum / weight
		}
	}
}

// evaluateGaussian computes the (deliberately non-squared-sigma) Gaussian
// kernel weight used by the original: 1/(sigma*sqrt(2*pi)) * exp(-0.5*x*x/sigma).
// Preserved exactly per spec §4.2's note.
func evaluateGaussian(x, sigma float32) float32 {
	return float32(1.0 / (float64(sigma) * math.Sqrt(2*math.Pi)) * math.Exp(-0.5*float64(x)*float64(x)/float64(sigma)))
}

// gaussianConv1d smooths src into dst with a Gaussian kernel of length
// clamp(round(3*sigma), 1, len(src)).
func gaussianConv1d(src []float32, dst []float32, sigma float32) {
	kernelSize := int(math.Round(float64(3 * sigma)))
	if kernelSize < 1 {
		kernelSize = 1
	} else if kernelSize > len(src) {
		kernelSize = len(src)
	}

	kernel := make([]float32, kernelSize)
	for i := range kernel {
		x := float32(i) - float32(kernelSize)/2
		kernel[i] = evaluateGaussian(x, sigma)
	}
	conv1d(src, dst, kernel)
}
