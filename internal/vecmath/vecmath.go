// Package vecmath holds the small amount of float vector arithmetic the
// memory engine needs. Vectors are float32 (wire format of the embedding
// API); accumulation happens in float64.
package vecmath

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize returns a unit-length copy of v, or nil for a zero vector.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0.0 {
		return nil
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Centroid averages the given vectors and renormalizes the result to unit
// length. Vectors whose length differs from the first are skipped. Returns
// nil when no usable vectors exist.
func Centroid(vectors [][]float32) []float32 {
	var sum []float64
	dim := 0
	count := 0
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(v)
			sum = make([]float64, dim)
		}
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(count))
	}
	return Normalize(mean)
}
