package vecmath

import (
	"math"
	"testing"
)

func TestCosineSimilarity_IdenticalDirection(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{2, 4, 6}
	got := CosineSimilarity(a, b)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected 1.0 got %v", got)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(got) > 1e-9 {
		t.Fatalf("expected 0 got %v", got)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	if math.Abs(got+1.0) > 1e-9 {
		t.Fatalf("expected -1 got %v", got)
	}
}

func TestCosineSimilarity_MismatchedOrZero(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("mismatched lengths: expected 0 got %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Fatalf("zero vector: expected 0 got %v", got)
	}
}

func TestNormalize_UnitLength(t *testing.T) {
	out := Normalize([]float32{3, 4})
	if out == nil {
		t.Fatalf("expected non-nil")
	}
	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Fatalf("expected unit length, got norm %v", math.Sqrt(norm))
	}
	if math.Abs(float64(out[0])-0.6) > 1e-6 || math.Abs(float64(out[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected direction: %v", out)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	if out := Normalize([]float32{0, 0, 0}); out != nil {
		t.Fatalf("expected nil for zero vector, got %v", out)
	}
}

func TestCentroid_AveragesAndRenormalizes(t *testing.T) {
	out := Centroid([][]float32{{1, 0}, {0, 1}})
	if out == nil {
		t.Fatalf("expected non-nil centroid")
	}
	want := 1.0 / math.Sqrt(2)
	if math.Abs(float64(out[0])-want) > 1e-6 || math.Abs(float64(out[1])-want) > 1e-6 {
		t.Fatalf("unexpected centroid: %v", out)
	}
}

func TestCentroid_SkipsMismatchedAndEmpty(t *testing.T) {
	out := Centroid([][]float32{{1, 0}, nil, {1, 2, 3}, {1, 0}})
	if out == nil {
		t.Fatalf("expected non-nil centroid")
	}
	if math.Abs(float64(out[0])-1.0) > 1e-6 || math.Abs(float64(out[1])) > 1e-6 {
		t.Fatalf("unexpected centroid: %v", out)
	}
}

func TestCentroid_NoUsableVectors(t *testing.T) {
	if out := Centroid(nil); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
	if out := Centroid([][]float32{nil, {}}); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}
