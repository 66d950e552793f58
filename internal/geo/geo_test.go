package geo

import (
	"math"
	"testing"
)

func TestDistanceZero(t *testing.T) {
	p := Point{Lat: 59.3293, Lon: 18.0686}
	if d := Distance(p, p); d != 0 {
		t.Errorf("expected 0 distance for identical points, got %f", d)
	}
}

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		wantKm   float64
		tolerance float64
	}{
		{
			name:      "stockholm to gothenburg",
			a:         Point{Lat: 59.3293, Lon: 18.0686},
			b:         Point{Lat: 57.7089, Lon: 11.9746},
			wantKm:    397,
			tolerance: 5,
		},
		{
			name:      "stockholm to malmo",
			a:         Point{Lat: 59.3293, Lon: 18.0686},
			b:         Point{Lat: 55.6050, Lon: 13.0038},
			wantKm:    512,
			tolerance: 5,
		},
		{
			name:      "one degree of latitude",
			a:         Point{Lat: 0, Lon: 0},
			b:         Point{Lat: 1, Lon: 0},
			wantKm:    111.19,
			tolerance: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("Distance() = %.2f km, want %.2f km (±%.1f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 59.3293, Lon: 18.0686}
	b := Point{Lat: 57.7089, Lon: 11.9746}

	if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceOutOfRangeInputs(t *testing.T) {
	// Out-of-range coordinates still produce a finite, non-negative
	// result; the engine never rejects coordinates.
	a := Point{Lat: 123.0, Lon: 500.0}
	b := Point{Lat: -99.0, Lon: -400.0}

	d := Distance(a, b)
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		t.Errorf("expected finite non-negative distance, got %f", d)
	}
}
