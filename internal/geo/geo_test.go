package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lng1 float64
		lat2, lng2 float64
		want       float64
		tolerance  float64
	}{
		{"same point", 5.6037, -0.1870, 5.6037, -0.1870, 0, 1e-9},
		{"one degree of latitude", 5.0, -0.1870, 6.0, -0.1870, 111.19, 111.19 * 0.01},
		{"accra to kumasi", 5.6037, -0.1870, 6.6885, -1.6244, 199.6, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("HaversineKm() = %.3f, want %.3f ± %.3f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestPointDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 9.4008, Lng: -0.8393}
	b := Point{Lat: 10.0601, Lng: -2.5099}
	if math.Abs(a.Distance(b)-b.Distance(a)) > 1e-9 {
		t.Error("distance should be symmetric")
	}
}

func TestRound(t *testing.T) {
	if got := Round(0.66666, 2); got != 0.67 {
		t.Errorf("Round(0.66666, 2) = %v", got)
	}
	if got := Round(1234.56, 1); got != 1234.6 {
		t.Errorf("Round(1234.56, 1) = %v", got)
	}
}
