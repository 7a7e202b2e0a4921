package geo_test

import (
	"testing"

	"shelterlink/backend/internal/geo"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_IdenticalPointsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, geo.DistanceKm(32.08, 34.78, 32.08, 34.78))
	assert.Equal(t, 0.0, geo.DistanceKm(-89.9, 179.9, -89.9, 179.9))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	points := [][2]float64{
		{32.08, 34.78},
		{32.09, 34.79},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
		{0, 0},
		{89.5, -179.5},
	}

	for _, a := range points {
		for _, b := range points {
			ab := geo.DistanceKm(a[0], a[1], b[0], b[1])
			ba := geo.DistanceKm(b[0], b[1], a[0], a[1])
			assert.InDelta(t, ab, ba, 1e-9, "distance(%v,%v) should be symmetric", a, b)
		}
	}
}

func TestDistanceKm_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lon1     float64
		lat2     float64
		lon2     float64
		expected float64
		delta    float64
	}{
		{"nearby Tel Aviv points", 32.08, 34.78, 32.09, 34.79, 1.46, 0.02},
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.05},
		{"London to Paris", 51.5074, -0.1278, 48.8566, 2.3522, 343.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expected, got, tt.delta)
		})
	}
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 1.5, geo.RoundKm(1.4574))
	assert.Equal(t, 0.0, geo.RoundKm(0.04))
	assert.Equal(t, 12.3, geo.RoundKm(12.34))
}
