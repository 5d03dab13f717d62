package weather

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompassDirection(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{11.2, "N"},
		{11.25, "NNE"},
		{22.5, "NNE"},
		{45, "NE"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{337.5, "NNW"},
		{349, "N"},
		{359.9, "N"},
		{360, "N"},
		{720 + 90, "E"},
		{-10, "N"},
		{-22.5, "NNW"},
		{-90, "W"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompassDirection(tt.deg), "degrees=%v", tt.deg)
	}
}

func TestCompassDirection_NegativeMatchesPositiveEquivalent(t *testing.T) {
	assert.Equal(t, CompassDirection(350), CompassDirection(-10))
	assert.Equal(t, CompassDirection(200), CompassDirection(-160))
}

func TestCompassDirection_TotalOverCircle(t *testing.T) {
	labels := make(map[string]bool, len(compassPoints))
	for _, p := range compassPoints {
		labels[p] = true
	}
	seen := make(map[string]bool)
	for d := 0.0; d < 360; d += 0.5 {
		got := CompassDirection(d)
		assert.True(t, labels[got], "degrees=%v produced %q", d, got)
		seen[got] = true
	}
	assert.Len(t, seen, 16)
}

func TestCompassDirection_NonFinite(t *testing.T) {
	assert.Equal(t, "N", CompassDirection(math.NaN()))
	assert.Equal(t, "N", CompassDirection(math.Inf(1)))
	assert.Equal(t, "N", CompassDirection(math.Inf(-1)))
}
