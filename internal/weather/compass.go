package weather

import "math"

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassDirection maps a bearing in degrees to a 16-point compass label.
// Each sector is 22.5 degrees wide and centered on its label, so 349 is N.
// Negative and out-of-range bearings wrap; NaN and infinities map to N.
func CompassDirection(degrees float64) string {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return compassPoints[0]
	}
	idx := math.Mod(math.Round(degrees/22.5), 16)
	if idx < 0 {
		idx += 16
	}
	return compassPoints[int(idx)%16]
}
