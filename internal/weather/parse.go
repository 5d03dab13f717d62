package weather

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MinSnapshotTokens is the number of fields a clientraw record must carry.
const MinSnapshotTokens = 6

// clientraw field positions.
const (
	fieldWindSpeed   = 1
	fieldWindBearing = 3
	fieldTemperature = 4
	fieldHumidity    = 5
)

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// ParseSnapshot turns a raw clientraw payload into a Reading.
//
// The payload is trimmed and split on single spaces. Fields that do not
// start with a number read as zero; only a short record is an error.
func ParseSnapshot(raw []byte) (Reading, error) {
	tokens := strings.Split(strings.TrimSpace(string(raw)), " ")
	if len(tokens) < MinSnapshotTokens {
		return Reading{}, &ParseError{Tokens: len(tokens)}
	}

	temp := math.Round(leadingFloat(tokens[fieldTemperature])*10) / 10
	if temp == 0 {
		temp = 0 // drop the sign of -0
	}

	return Reading{
		Temperature:   temp,
		Humidity:      roundInt(leadingFloat(tokens[fieldHumidity])),
		WindSpeed:     roundInt(leadingFloat(tokens[fieldWindSpeed])),
		WindDirection: CompassDirection(leadingFloat(tokens[fieldWindBearing])),
	}, nil
}

// leadingFloat reads the numeric prefix of s, ignoring leading whitespace.
func leadingFloat(s string) float64 {
	m := leadingNumber.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// roundInt rounds f half away from zero. Values outside the int range
// read as zero, like any other unusable field.
func roundInt(f float64) int {
	r := math.Round(f)
	if r >= math.MaxInt || r < math.MinInt {
		return 0
	}
	return int(r)
}
