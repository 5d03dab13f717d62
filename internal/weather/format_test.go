package weather

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderStatus(t *testing.T) {
	r := Reading{Temperature: 21.5, Humidity: 55, WindSpeed: 12, WindDirection: "E"}
	cfg := PublishConfig{Title: "Station WX", Location: "Leeds", Link: "https://example.com/wx"}

	want := "Station WX\n" +
		"Temperature: 21.5°C\n" +
		"Humidity: 55%\n" +
		"Wind: 12 km/h E\n" +
		"Location: Leeds\n" +
		"https://example.com/wx\n" +
		"#weather"
	assert.Equal(t, want, RenderStatus(r, cfg))
}

func TestRenderStatus_DefaultsAndNoLink(t *testing.T) {
	r := Reading{Temperature: 21, Humidity: 40, WindSpeed: 0, WindDirection: "N"}

	got := RenderStatus(r, PublishConfig{})

	assert.Equal(t, "Weather Update\n"+
		"Temperature: 21°C\n"+
		"Humidity: 40%\n"+
		"Wind: 0 km/h N\n"+
		"Location: Unknown Location\n"+
		"#weather", got)
	assert.NotContains(t, got, "\n\n")
}

func TestRenderStatus_NegativeTemperature(t *testing.T) {
	got := RenderStatus(Reading{Temperature: -3.5, WindDirection: "SSW"}, PublishConfig{})
	assert.Contains(t, got, "Temperature: -3.5°C\n")
}

func TestRenderStatus_NegativeZeroTemperature(t *testing.T) {
	got := RenderStatus(Reading{Temperature: math.Copysign(0, -1), WindDirection: "N"}, PublishConfig{})
	assert.Contains(t, got, "Temperature: 0°C\n")
	assert.NotContains(t, got, "-0")
}

func TestRenderStatus_Deterministic(t *testing.T) {
	r := Reading{Temperature: 9.9, Humidity: 80, WindSpeed: 30, WindDirection: "WNW"}
	cfg := PublishConfig{Title: "T", Location: "L"}
	first := RenderStatus(r, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, RenderStatus(r, cfg))
	}
	assert.True(t, strings.HasSuffix(first, "#weather"))
}
