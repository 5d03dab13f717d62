package weather

import (
	"strconv"
	"strings"
)

// RenderStatus builds the status text for a reading. Empty title and
// location fall back to their defaults; the link line is omitted when empty.
func RenderStatus(r Reading, cfg PublishConfig) string {
	cfg = cfg.WithDefaults()

	var b strings.Builder
	b.WriteString(cfg.Title)
	b.WriteString("\nTemperature: ")
	b.WriteString(formatTemperature(r.Temperature))
	b.WriteString("°C\nHumidity: ")
	b.WriteString(strconv.Itoa(r.Humidity))
	b.WriteString("%\nWind: ")
	b.WriteString(strconv.Itoa(r.WindSpeed))
	b.WriteString(" km/h ")
	b.WriteString(r.WindDirection)
	b.WriteString("\nLocation: ")
	b.WriteString(cfg.Location)
	b.WriteString("\n")
	if cfg.Link != "" {
		b.WriteString(cfg.Link)
		b.WriteString("\n")
	}
	b.WriteString("#weather")
	return b.String()
}

// formatTemperature prints t without trailing zeros. Negative zero prints as 0.
func formatTemperature(t float64) string {
	if t == 0 {
		t = 0
	}
	return strconv.FormatFloat(t, 'f', -1, 64)
}
