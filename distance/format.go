package distance

import "fmt"

// FormatDistance renders a distance for speech.
func FormatDistance(m Measurement) string {
	if !m.Valid {
		return "unknown distance"
	}
	if m.Meters < MinDistance {
		return "very close"
	}
	return fmt.Sprintf("%.1f meters", m.Meters)
}

// Category returns a coarse human readable distance bucket.
func Category(m Measurement) string {
	switch {
	case !m.Valid || m.Meters < 0:
		return "unknown"
	case m.Meters < 0.5:
		return "very close"
	case m.Meters < 1.0:
		return "close"
	case m.Meters < 2.0:
		return "nearby"
	case m.Meters < 3.0:
		return "moderate"
	default:
		return "far"
	}
}
