// Package distance - Monocular distance estimation for detected objects.
package distance

import (
	"strconv"

	"github.com/chewxy/math32"
)

const (
	// MinDistance is the closest distance ever reported, in metres.
	MinDistance = 0.1
	// MaxDistance is the farthest distance ever reported, in metres.
	MaxDistance = 15.0
)

// Measurement is an optional distance in metres. The zero value is absent,
// which is distinct from a reading of 0 m.
type Measurement struct {
	Meters float32
	Valid  bool
}

// Meters returns a valid measurement.
func Meters(m float32) Measurement {
	return Measurement{Meters: m, Valid: true}
}

// Absent returns a measurement with no value.
func Absent() Measurement {
	return Measurement{}
}

// Clamp limits a valid measurement to [MinDistance, MaxDistance].
func (m Measurement) Clamp() Measurement {
	if !m.Valid {
		return m
	}
	return Meters(math32.Max(MinDistance, math32.Min(m.Meters, MaxDistance)))
}

// Less reports whether m is nearer than o. Absent measurements sort last.
func (m Measurement) Less(o Measurement) bool {
	if m.Valid != o.Valid {
		return m.Valid
	}
	return m.Valid && m.Meters < o.Meters
}

// Rounded returns the distance rounded to centimetres.
func (m Measurement) Rounded() float32 {
	return math32.Round(m.Meters*100) / 100
}

// MarshalJSON encodes the distance rounded to centimetres, or null.
func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(m.Rounded()), 'f', -1, 32), nil
}

// UnmarshalJSON accepts a number or null.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Absent()
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 32)
	if err != nil {
		return err
	}
	*m = Meters(float32(v))
	return nil
}
