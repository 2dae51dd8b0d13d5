package distance

import (
	"encoding/json"
	"testing"

	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	return NewEstimator(models.DefaultReferenceTables())
}

func TestEstimate_Absent(t *testing.T) {
	est := newTestEstimator(t)

	tests := []struct {
		name  string
		box   images.Rect
		label string
	}{
		{"zero height", images.Rect{X1: 0, Y1: 100, X2: 50, Y2: 100}, "person"},
		{"negative height", images.Rect{X1: 0, Y1: 200, X2: 50, Y2: 100}, "chair"},
		{"zero height large object", images.Rect{X1: 0, Y1: 50, X2: 300, Y2: 50}, "door"},
		{"face", images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, "face"},
		{"human face any case", images.Rect{X1: 10, Y1: 10, X2: 400, Y2: 470}, "Human Face"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := est.Estimate(tt.box, tt.label, 640, 480)
			assert.False(t, got.Valid)
		})
	}
}

func TestEstimate_HeightModel(t *testing.T) {
	est := newTestEstimator(t)

	tests := []struct {
		name     string
		heightPx float32
		label    string
		expected float32
	}{
		{"person", 340, "person", 2.5},
		{"person twice as tall", 170, "person", 5.0},
		{"unknown label uses 0.8m", 100, "umbrella", 4.0},
		{"label case is ignored", 100, "CHAIR", 4.5},
		{"clamped to max", 10, "bus", 15.0},
		{"clamped to min", 4000, "cup", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := images.Rect{X1: 100, Y1: 0, X2: 150, Y2: tt.heightPx}
			got := est.Estimate(box, tt.label, 640, 480)
			require.True(t, got.Valid)
			assert.InDelta(t, tt.expected, got.Meters, 1e-4)
		})
	}
}

func TestEstimate_HeightModelIsInverse(t *testing.T) {
	est := newTestEstimator(t)

	for _, h := range []float32{60, 85, 120, 200} {
		near := est.ByHeight(2*h, "person")
		far := est.ByHeight(h, "person")
		require.True(t, near.Valid)
		assert.InDelta(t, far.Meters/2, near.Meters, 1e-4)
	}
}

func TestEstimate_CalibratedFocalLength(t *testing.T) {
	spec := models.DefaultTableSpec()
	spec.FocalLengths["person"] = 600
	tables, err := models.NewReferenceTables(spec)
	require.NoError(t, err)

	got := NewEstimator(tables).Estimate(images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 340}, "person", 640, 480)
	assert.InDelta(t, 3.0, got.Meters, 1e-4)
}

func TestEstimate_CoverageModel(t *testing.T) {
	est := newTestEstimator(t)

	tests := []struct {
		name     string
		box      images.Rect
		expected float32
	}{
		// height coverage 0.9
		{"door filling frame height", images.Rect{X1: 200, Y1: 0, X2: 300, Y2: 432}, 0.3},
		// width coverage 0.5 wins over height 0.2 and area 0.1
		{"wide stairs", images.Rect{X1: 0, Y1: 380, X2: 320, Y2: 476}, 1.0},
		// max coverage 0.125
		{"distant door", images.Rect{X1: 300, Y1: 100, X2: 340, Y2: 160}, 3.5},
		// max coverage 0.05
		{"far door", images.Rect{X1: 300, Y1: 100, X2: 332, Y2: 124}, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := est.Estimate(tt.box, "door_closed", 640, 480)
			require.True(t, got.Valid)
			assert.InDelta(t, tt.expected, got.Meters, 1e-6)
		})
	}

	assert.False(t, est.Estimate(images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, "door", 0, 480).Valid)
}

func TestDistanceForCoverage_Breakpoints(t *testing.T) {
	tests := []struct {
		coverage float32
		expected float32
	}{
		{1.0, 0.3}, {0.90, 0.3}, {0.85, 0.3},
		{0.84, 0.5}, {0.70, 0.5},
		{0.69, 0.8}, {0.55, 0.8},
		{0.50, 1.0}, {0.45, 1.0},
		{0.40, 1.3}, {0.35, 1.3},
		{0.30, 1.8}, {0.25, 1.8},
		{0.20, 2.5}, {0.15, 2.5},
		{0.12, 3.5}, {0.10, 3.5},
		{0.09, 5.0}, {0.05, 5.0}, {0, 5.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DistanceForCoverage(tt.coverage), "coverage %v", tt.coverage)
	}
}

func TestDistanceForCoverage_Monotonic(t *testing.T) {
	prev := DistanceForCoverage(0)
	for c := float32(0); c <= 1.0; c += 0.005 {
		d := DistanceForCoverage(c)
		assert.LessOrEqual(t, d, prev, "coverage %v", c)
		prev = d
	}
}

func TestBlendPolicy(t *testing.T) {
	p := DefaultBlendPolicy()

	tests := []struct {
		name     string
		blend    func(box, depth Measurement) Measurement
		box      Measurement
		depth    Measurement
		expected Measurement
	}{
		{"large both", p.LargeObject, Meters(1.0), Meters(2.0), Meters(1.3)},
		{"large box only", p.LargeObject, Meters(1.0), Absent(), Meters(1.0)},
		{"large depth only", p.LargeObject, Absent(), Meters(2.0), Meters(2.0)},
		{"near depth trusted", p.Standard, Meters(3.0), Meters(1.0), Meters(1.6)},
		{"far depth distrusted", p.Standard, Meters(3.0), Meters(4.0), Meters(3.3)},
		{"threshold counts as far", p.Standard, Meters(1.0), Meters(2.0), Meters(1.3)},
		{"standard depth only", p.Standard, Absent(), Meters(1.5), Meters(1.5)},
		{"standard box only", p.Standard, Meters(4.0), Absent(), Meters(4.0)},
		{"neither", p.Standard, Absent(), Absent(), Absent()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.blend(tt.box, tt.depth)
			assert.Equal(t, tt.expected.Valid, got.Valid)
			assert.InDelta(t, tt.expected.Meters, got.Meters, 1e-5)
		})
	}
}

func TestMeasurement(t *testing.T) {
	assert.Equal(t, Meters(0.1), Meters(0.02).Clamp())
	assert.Equal(t, Meters(15), Meters(40).Clamp())
	assert.Equal(t, Absent(), Absent().Clamp())

	assert.True(t, Meters(1).Less(Meters(2)))
	assert.True(t, Meters(9).Less(Absent()))
	assert.False(t, Absent().Less(Meters(9)))
	assert.False(t, Absent().Less(Absent()))

	data, err := json.Marshal(struct {
		A Measurement `json:"a"`
		B Measurement `json:"b"`
	}{Meters(1.23456), Absent()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.23,"b":null}`, string(data))

	var m Measurement
	require.NoError(t, json.Unmarshal([]byte("2.5"), &m))
	assert.Equal(t, Meters(2.5), m)
	require.NoError(t, json.Unmarshal([]byte("null"), &m))
	assert.False(t, m.Valid)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "unknown distance", FormatDistance(Absent()))
	assert.Equal(t, "very close", FormatDistance(Meters(0.05)))
	assert.Equal(t, "1.3 meters", FormatDistance(Meters(1.26)))

	assert.Equal(t, "unknown", Category(Absent()))
	assert.Equal(t, "very close", Category(Meters(0.3)))
	assert.Equal(t, "close", Category(Meters(0.7)))
	assert.Equal(t, "nearby", Category(Meters(1.5)))
	assert.Equal(t, "moderate", Category(Meters(2.5)))
	assert.Equal(t, "far", Category(Meters(4)))
}
