package yolo

import (
	"testing"

	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customLabels = []string{"door_closed", "door_open", "door_half_open", "stairs"}

func TestDecode_Objectness(t *testing.T) {
	d, err := NewDecoder(Options{Source: "custom", Labels: customLabels, Objectness: true, MinScore: 0.25})
	require.NoError(t, err)

	output := []float32{
		// cx, cy, w, h, obj, classes...
		105, 105, 190, 190, 0.95, 0.9, 0.1, 0.0, 0.0,
		300, 300, 50, 50, 0.2, 0.0, 0.0, 0.0, 0.9,
		400, 200, 100, 200, 0.8, 0.0, 0.0, 0.1, 0.6,
	}

	got, err := d.Decode(output, 640, 480)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "door_closed", got[0].Label)
	assert.Equal(t, "custom", got[0].Source)
	assert.Equal(t, images.Rect{X1: 10, Y1: 10, X2: 200, Y2: 200}, got[0].Box)
	assert.InDelta(t, 0.855, got[0].Score, 1e-6)

	assert.Equal(t, "stairs", got[1].Label)
	assert.InDelta(t, 0.48, got[1].Score, 1e-6)
}

func TestDecode_ScalesToFrame(t *testing.T) {
	d, err := NewDecoder(Options{Source: "primary", Labels: []string{"person", "chair"}, InputWidth: 320, InputHeight: 320})
	require.NoError(t, err)

	got, err := d.Decode([]float32{160, 160, 32, 160, 0.7, 0.2}, 640, 480)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, postprocess.Result{
		Box:    images.Rect{X1: 288, Y1: 120, X2: 352, Y2: 360},
		Score:  0.7,
		Label:  "person",
		Source: "primary",
	}, got[0])
}

func TestDecode_Malformed(t *testing.T) {
	d, err := NewDecoder(Options{Labels: []string{"person"}})
	require.NoError(t, err)

	_, err = d.Decode([]float32{1, 2, 3, 4, 5, 6}, 640, 480)
	assert.True(t, errors.Is(err, ErrMalformedOutput))

	got, err := d.Decode(nil, 640, 480)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecode_ZeroScoresAreDropped(t *testing.T) {
	d, err := NewDecoder(Options{Labels: []string{"person"}})
	require.NoError(t, err)

	got, err := d.Decode([]float32{10, 10, 4, 4, 0}, 640, 480)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewDecoder_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no labels", Options{}},
		{"score above one", Options{Labels: []string{"a"}, MinScore: 1.5}},
		{"negative score", Options{Labels: []string{"a"}, MinScore: -0.1}},
		{"half input size", Options{Labels: []string{"a"}, InputWidth: 320}},
		{"negative input size", Options{Labels: []string{"a"}, InputWidth: -1, InputHeight: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestDecodeThenFuse(t *testing.T) {
	custom, err := NewDecoder(Options{Source: "custom", Labels: customLabels, Objectness: true})
	require.NoError(t, err)
	primary, err := NewDecoder(Options{Source: "primary", Labels: []string{"person", "door"}})
	require.NoError(t, err)

	c, err := custom.Decode([]float32{105, 105, 190, 190, 1, 0.9, 0, 0, 0}, 640, 480)
	require.NoError(t, err)
	p, err := primary.Decode([]float32{105, 105, 180, 180, 0.1, 0.6}, 640, 480)
	require.NoError(t, err)

	fused := postprocess.NewFuser(postprocess.DefaultFusionConfig(), nil).Fuse(map[string][]postprocess.Result{
		"custom":  c,
		"primary": p,
	})
	require.Len(t, fused, 1)
	assert.Equal(t, "door_closed", fused[0].Label)
}
