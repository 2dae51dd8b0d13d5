package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadDirectoryFrameFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frame-10.json", `{"width": 640, "height": 480, "detections": []}`)
	writeFile(t, dir, "frame-2.json", `{"frame_id": "cam-2", "width": 640, "height": 480,
		"detections": [{"label": "person", "confidence": 0.8, "bbox": [0, 0, 100, 340]}]}`)
	writeFile(t, dir, "frame-x.json", `not read`)
	writeFile(t, dir, "notes.txt", `ignored`)
	writeFile(t, dir, "frame-3.jpg", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-4.json"), 0o700))

	frames, err := LoadDirectoryFrameFiles(dir)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, 2, frames[0].Frame)
	assert.Equal(t, "cam-2", frames[0].Request.FrameID)
	require.Len(t, frames[0].Request.Detections, 1)
	assert.Equal(t, "person", frames[0].Request.Detections[0].Label)

	assert.Equal(t, 10, frames[1].Frame)
	assert.Equal(t, "frame-10", frames[1].Request.FrameID)
	assert.Equal(t, filepath.Join(dir, "frame-10.json"), frames[1].Path)
}

func TestLoadDirectoryFrameFiles_Errors(t *testing.T) {
	_, err := LoadDirectoryFrameFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "frame-1.json", `{"width": `)
	_, err = LoadDirectoryFrameFiles(dir)
	assert.ErrorContains(t, err, "frame-1.json")
}

func TestLoadDirectoryFrameFiles_Empty(t *testing.T) {
	frames, err := LoadDirectoryFrameFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, frames)
}
