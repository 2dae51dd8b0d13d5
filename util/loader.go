package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-wayfinder/protocol"
	"github.com/pkg/errors"
)

// FrameFile is one recorded frame of detector output.
type FrameFile struct {
	// Path is the path to the frame file.
	Path string
	// Frame is the frame number taken from the file name.
	Frame int
	// Request is the decoded frame.
	Request protocol.NavigateRequest
}

// LoadDirectoryFrameFiles reads every frame-N.json file from a directory,
// ordered by frame number. Other files are ignored.
//
// Arguments:
//   - dir: Directory path containing frame files.
//
// Returns:
//   - []FrameFile: The decoded frames. A frame without an ID gets "frame-N".
//   - error: Error if the directory or a frame file cannot be read or decoded.
func LoadDirectoryFrameFiles(dir string) ([]FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame directory %s", dir)
	}

	var frames []FrameFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, "frame-") {
			continue
		}

		frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ".json"))
		if err != nil {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read frame %s", path)
		}

		var req protocol.NavigateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, errors.Wrapf(err, "failed to decode frame %s", path)
		}
		if req.FrameID == "" {
			req.FrameID = "frame-" + strconv.Itoa(frame)
		}

		frames = append(frames, FrameFile{Path: path, Frame: frame, Request: req})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Frame < frames[j].Frame
	})

	return frames, nil
}
