package images

import (
	"image"
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrInvalidDepthMap is returned when a depth Mat cannot be sampled.
	ErrInvalidDepthMap = errors.New("depth map must be a non-empty single channel CV_32F mat")
	// ErrEmptyRegion is returned when a box has no finite depth samples.
	ErrEmptyRegion = errors.New("no valid depth samples inside box")
)

// DepthParams configures how raw depth values become metres.
type DepthParams struct {
	// Inverse marks the map as inverse relative depth (MiDaS style, larger is
	// closer). Metres are then Scale / value, otherwise value * Scale.
	Inverse bool `yaml:"inverse" json:"inverse"`
	// Scale is the camera specific calibration factor.
	Scale float32 `yaml:"scale" json:"scale"`
	// Inset shrinks the sampled box on every side by this fraction of its size
	// so background pixels at the box edge do not dominate.
	Inset float32 `yaml:"inset" json:"inset"`
}

// DefaultDepthParams returns parameters for a MiDaS small output.
func DefaultDepthParams() DepthParams {
	return DepthParams{
		Inverse: true,
		Scale:   300,
		Inset:   0.2,
	}
}

// DepthMap samples a dense depth prediction for the boxes of one frame.
//
// The map may have any resolution; boxes are given in frame pixels and are
// scaled into map coordinates. The Mat is owned by the caller.
type DepthMap struct {
	mat         gocv.Mat
	frameWidth  int
	frameHeight int
	params      DepthParams
}

// NewDepthMap wraps a depth Mat for a frame of the given size.
//
// Arguments:
//   - mat: Single channel CV_32F depth prediction.
//   - frameWidth: Width of the frame the boxes refer to.
//   - frameHeight: Height of the frame the boxes refer to.
//   - params: Conversion parameters.
//
// Returns:
//   - *DepthMap: The sampler.
//   - error: ErrInvalidDepthMap when the Mat or frame size is unusable.
func NewDepthMap(mat gocv.Mat, frameWidth, frameHeight int, params DepthParams) (*DepthMap, error) {
	if mat.Empty() || mat.Type() != gocv.MatTypeCV32F || mat.Channels() != 1 {
		return nil, ErrInvalidDepthMap
	}
	if frameWidth <= 0 || frameHeight <= 0 {
		return nil, errors.Wrapf(ErrInvalidDepthMap, "frame size %dx%d", frameWidth, frameHeight)
	}
	if params.Scale <= 0 {
		return nil, errors.Wrapf(ErrInvalidDepthMap, "scale %v", params.Scale)
	}
	if params.Inset < 0 || params.Inset >= 0.5 {
		return nil, errors.Wrapf(ErrInvalidDepthMap, "inset %v outside [0, 0.5)", params.Inset)
	}
	return &DepthMap{
		mat:         mat,
		frameWidth:  frameWidth,
		frameHeight: frameHeight,
		params:      params,
	}, nil
}

// EstimateDepth returns the distance in metres to the object inside box.
//
// The median of the finite, positive samples inside the (inset) box is used so
// that a few background pixels do not skew the reading.
//
// Arguments:
//   - box: Bounding box in frame pixels.
//
// Returns:
//   - float32: Distance in metres.
//   - error: ErrEmptyRegion if the box maps to no usable pixels.
func (d *DepthMap) EstimateDepth(box Rect) (float32, error) {
	region := d.mapRegion(box)
	if region.Empty() {
		return 0, ErrEmptyRegion
	}

	roi := d.mat.Region(region)
	defer roi.Close()

	samples := make([]float32, 0, region.Dx()*region.Dy())
	for y := 0; y < roi.Rows(); y++ {
		for x := 0; x < roi.Cols(); x++ {
			v := roi.GetFloatAt(y, x)
			if math32.IsNaN(v) || math32.IsInf(v, 0) || v <= 0 {
				continue
			}
			samples = append(samples, v)
		}
	}
	if len(samples) == 0 {
		return 0, ErrEmptyRegion
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	median := samples[len(samples)/2]
	if len(samples)%2 == 0 {
		median = (samples[len(samples)/2-1] + median) / 2
	}

	if d.params.Inverse {
		return d.params.Scale / median, nil
	}
	return median * d.params.Scale, nil
}

// mapRegion converts a frame box into a clipped rectangle of the depth Mat.
func (d *DepthMap) mapRegion(box Rect) image.Rectangle {
	if box.Empty() {
		return image.Rectangle{}
	}

	insetX := box.Width() * d.params.Inset
	insetY := box.Height() * d.params.Inset
	sx := float32(d.mat.Cols()) / float32(d.frameWidth)
	sy := float32(d.mat.Rows()) / float32(d.frameHeight)

	r := image.Rect(
		int(math32.Floor((box.X1+insetX)*sx)),
		int(math32.Floor((box.Y1+insetY)*sy)),
		int(math32.Ceil((box.X2-insetX)*sx)),
		int(math32.Ceil((box.Y2-insetY)*sy)),
	)
	return r.Intersect(image.Rect(0, 0, d.mat.Cols(), d.mat.Rows()))
}

// ReadDepthFile loads a single channel float depth map, such as a 32-bit TIFF
// written by the depth model, keeping its bit depth. The caller owns the Mat.
func ReadDepthFile(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadAnyDepth)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.Wrapf(ErrInvalidDepthMap, "failed to read depth file %s", path)
	}
	return mat, nil
}
