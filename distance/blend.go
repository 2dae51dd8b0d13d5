package distance

// BlendPolicy weighs the box based estimate against an external depth model.
//
// Monocular depth is more reliable than the height heuristic at close range
// and noisier far away. For frame-filling objects the coverage model is
// preferred at every range.
type BlendPolicy struct {
	// LargeObjectBoxWeight is the weight of the coverage estimate for large objects.
	LargeObjectBoxWeight float32 `yaml:"large_object_box_weight" json:"large_object_box_weight"`
	// NearDepthThreshold separates near from far depth readings, in metres.
	NearDepthThreshold float32 `yaml:"near_depth_threshold" json:"near_depth_threshold"`
	// NearDepthWeight is the weight of a depth reading below NearDepthThreshold.
	NearDepthWeight float32 `yaml:"near_depth_weight" json:"near_depth_weight"`
	// FarDepthWeight is the weight of a depth reading at or beyond NearDepthThreshold.
	FarDepthWeight float32 `yaml:"far_depth_weight" json:"far_depth_weight"`
}

// DefaultBlendPolicy returns the 70/30 weighting used in the field.
func DefaultBlendPolicy() BlendPolicy {
	return BlendPolicy{
		LargeObjectBoxWeight: 0.7,
		NearDepthThreshold:   2.0,
		NearDepthWeight:      0.7,
		FarDepthWeight:       0.3,
	}
}

// LargeObject blends the coverage estimate with a depth reading for a
// frame-filling object. A single available value is used as is.
func (p BlendPolicy) LargeObject(box, depth Measurement) Measurement {
	return weighted(box, depth, p.LargeObjectBoxWeight)
}

// Standard blends a height based estimate with a depth reading. The depth
// weight depends on whether the depth reading is near or far.
func (p BlendPolicy) Standard(box, depth Measurement) Measurement {
	return weighted(depth, box, p.DepthWeight(depth.Meters))
}

// DepthWeight returns the weight given to a depth reading of depthMeters.
func (p BlendPolicy) DepthWeight(depthMeters float32) float32 {
	if depthMeters < p.NearDepthThreshold {
		return p.NearDepthWeight
	}
	return p.FarDepthWeight
}

// weighted returns w*a + (1-w)*b, falling back to whichever is valid.
func weighted(a, b Measurement, w float32) Measurement {
	switch {
	case a.Valid && b.Valid:
		return Meters(a.Meters*w + b.Meters*(1-w))
	case a.Valid:
		return a
	case b.Valid:
		return b
	default:
		return Absent()
	}
}
