package controller

import (
	"log/slog"

	"github.com/nvr-ai/go-wayfinder/annotate"
	"github.com/nvr-ai/go-wayfinder/distance"
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/internal/log"
	"github.com/nvr-ai/go-wayfinder/models"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
	"github.com/nvr-ai/go-wayfinder/profiler"
	"github.com/pkg/errors"
)

// ErrInvalidFrame is returned for frames without a positive size.
var ErrInvalidFrame = errors.New("invalid frame")

// ErrNoDepth is returned by StaticDepths for boxes it holds no reading for.
var ErrNoDepth = errors.New("no depth reading for box")

// Frame is one camera frame worth of detector output.
type Frame struct {
	// ID identifies the frame in logs and published events.
	ID string
	// Width and Height are the frame size in pixels.
	Width  int
	Height int
	// Detections holds the raw results keyed by detector name.
	Detections map[string][]postprocess.Result
	// Depth optionally supplies an external distance per box.
	Depth annotate.DepthEstimator
	// Target is an optional label the user asked to be guided to.
	Target string
}

// Outcome is the result of processing one frame.
type Outcome struct {
	FrameID string
	// Detections are the fused, annotated detections nearest first.
	Detections []annotate.Detection
	// Command is the obstacle avoidance decision.
	Command NavigationCommand
	// Guidance is set when the frame carried a target.
	Guidance *NavigationCommand
	// Raw is the number of detections before fusion.
	Raw int
}

// PipelineConfig groups the policies of every stage.
type PipelineConfig struct {
	Fusion     postprocess.FusionConfig
	Blend      distance.BlendPolicy
	Thresholds ThresholdConfig
}

// DefaultPipelineConfig returns the default policy of every stage.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Fusion:     postprocess.DefaultFusionConfig(),
		Blend:      distance.DefaultBlendPolicy(),
		Thresholds: DefaultThresholdConfig(),
	}
}

// PipelineOptions holds optional collaborators.
type PipelineOptions struct {
	// Profiler records stage timings. May be nil.
	Profiler *profiler.Profiler
	// Logger defaults to the global logger.
	Logger *slog.Logger
}

// Pipeline runs fusion, annotation and the navigation decision for a frame.
type Pipeline struct {
	fuser     *postprocess.Fuser
	annotator *annotate.Annotator
	navigator *Navigator
	profiler  *profiler.Profiler
	logger    *slog.Logger
}

// NewPipeline wires the stages around one set of reference tables.
//
// Arguments:
//   - config: Stage policies.
//   - tables: Reference tables shared by the fuser and the estimator.
//   - opts: Optional profiler and logger.
//
// Returns:
//   - *Pipeline: The pipeline, safe for concurrent use.
//   - error: ErrInvalidThresholds if the navigation thresholds are unusable.
func NewPipeline(config PipelineConfig, tables *models.ReferenceTables, opts PipelineOptions) (*Pipeline, error) {
	if tables == nil {
		tables = models.DefaultReferenceTables()
	}
	navigator, err := NewNavigator(config.Thresholds)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.L()
	}
	return &Pipeline{
		fuser:     postprocess.NewFuser(config.Fusion, tables),
		annotator: annotate.NewAnnotator(distance.NewEstimator(tables), config.Blend),
		navigator: navigator,
		profiler:  opts.Profiler,
		logger:    logger.With("component", "pipeline"),
	}, nil
}

// Navigator returns the pipeline's decision engine.
func (p *Pipeline) Navigator() *Navigator {
	return p.navigator
}

// Process turns one frame of raw detections into annotated detections and a
// navigation command.
//
// Arguments:
//   - frame: The frame to process.
//
// Returns:
//   - Outcome: Annotated detections sorted by distance and the decision.
//   - error: ErrInvalidFrame if the frame size is not positive.
func (p *Pipeline) Process(frame Frame) (Outcome, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return Outcome{}, errors.Wrapf(ErrInvalidFrame, "frame %q size %dx%d", frame.ID, frame.Width, frame.Height)
	}
	defer p.profiler.StartOperation("pipeline.process")()

	raw := 0
	for _, dets := range frame.Detections {
		raw += len(dets)
	}

	done := p.profiler.StartOperation("pipeline.fuse")
	fused := p.fuser.Fuse(frame.Detections)
	done()

	done = p.profiler.StartOperation("pipeline.annotate")
	annotated := p.annotator.AnnotateAll(fused, frame.Width, frame.Height, frame.Depth,
		func(det postprocess.Result, err error) {
			p.logger.Debug("depth unavailable", "frame", frame.ID, "label", det.Label, "error", err)
		})
	annotate.SortByDistance(annotated)
	done()

	done = p.profiler.StartOperation("pipeline.decide")
	out := Outcome{
		FrameID:    frame.ID,
		Detections: annotated,
		Command:    p.navigator.Decide(annotated),
		Raw:        raw,
	}
	if frame.Target != "" {
		guidance := p.navigator.Guide(annotated, frame.Target)
		out.Guidance = &guidance
	}
	done()

	p.profiler.RecordMetric("pipeline.detections_raw", float64(raw))
	p.profiler.RecordMetric("pipeline.detections_fused", float64(len(fused)))

	p.logger.Debug("frame processed",
		"frame", frame.ID,
		"raw", raw,
		"fused", len(fused),
		"command", out.Command.Command,
		"reason", out.Command.Reason,
	)
	return out, nil
}

// StaticDepths is a DepthEstimator backed by precomputed readings, keyed by
// the exact box they were measured for.
type StaticDepths map[images.Rect]float32

// EstimateDepth returns the reading for box.
func (s StaticDepths) EstimateDepth(box images.Rect) (float32, error) {
	d, ok := s[box]
	if !ok {
		return 0, ErrNoDepth
	}
	return d, nil
}
