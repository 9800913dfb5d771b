// Package lfd localises objects from detections: it estimates one ellipsoid per object from its
// bounding boxes in several calibrated frames and projects the estimates back into every frame.
package lfd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/camera"
	"go.viam.com/lfd/conic"
	"go.viam.com/lfd/detection"
	"go.viam.com/lfd/logging"
	"go.viam.com/lfd/quadric"
	"go.viam.com/lfd/utils"
)

// estimateObject is swapped out in tests.
var estimateObject = (*quadric.Estimator).EstimateObject

// Scene is the read-only input of a run: one camera per frame and the detection table.
type Scene struct {
	Cameras    []*camera.CameraModel
	Detections *detection.Detections
}

// Validate checks that the cameras and detections describe the same frames.
func (s *Scene) Validate() error {
	if s == nil {
		return errors.New("scene is nil")
	}
	if s.Detections == nil {
		return errors.New("scene has no detections")
	}
	var errs error
	if len(s.Cameras) != s.Detections.NumFrames() {
		errs = multierr.Append(errs, errors.Errorf("%d cameras for %d frames of detections", len(s.Cameras), s.Detections.NumFrames()))
	}
	for i, cam := range s.Cameras {
		if cam == nil {
			errs = multierr.Append(errs, errors.Errorf("frame %d has no camera", i))
		}
	}
	return errs
}

// Options tunes a run. The zero value estimates sequentially with the default estimator
// settings and no logging.
type Options struct {
	// MinViews raises the number of frames an object must be detected in; see quadric.MinViews.
	MinViews int
	// Tolerance is the relative tolerance of the ellipsoid validity check.
	Tolerance float64
	// Parallel spreads objects over worker goroutines.
	Parallel bool
	Logger   logging.Logger
}

// Results holds everything a run produces, indexed by frame then object where two dimensional.
type Results struct {
	// InputEllipses are the ellipses inscribed in the detections, undefined where an object is
	// not visible.
	InputEllipses [][]conic.Ellipse
	// EstimatedEllipses are the projections of the estimated quadrics in every frame, undefined
	// where the quadric is undefined.
	EstimatedEllipses [][]conic.Ellipse
	// VisibleEstimatedEllipses are EstimatedEllipses with the frames where the object is not
	// visible left undefined.
	VisibleEstimatedEllipses [][]conic.Ellipse
	// EstimatedQuadrics holds one quadric per object, undefined where estimation failed.
	EstimatedQuadrics []quadric.Quadric
	// Failures explains, per object, why its quadric is undefined: nil,
	// quadric.ErrInsufficientObservations or quadric.ErrDegenerateEstimate.
	Failures   []error
	Visibility detection.VisibilityMatrix
	Objects    *detection.ObjectIndex
	Duration   time.Duration
}

// DefinedObjects lists the objects with a defined quadric.
func (r *Results) DefinedObjects() []int {
	var objs []int
	for obj, q := range r.EstimatedQuadrics {
		if q.IsDefined() {
			objs = append(objs, obj)
		}
	}
	return objs
}

// ComputeEstimates estimates the quadric of every object of the scene and projects it into every
// frame. Objects that cannot be estimated are reported in Results.Failures; the returned error is
// reserved for malformed input and cancellation.
func ComputeEstimates(ctx context.Context, scene *Scene, opts Options) (*Results, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewBlankLogger("lfd")
	}
	start := time.Now()

	det := scene.Detections
	vis := det.Visibility()
	numFrames, numObjects := det.NumFrames(), det.NumObjects()
	projections := make([]*mat.Dense, numFrames)
	for frame, cam := range scene.Cameras {
		projections[frame] = cam.Projection()
	}

	inputs, err := InputEllipses(det)
	if err != nil {
		return nil, err
	}

	est := &quadric.Estimator{MinViews: opts.MinViews, Tolerance: opts.Tolerance, Logger: logger.Sublogger("quadric")}
	quadrics := make([]quadric.Quadric, numObjects)
	failures := make([]error, numObjects)
	malformed := make([]error, numObjects)
	done := make([]bool, numObjects)
	err = utils.ForEach(ctx, numObjects, opts.Parallel, func(obj int) {
		obs := make(quadric.ObservationSet, 0, numFrames)
		for _, frame := range vis.VisibleFrames(obj) {
			obs = append(obs, quadric.Observation{Frame: frame, Ellipse: inputs[frame][obj], P: projections[frame]})
		}
		q, err := estimateObject(est, obs)
		id := det.Objects().ID(obj)
		switch {
		case err == nil:
			logger.CDebugw(ctx, "estimated object", "object", id, "frames", obs.Frames())
		case errors.Is(err, quadric.ErrInsufficientObservations):
			logger.Infow("object detected in too few frames, not estimated", "object", id, "frames", obs.Frames())
			failures[obj] = err
		case errors.Is(err, quadric.ErrDegenerateEstimate):
			logger.Warnw("estimate for object is not an ellipsoid", "object", id, "frames", obs.Frames(), "error", err)
			failures[obj] = err
		default:
			malformed[obj] = errors.Wrapf(err, "object %q", id)
		}
		quadrics[obj] = q
		done[obj] = true
	})
	if err != nil {
		return nil, err
	}
	// a worker that panicked leaves its objects unset
	for obj, ok := range done {
		if !ok {
			quadrics[obj] = quadric.Undefined()
			malformed[obj] = errors.Errorf("object %q: estimation did not complete", det.Objects().ID(obj))
		}
	}
	if err := multierr.Combine(malformed...); err != nil {
		return nil, err
	}

	all := newEllipseTable(numFrames, numObjects)
	masked := newEllipseTable(numFrames, numObjects)
	err = utils.ForEach(ctx, numObjects, opts.Parallel, func(obj int) {
		for frame, p := range projections {
			all[frame][obj] = quadric.Project(quadrics[obj], p)
			if vis.At(frame, obj) {
				masked[frame][obj] = all[frame][obj]
			} else {
				masked[frame][obj] = conic.UndefinedEllipse()
			}
		}
	})
	if err != nil {
		return nil, err
	}

	results := &Results{
		InputEllipses:        inputs,
		EstimatedEllipses:        all,
		VisibleEstimatedEllipses: masked,
		EstimatedQuadrics:        quadrics,
		Failures:                 failures,
		Visibility:               vis,
		Objects:                  det.Objects(),
		Duration:                 time.Since(start),
	}
	logger.Infow("computed estimates",
		"frames", numFrames,
		"objects", numObjects,
		"estimated", len(results.DefinedObjects()),
		"duration", results.Duration,
	)
	return results, nil
}

// InputEllipses converts every visible detection into its inscribed ellipse. Invisible entries
// are undefined.
func InputEllipses(det *detection.Detections) ([][]conic.Ellipse, error) {
	vis := det.Visibility()
	table := newEllipseTable(det.NumFrames(), det.NumObjects())
	var errs error
	for frame := range table {
		for obj := range table[frame] {
			if !vis.At(frame, obj) {
				table[frame][obj] = conic.UndefinedEllipse()
				continue
			}
			e, err := conic.FromBoundingBox(det.Box(frame, obj))
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "frame %d object %q", frame, det.Objects().ID(obj)))
			}
			table[frame][obj] = e
		}
	}
	if errs != nil {
		return nil, errs
	}
	return table, nil
}

func newEllipseTable(frames, objects int) [][]conic.Ellipse {
	table := make([][]conic.Ellipse, frames)
	for frame := range table {
		table[frame] = make([]conic.Ellipse, objects)
	}
	return table
}
