// Package evaluation compares estimates against ground truth ellipsoids and input detections.
package evaluation

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/lfd/conic"
	"go.viam.com/lfd/detection"
	"go.viam.com/lfd/quadric"
)

// QuadricComparison compares the estimated and true ellipsoid of one object. When either quadric
// is not a real ellipsoid Valid is false and the errors are NaN.
type QuadricComparison struct {
	Object string `json:"object"`
	Valid  bool   `json:"valid"`
	// CenterError is the distance between the centres, in world units.
	CenterError float64 `json:"center_error"`
	// AxesError is the norm of the difference of the sorted semi-axes, in world units.
	AxesError float64 `json:"axes_error"`
	// Distance is the scale free matrix distance, see quadric.Distance.
	Distance float64 `json:"distance"`
}

// CompareQuadrics compares every estimated quadric with its ground truth.
func CompareQuadrics(estimated, truth []quadric.Quadric, objects *detection.ObjectIndex) ([]QuadricComparison, error) {
	if len(estimated) != len(truth) {
		return nil, errors.Errorf("%d estimated quadrics for %d ground truth quadrics", len(estimated), len(truth))
	}
	if objects == nil {
		objects = detection.NewNumberedObjectIndex(len(truth))
	}
	if objects.Len() != len(truth) {
		return nil, errors.Errorf("%d object identifiers for %d quadrics", objects.Len(), len(truth))
	}
	comparisons := make([]QuadricComparison, 0, len(truth))
	for obj := range truth {
		cmp := QuadricComparison{
			Object:      objects.ID(obj),
			CenterError: math.NaN(),
			AxesError:   math.NaN(),
			Distance:    quadric.Distance(estimated[obj], truth[obj]),
		}
		est, errEst := estimated[obj].Ellipsoid()
		gt, errGT := truth[obj].Ellipsoid()
		if errEst == nil && errGT == nil {
			cmp.Valid = true
			cmp.CenterError = est.Center.Sub(gt.Center).Norm()
			cmp.AxesError = est.Axes.Sub(gt.Axes).Norm()
		}
		comparisons = append(comparisons, cmp)
	}
	return comparisons, nil
}

// EllipseComparison compares an estimated ellipse with the input ellipse of the same detection.
type EllipseComparison struct {
	Frame  int    `json:"frame"`
	Object string `json:"object"`
	// CenterOffset is the distance between the centres, in pixels.
	CenterOffset float64 `json:"center_offset"`
	// IoU is the intersection over union of the bounding boxes of the two ellipses.
	IoU float64 `json:"iou"`
	// Distance is the scale free matrix distance, see conic.Distance.
	Distance float64 `json:"distance"`
}

// CompareEllipses compares estimated and input ellipses wherever both are defined, frame by
// frame.
func CompareEllipses(estimated, input [][]conic.Ellipse, objects *detection.ObjectIndex) ([]EllipseComparison, error) {
	if len(estimated) != len(input) {
		return nil, errors.Errorf("%d frames of estimates for %d frames of inputs", len(estimated), len(input))
	}
	var comparisons []EllipseComparison
	for frame := range input {
		if len(estimated[frame]) != len(input[frame]) {
			return nil, errors.Errorf("frame %d: %d estimates for %d inputs", frame, len(estimated[frame]), len(input[frame]))
		}
		if objects == nil {
			objects = detection.NewNumberedObjectIndex(len(input[frame]))
		}
		if objects.Len() != len(input[frame]) {
			return nil, errors.Errorf("frame %d: %d object identifiers for %d ellipses", frame, objects.Len(), len(input[frame]))
		}
		for obj, in := range input[frame] {
			est := estimated[frame][obj]
			if !in.IsDefined() || !est.IsDefined() {
				continue
			}
			comparisons = append(comparisons, EllipseComparison{
				Frame:        frame,
				Object:       objects.ID(obj),
				CenterOffset: est.Center().Sub(in.Center()).Norm(),
				IoU:          BoxIoU(est.BoundingBox(), in.BoundingBox()),
				Distance:     conic.Distance(est, in),
			})
		}
	}
	return comparisons, nil
}

// BoxIoU is the intersection over union of two boxes, 0 when they do not overlap.
func BoxIoU(a, b detection.BoundingBox) float64 {
	ra, rb := a.Rect(), b.Rect()
	inter := area(ra.Intersection(rb).Size())
	union := area(ra.Size()) + area(rb.Size()) - inter
	if union <= 0 || math.IsNaN(union) {
		return 0
	}
	return inter / union
}

func area(size r2.Point) float64 {
	if size.X <= 0 || size.Y <= 0 {
		return 0
	}
	return size.X * size.Y
}

// Summary describes a sample of errors.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// Summarize computes summary statistics of the finite values.
func Summarize(values []float64) (Summary, error) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			data = append(data, v)
		}
	}
	if len(data) == 0 {
		return Summary{}, errors.New("no finite values to summarize")
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return Summary{}, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return Summary{}, err
	}
	maximum, err := stats.Max(data)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Count: len(data), Mean: mean, Median: median, StdDev: stdDev, Max: maximum}, nil
}

// CenterErrors extracts the centre errors of a set of comparisons.
func CenterErrors(comparisons []QuadricComparison) []float64 {
	values := make([]float64, 0, len(comparisons))
	for _, c := range comparisons {
		values = append(values, c.CenterError)
	}
	return values
}

// IoUs extracts the intersection over union of a set of comparisons.
func IoUs(comparisons []EllipseComparison) []float64 {
	values := make([]float64, 0, len(comparisons))
	for _, c := range comparisons {
		values = append(values, c.IoU)
	}
	return values
}
