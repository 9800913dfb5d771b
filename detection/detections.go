package detection

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Detections is the read-only table of boxes of a run: one row per frame, one column per object.
type Detections struct {
	objects    *ObjectIndex
	boxes      [][]BoundingBox
	visibility VisibilityMatrix
}

// NewDetections validates and copies a frames × objects table of boxes. Every box that is not
// the Sentinel must be well formed, so that every visible detection can be turned into an
// ellipse. If objects is nil the columns are numbered.
func NewDetections(boxes [][]BoundingBox, objects *ObjectIndex) (*Detections, error) {
	if len(boxes) == 0 {
		return nil, errors.New("detections need at least one frame")
	}
	numObjects := len(boxes[0])
	if objects == nil {
		objects = NewNumberedObjectIndex(numObjects)
	}
	if objects.Len() != numObjects {
		return nil, errors.Errorf("%d object identifiers for %d detection columns", objects.Len(), numObjects)
	}

	var errs error
	table := make([][]BoundingBox, len(boxes))
	for frame, row := range boxes {
		if len(row) != numObjects {
			errs = multierr.Append(errs, errors.Errorf("frame %d has %d boxes, expected %d", frame, len(row), numObjects))
			continue
		}
		for obj, bb := range row {
			if !bb.IsSentinel() && !bb.IsWellFormed() {
				errs = multierr.Append(errs, errors.Errorf("frame %d object %q: malformed bounding box %v", frame, objects.ID(obj), bb))
			}
		}
		table[frame] = append([]BoundingBox(nil), row...)
	}
	if errs != nil {
		return nil, errs
	}
	return &Detections{objects: objects, boxes: table, visibility: ResolveVisibility(table)}, nil
}

// NewDetectionsFromRows reads the flat layout: one row per frame holding 4 values per object.
func NewDetectionsFromRows(rows [][]float64, objects *ObjectIndex) (*Detections, error) {
	boxes := make([][]BoundingBox, len(rows))
	for frame, row := range rows {
		if len(row)%CornersPerBox != 0 {
			return nil, errors.Errorf("frame %d has %d values, not a multiple of %d", frame, len(row), CornersPerBox)
		}
		boxes[frame] = make([]BoundingBox, len(row)/CornersPerBox)
		for obj := range boxes[frame] {
			bb, err := NewBoundingBox(row[obj*CornersPerBox : (obj+1)*CornersPerBox])
			if err != nil {
				return nil, err
			}
			boxes[frame][obj] = bb
		}
	}
	return NewDetections(boxes, objects)
}

// WithVisibility returns detections using a supplied visibility matrix instead of the derived
// one. It may hide real detections but cannot reveal a Sentinel.
func (d *Detections) WithVisibility(vm VisibilityMatrix) (*Detections, error) {
	frames, objects := vm.Dims()
	if frames != d.NumFrames() || objects != d.NumObjects() {
		return nil, errors.Errorf("visibility is %dx%d, detections are %dx%d", frames, objects, d.NumFrames(), d.NumObjects())
	}
	for frame := 0; frame < frames; frame++ {
		for obj := 0; obj < objects; obj++ {
			if vm.At(frame, obj) && d.boxes[frame][obj].IsSentinel() {
				return nil, errors.Errorf("frame %d object %q is marked visible but has no detection", frame, d.objects.ID(obj))
			}
		}
	}
	return &Detections{objects: d.objects, boxes: d.boxes, visibility: vm}, nil
}

// NumFrames is the number of frames.
func (d *Detections) NumFrames() int {
	return len(d.boxes)
}

// NumObjects is the number of objects.
func (d *Detections) NumObjects() int {
	return d.objects.Len()
}

// Objects returns the object index.
func (d *Detections) Objects() *ObjectIndex {
	return d.objects
}

// Box returns the box of an object column in a frame.
func (d *Detections) Box(frame, obj int) BoundingBox {
	return d.boxes[frame][obj]
}

// Visibility returns the visibility matrix.
func (d *Detections) Visibility() VisibilityMatrix {
	return d.visibility
}

// Rows returns the detections in the flat layout.
func (d *Detections) Rows() [][]float64 {
	rows := make([][]float64, len(d.boxes))
	for frame, row := range d.boxes {
		rows[frame] = make([]float64, 0, len(row)*CornersPerBox)
		for _, bb := range row {
			rows[frame] = append(rows[frame], bb.Corners()...)
		}
	}
	return rows
}
