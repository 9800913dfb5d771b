package detection

import (
	"strings"

	"github.com/pkg/errors"
)

// VisibilityMatrix flags, per frame and object, whether a real detection exists. It is derived
// from the detections and never authored directly.
type VisibilityMatrix struct {
	frames, objects int
	data            []bool
}

// NewVisibilityMatrix copies a frames × objects table of flags.
func NewVisibilityMatrix(rows [][]bool) (VisibilityMatrix, error) {
	if len(rows) == 0 {
		return VisibilityMatrix{}, nil
	}
	objects := len(rows[0])
	data := make([]bool, 0, len(rows)*objects)
	for frame, row := range rows {
		if len(row) != objects {
			return VisibilityMatrix{}, errors.Errorf("visibility row %d has %d objects, expected %d", frame, len(row), objects)
		}
		data = append(data, row...)
	}
	return VisibilityMatrix{frames: len(rows), objects: objects, data: data}, nil
}

// ResolveVisibility marks every box visible unless it is exactly the Sentinel. Rows shorter than
// the longest row are padded with invisible entries.
func ResolveVisibility(boxes [][]BoundingBox) VisibilityMatrix {
	objects := 0
	for _, row := range boxes {
		if len(row) > objects {
			objects = len(row)
		}
	}
	vm := VisibilityMatrix{frames: len(boxes), objects: objects, data: make([]bool, len(boxes)*objects)}
	for frame, row := range boxes {
		for obj, bb := range row {
			vm.data[frame*objects+obj] = !bb.IsSentinel()
		}
	}
	return vm
}

// Dims returns the number of frames and objects.
func (vm VisibilityMatrix) Dims() (int, int) {
	return vm.frames, vm.objects
}

// At reports whether object obj has a real detection in frame.
func (vm VisibilityMatrix) At(frame, obj int) bool {
	if frame < 0 || frame >= vm.frames || obj < 0 || obj >= vm.objects {
		panic(errors.Errorf("visibility index (%d, %d) out of range (%d, %d)", frame, obj, vm.frames, vm.objects))
	}
	return vm.data[frame*vm.objects+obj]
}

// Row returns the flags of one frame.
func (vm VisibilityMatrix) Row(frame int) []bool {
	row := make([]bool, vm.objects)
	copy(row, vm.data[frame*vm.objects:(frame+1)*vm.objects])
	return row
}

// VisibleFrames returns, in order, the frames where obj is visible.
func (vm VisibilityMatrix) VisibleFrames(obj int) []int {
	var frames []int
	for frame := 0; frame < vm.frames; frame++ {
		if vm.At(frame, obj) {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Rows returns a copy of the whole table.
func (vm VisibilityMatrix) Rows() [][]bool {
	rows := make([][]bool, vm.frames)
	for frame := range rows {
		rows[frame] = vm.Row(frame)
	}
	return rows
}

func (vm VisibilityMatrix) String() string {
	var sb strings.Builder
	for frame := 0; frame < vm.frames; frame++ {
		sb.WriteByte('[')
		for obj := 0; obj < vm.objects; obj++ {
			if obj > 0 {
				sb.WriteByte(' ')
			}
			if vm.At(frame, obj) {
				sb.WriteString(" True")
			} else {
				sb.WriteString("False")
			}
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
