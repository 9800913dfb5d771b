package testutils

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/camera"
	"go.viam.com/lfd/conic"
	"go.viam.com/lfd/detection"
	"go.viam.com/lfd/quadric"
)

// SceneIntrinsics are the intrinsics of every synthetic camera: a 640x480 sensor.
func SceneIntrinsics() *camera.PinholeCameraIntrinsics {
	return &camera.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Ppx: 320, Ppy: 240}
}

// RingOfCameras places numFrames cameras evenly on a horizontal circle of the given radius and
// height around the world z axis, all looking at the origin with image y pointing down.
func RingOfCameras(numFrames int, radius, height float64) ([]*camera.CameraModel, error) {
	if numFrames <= 0 {
		return nil, errors.New("need at least one camera")
	}
	k := SceneIntrinsics().GetCameraMatrix()
	down := r3.Vector{X: 0, Y: 0, Z: -1}
	cameras := make([]*camera.CameraModel, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		theta := 2 * math.Pi * float64(i) / float64(numFrames)
		eye := r3.Vector{X: radius * math.Cos(theta), Y: radius * math.Sin(theta), Z: height}
		pose, err := camera.LookAt(eye, r3.Vector{}, down)
		if err != nil {
			return nil, err
		}
		cm, err := camera.NewCameraModel(k, pose.PoseMat)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, cm)
	}
	return cameras, nil
}

// RotationZX is the rotation by yaw about z followed by pitch about x.
func RotationZX(yaw, pitch float64) *mat.Dense {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	rz := mat.NewDense(3, 3, []float64{cy, -sy, 0, sy, cy, 0, 0, 0, 1})
	rx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, cp, -sp, 0, sp, cp})
	var rot mat.Dense
	rot.Mul(rx, rz)
	return &rot
}

// DefaultEllipsoids is a small table top: six objects of different sizes and orientations
// around the origin.
func DefaultEllipsoids() []quadric.Ellipsoid {
	return []quadric.Ellipsoid{
		{Center: r3.Vector{X: 0, Y: 0, Z: 0.1}, Axes: r3.Vector{X: 0.12, Y: 0.08, Z: 0.05}, Rotation: RotationZX(0.3, 0)},
		{Center: r3.Vector{X: 0.35, Y: -0.2, Z: 0.15}, Axes: r3.Vector{X: 0.2, Y: 0.1, Z: 0.06}, Rotation: RotationZX(-0.7, 0.2)},
		{Center: r3.Vector{X: -0.3, Y: 0.25, Z: 0.08}, Axes: r3.Vector{X: 0.09, Y: 0.07, Z: 0.04}, Rotation: RotationZX(1.1, -0.1)},
		{Center: r3.Vector{X: 0.2, Y: 0.35, Z: 0.2}, Axes: r3.Vector{X: 0.15, Y: 0.15, Z: 0.1}, Rotation: RotationZX(0, 0.4)},
		{Center: r3.Vector{X: -0.25, Y: -0.3, Z: 0.05}, Axes: r3.Vector{X: 0.06, Y: 0.05, Z: 0.03}, Rotation: RotationZX(2.0, 0)},
		{Center: r3.Vector{X: 0.05, Y: -0.45, Z: 0.12}, Axes: r3.Vector{X: 0.1, Y: 0.04, Z: 0.04}, Rotation: RotationZX(-1.4, 0.3)},
	}
}

// SyntheticScene is a noiseless scene: ground truth ellipsoids seen by a ring of cameras.
type SyntheticScene struct {
	Cameras    []*camera.CameraModel
	Ellipsoids []quadric.Ellipsoid
	Truth      []quadric.Quadric
}

// NewSyntheticScene builds a scene of numFrames cameras on a 3m ring, 1.5m high, looking at
// the given ellipsoids.
func NewSyntheticScene(numFrames int, ellipsoids []quadric.Ellipsoid) (*SyntheticScene, error) {
	cameras, err := RingOfCameras(numFrames, 3, 1.5)
	if err != nil {
		return nil, err
	}
	truth := make([]quadric.Quadric, 0, len(ellipsoids))
	for i, e := range ellipsoids {
		q, err := e.Quadric()
		if err != nil {
			return nil, errors.Wrapf(err, "ellipsoid %d", i)
		}
		truth = append(truth, q.Normalized())
	}
	return &SyntheticScene{Cameras: cameras, Ellipsoids: ellipsoids, Truth: truth}, nil
}

// Ellipse is the exact image of object obj in frame.
func (s *SyntheticScene) Ellipse(frame, obj int) conic.Ellipse {
	return quadric.Project(s.Truth[obj], s.Cameras[frame].Projection())
}

// Observations returns the exact views of obj in the given frames.
func (s *SyntheticScene) Observations(obj int, frames []int) quadric.ObservationSet {
	obs := make(quadric.ObservationSet, 0, len(frames))
	for _, frame := range frames {
		obs = append(obs, quadric.Observation{
			Frame:   frame,
			Ellipse: s.Ellipse(frame, obj),
			P:       s.Cameras[frame].Projection(),
		})
	}
	return obs
}

// BoundingBoxes returns the tight box of every object in every frame, or the Sentinel where
// visible reports false. A nil visible marks everything visible.
func (s *SyntheticScene) BoundingBoxes(visible func(frame, obj int) bool) [][]detection.BoundingBox {
	boxes := make([][]detection.BoundingBox, len(s.Cameras))
	for frame := range s.Cameras {
		boxes[frame] = make([]detection.BoundingBox, len(s.Truth))
		for obj := range s.Truth {
			if visible != nil && !visible(frame, obj) {
				boxes[frame][obj] = detection.Sentinel
				continue
			}
			boxes[frame][obj] = s.Ellipse(frame, obj).BoundingBox()
		}
	}
	return boxes
}

// AllFrames lists the frames of the scene.
func (s *SyntheticScene) AllFrames() []int {
	frames := make([]int, len(s.Cameras))
	for i := range frames {
		frames[i] = i
	}
	return frames
}
