// Package camera holds per-frame calibrated camera models: intrinsics K, world to camera pose M
// and the derived projection P = K·M.
package camera

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CameraModel is the calibrated camera of one frame. It is immutable once built: accessors
// return copies.
type CameraModel struct {
	k    *mat.Dense
	pose *CamPose
	p    *mat.Dense
}

// NewCameraModel builds a camera model from a 3x3 intrinsics matrix and a 3x4 pose matrix.
func NewCameraModel(k, pose mat.Matrix) (*CameraModel, error) {
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("intrinsics matrix must be 3x3, got %dx%d", r, c)
	}
	kCopy := mat.DenseCopyOf(k)
	for _, v := range kCopy.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, NewNoIntrinsicsError("intrinsics matrix has non finite entries")
		}
	}
	if det := mat.Det(kCopy); det == 0 {
		return nil, NewNoIntrinsicsError("intrinsics matrix is singular")
	}
	camPose, err := NewCamPoseFromMat(pose)
	if err != nil {
		return nil, err
	}
	var p mat.Dense
	p.Mul(kCopy, camPose.PoseMat)
	return &CameraModel{k: kCopy, pose: camPose, p: &p}, nil
}

// NewCameraModelFromIntrinsics builds a camera model from pinhole parameters and a pose.
func NewCameraModelFromIntrinsics(intrinsics *PinholeCameraIntrinsics, pose *CamPose) (*CameraModel, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if pose == nil {
		return nil, errors.New("camera pose is nil")
	}
	return NewCameraModel(intrinsics.GetCameraMatrix(), pose.PoseMat)
}

// NewCameraModels builds one model per pose sharing the same intrinsics, the usual setup of a
// single moving camera.
func NewCameraModels(k mat.Matrix, poses []*CamPose) ([]*CameraModel, error) {
	models := make([]*CameraModel, 0, len(poses))
	for i, pose := range poses {
		if pose == nil {
			return nil, errors.Errorf("frame %d: camera pose is nil", i)
		}
		model, err := NewCameraModel(k, pose.PoseMat)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		models = append(models, model)
	}
	return models, nil
}

// K returns a copy of the 3x3 intrinsics matrix.
func (cm *CameraModel) K() *mat.Dense {
	return mat.DenseCopyOf(cm.k)
}

// Pose returns a copy of the 3x4 world to camera matrix.
func (cm *CameraModel) Pose() *mat.Dense {
	return mat.DenseCopyOf(cm.pose.PoseMat)
}

// Projection returns a copy of the 3x4 projection matrix P = K·M.
func (cm *CameraModel) Projection() *mat.Dense {
	return mat.DenseCopyOf(cm.p)
}

// Center is the camera centre in the world frame.
func (cm *CameraModel) Center() r3.Vector {
	return cm.pose.Center()
}

// ProjectPoint maps a world point to pixel coordinates. ok is false for points on the plane
// through the camera centre parallel to the image.
func (cm *CameraModel) ProjectPoint(pt r3.Vector) (r2.Point, bool) {
	p := cm.p
	u := p.At(0, 0)*pt.X + p.At(0, 1)*pt.Y + p.At(0, 2)*pt.Z + p.At(0, 3)
	v := p.At(1, 0)*pt.X + p.At(1, 1)*pt.Y + p.At(1, 2)*pt.Z + p.At(1, 3)
	w := p.At(2, 0)*pt.X + p.At(2, 1)*pt.Y + p.At(2, 2)*pt.Z + p.At(2, 3)
	if w == 0 {
		return r2.Point{X: math.NaN(), Y: math.NaN()}, false
	}
	return r2.Point{X: u / w, Y: v / w}, true
}

// InFront reports whether a world point lies in front of the camera.
func (cm *CameraModel) InFront(pt r3.Vector) bool {
	return cm.pose.Apply(pt).Z > 0
}
