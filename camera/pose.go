package camera

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rotationTolerance bounds how far RᵀR may drift from identity before a pose is rejected as non
// rigid. Poses exported from other tools are usually only single precision.
const rotationTolerance = 1e-4

// CamPose stores the 3x4 pose matrix as well as the 3D Rotation and Translation matrices.
// The pose maps world points into the camera frame: X_cam = R·X_world + t.
type CamPose struct {
	PoseMat     *mat.Dense
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewCamPoseFromMat creates a pointer to a Camera pose from a 3x4 pose dense matrix. The rotation
// block must be a proper rotation.
func NewCamPoseFromMat(pose mat.Matrix) (*CamPose, error) {
	if r, c := pose.Dims(); r != 3 || c != 4 {
		return nil, errors.Errorf("pose matrix must be 3x4, got %dx%d", r, c)
	}
	poseMat := mat.DenseCopyOf(pose)
	for _, v := range poseMat.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("pose matrix has non finite entries")
		}
	}
	rot := mat.DenseCopyOf(poseMat.Slice(0, 3, 0, 3))
	t := mat.DenseCopyOf(poseMat.Slice(0, 3, 3, 4))
	if err := checkRotation(rot); err != nil {
		return nil, err
	}
	return &CamPose{
		PoseMat:     poseMat,
		Rotation:    rot,
		Translation: t,
	}, nil
}

// NewCamPose builds a pose from a rotation and a translation vector.
func NewCamPose(rotation mat.Matrix, translation r3.Vector) (*CamPose, error) {
	if r, c := rotation.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("rotation matrix must be 3x3, got %dx%d", r, c)
	}
	t := mat.NewDense(3, 1, []float64{translation.X, translation.Y, translation.Z})
	var pose mat.Dense
	pose.Augment(rotation, t)
	return NewCamPoseFromMat(&pose)
}

// Center is the position of the camera centre in the world frame, -Rᵀt.
func (cp *CamPose) Center() r3.Vector {
	var c mat.Dense
	c.Mul(cp.Rotation.T(), cp.Translation)
	return r3.Vector{X: -c.At(0, 0), Y: -c.At(1, 0), Z: -c.At(2, 0)}
}

// Apply moves a world point into the camera frame.
func (cp *CamPose) Apply(pt r3.Vector) r3.Vector {
	r, t := cp.Rotation, cp.Translation
	return r3.Vector{
		X: r.At(0, 0)*pt.X + r.At(0, 1)*pt.Y + r.At(0, 2)*pt.Z + t.At(0, 0),
		Y: r.At(1, 0)*pt.X + r.At(1, 1)*pt.Y + r.At(1, 2)*pt.Z + t.At(1, 0),
		Z: r.At(2, 0)*pt.X + r.At(2, 1)*pt.Y + r.At(2, 2)*pt.Z + t.At(2, 0),
	}
}

// LookAt returns the pose of a camera at eye whose optical axis (+z) points to target, with +y
// pointing as close to down as possible.
func LookAt(eye, target, down r3.Vector) (*CamPose, error) {
	z := target.Sub(eye)
	if z.Norm() == 0 {
		return nil, errors.New("camera eye and target coincide")
	}
	z = z.Normalize()
	x := down.Cross(z)
	if x.Norm() < 1e-12 {
		return nil, errors.New("down direction is parallel to the optical axis")
	}
	x = x.Normalize()
	y := z.Cross(x)
	rot := mat.NewDense(3, 3, []float64{
		x.X, x.Y, x.Z,
		y.X, y.Y, y.Z,
		z.X, z.Y, z.Z,
	})
	rotEye := r3.Vector{X: x.Dot(eye), Y: y.Dot(eye), Z: z.Dot(eye)}
	return NewCamPose(rot, rotEye.Mul(-1))
}

// PosesFromStackedTransposed splits poses stored transposed and stacked ([4·n x 3], one 4x3 block
// per frame) into n 3x4 pose matrices.
func PosesFromStackedTransposed(stacked mat.Matrix) ([]*CamPose, error) {
	rows, cols := stacked.Dims()
	if cols != 3 {
		return nil, errors.Errorf("stacked transposed poses must have 3 columns, got %d", cols)
	}
	if rows == 0 || rows%4 != 0 {
		return nil, errors.Errorf("stacked transposed poses must have a multiple of 4 rows, got %d", rows)
	}
	poses := make([]*CamPose, 0, rows/4)
	for frame := 0; frame < rows/4; frame++ {
		block := mat.NewDense(3, 4, nil)
		for i := 0; i < 4; i++ {
			for j := 0; j < 3; j++ {
				block.Set(j, i, stacked.At(frame*4+i, j))
			}
		}
		pose, err := NewCamPoseFromMat(block)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", frame)
		}
		poses = append(poses, pose)
	}
	return poses, nil
}

func checkRotation(rot *mat.Dense) error {
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.
			if i == j {
				expected = 1
			}
			if math.Abs(rtr.At(i, j)-expected) > rotationTolerance {
				return errors.New("pose rotation block is not orthonormal")
			}
		}
	}
	if mat.Det(rot) < 0 {
		return errors.New("pose rotation block is a reflection")
	}
	return nil
}
