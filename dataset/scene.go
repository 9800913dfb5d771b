// Package dataset reads and writes scene files: the cameras, detections and optional ground truth
// of one run, stored as JSON.
package dataset

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/camera"
	"go.viam.com/lfd/detection"
	"go.viam.com/lfd/lfd"
	"go.viam.com/lfd/quadric"
	lfdutils "go.viam.com/lfd/utils"
)

// Scene is the on-disk description of a run.
type Scene struct {
	Name string `json:"name,omitempty"`
	// Intrinsics is the 3x3 matrix K shared by every frame.
	Intrinsics [][]float64 `json:"intrinsics,omitempty"`
	// Camera holds pinhole parameters shared by every frame, in place of Intrinsics.
	Camera *camera.PinholeCameraIntrinsics `json:"camera,omitempty"`
	// IntrinsicsFile names a JSON file of pinhole parameters, relative to the scene file, in place
	// of Intrinsics.
	IntrinsicsFile string `json:"intrinsics_file,omitempty"`
	// PosesTransposed stacks the transposed 3x4 world to camera matrix of every frame, 4 rows of
	// 3 values per frame.
	PosesTransposed [][]float64 `json:"poses_transposed,omitempty"`
	// Poses holds the 3x4 world to camera matrix of every frame. Exactly one of Poses and
	// PosesTransposed must be set.
	Poses [][][]float64 `json:"poses,omitempty"`
	// Objects names the objects in column order. Columns are numbered when empty.
	Objects []string `json:"objects,omitempty"`
	// Detections holds one row per frame of 4 values per object: x0, y0, x1, y1. The box
	// 1, 1, 1, 2 means the object was not detected.
	Detections [][]float64 `json:"detections" jsonschema:"required"`
	// Visibility optionally hides detections. It cannot mark a missing detection visible.
	Visibility [][]bool `json:"visibility,omitempty"`
	// GroundTruth optionally holds the true dual quadric of every object.
	GroundTruth []quadric.Quadric `json:"ground_truth,omitempty"`
}

// Validate checks the shape of the scene file. Cameras are optional, so that detections can be
// inspected on their own, but intrinsics and poses go together.
func (s *Scene) Validate(path string) error {
	if len(s.Detections) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "detections")
	}
	hasPoses := len(s.Poses) != 0 || len(s.PosesTransposed) != 0
	switch {
	case len(s.Poses) != 0 && len(s.PosesTransposed) != 0:
		return utils.NewConfigValidationError(path, errors.New("only one of poses and poses_transposed may be set"))
	case s.intrinsicSources() > 1:
		return utils.NewConfigValidationError(path,
			errors.New("only one of intrinsics, camera and intrinsics_file may be set"))
	case hasPoses && !s.HasCameras():
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsics")
	case !hasPoses && s.HasCameras():
		return utils.NewConfigValidationFieldRequiredError(path, "poses")
	}
	if s.Camera != nil {
		if err := s.Camera.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	numObjects := len(s.Detections[0]) / detection.CornersPerBox
	if len(s.Objects) != 0 && len(s.Objects) != numObjects {
		return utils.NewConfigValidationError(path,
			errors.Errorf("%d objects named for %d detection columns", len(s.Objects), numObjects))
	}
	if len(s.GroundTruth) != 0 && len(s.GroundTruth) != numObjects {
		return utils.NewConfigValidationError(path,
			errors.Errorf("%d ground truth quadrics for %d objects", len(s.GroundTruth), numObjects))
	}
	return nil
}

// HasCameras reports whether the scene carries intrinsics and poses.
func (s *Scene) HasCameras() bool {
	return s.intrinsicSources() != 0
}

func (s *Scene) intrinsicSources() int {
	n := 0
	if len(s.Intrinsics) != 0 {
		n++
	}
	if s.Camera != nil {
		n++
	}
	if s.IntrinsicsFile != "" {
		n++
	}
	return n
}

// LoadScene reads and validates a scene file.
func LoadScene(path string) (*Scene, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	s, err := ReadScene(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if s.IntrinsicsFile != "" && !filepath.IsAbs(s.IntrinsicsFile) {
		s.IntrinsicsFile = filepath.Join(filepath.Dir(path), s.IntrinsicsFile)
	}
	return s, nil
}

// ReadScene decodes and validates a scene. path is only used in error messages.
func ReadScene(r io.Reader, path string) (*Scene, error) {
	var s Scene
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrapf(err, "cannot parse scene %s", path)
	}
	if err := s.Validate(path); err != nil {
		return nil, err
	}
	return &s, nil
}

// Write stores the scene as indented JSON.
func (s *Scene) Write(path string) error {
	return lfdutils.WriteJSONFile(path, s)
}

// BuildDetections reads the detection table, applying the supplied visibility if any.
func (s *Scene) BuildDetections() (*detection.Detections, error) {
	var objects *detection.ObjectIndex
	if len(s.Objects) != 0 {
		var err error
		if objects, err = detection.NewObjectIndex(s.Objects); err != nil {
			return nil, err
		}
	}
	det, err := detection.NewDetectionsFromRows(s.Detections, objects)
	if err != nil {
		return nil, err
	}
	if len(s.Visibility) == 0 {
		return det, nil
	}
	vm, err := detection.NewVisibilityMatrix(s.Visibility)
	if err != nil {
		return nil, err
	}
	return det.WithVisibility(vm)
}

// Build turns the scene file into validated pipeline inputs.
func (s *Scene) Build() (*lfd.Scene, error) {
	if !s.HasCameras() {
		return nil, errors.New("scene has no cameras")
	}
	poses, err := s.cameraPoses()
	if err != nil {
		return nil, err
	}
	cameras, err := s.cameraModels(poses)
	if err != nil {
		return nil, err
	}
	det, err := s.BuildDetections()
	if err != nil {
		return nil, err
	}
	scene := &lfd.Scene{Cameras: cameras, Detections: det}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	return scene, nil
}

// cameraModels builds one camera per pose from whichever form of intrinsics the scene uses.
func (s *Scene) cameraModels(poses []*camera.CamPose) ([]*camera.CameraModel, error) {
	if len(s.Intrinsics) != 0 {
		k, err := denseFromRows(s.Intrinsics)
		if err != nil {
			return nil, errors.Wrap(err, "intrinsics")
		}
		return camera.NewCameraModels(k, poses)
	}
	pinhole := s.Camera
	if s.IntrinsicsFile != "" {
		var err error
		if pinhole, err = camera.NewPinholeCameraIntrinsicsFromJSONFile(s.IntrinsicsFile); err != nil {
			return nil, errors.Wrapf(err, "intrinsics_file %s", s.IntrinsicsFile)
		}
	}
	cameras := make([]*camera.CameraModel, 0, len(poses))
	for frame, pose := range poses {
		cm, err := camera.NewCameraModelFromIntrinsics(pinhole, pose)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", frame)
		}
		cameras = append(cameras, cm)
	}
	return cameras, nil
}

func (s *Scene) cameraPoses() ([]*camera.CamPose, error) {
	if len(s.PosesTransposed) != 0 {
		stacked, err := denseFromRows(s.PosesTransposed)
		if err != nil {
			return nil, errors.Wrap(err, "poses_transposed")
		}
		return camera.PosesFromStackedTransposed(stacked)
	}
	var errs error
	poses := make([]*camera.CamPose, 0, len(s.Poses))
	for frame, rows := range s.Poses {
		m, err := denseFromRows(rows)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "pose of frame %d", frame))
			continue
		}
		pose, err := camera.NewCamPoseFromMat(m)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "pose of frame %d", frame))
			continue
		}
		poses = append(poses, pose)
	}
	if errs != nil {
		return nil, errs
	}
	return poses, nil
}

// NewScene describes pipeline inputs as a scene file, poses stored transposed and stacked. The
// intrinsics are written as pinhole parameters when K has that form, as a matrix otherwise.
func NewScene(name string, scene *lfd.Scene, groundTruth []quadric.Quadric) (*Scene, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	if len(scene.Cameras) == 0 {
		return nil, errors.New("scene has no frames")
	}
	s := &Scene{
		Name:        name,
		Objects:     scene.Detections.Objects().IDs(),
		Detections:  scene.Detections.Rows(),
		GroundTruth: groundTruth,
	}
	k := scene.Cameras[0].K()
	if pinhole, err := camera.NewPinholeCameraIntrinsicsFromMatrix(k); err == nil {
		s.Camera = pinhole
	} else {
		s.Intrinsics = rowsOf(k)
	}
	for _, cam := range scene.Cameras {
		s.PosesTransposed = append(s.PosesTransposed, rowsOf(cam.Pose().T())...)
	}
	return s, nil
}

// SceneSchema is the JSON schema of scene files.
func SceneSchema() *jsonschema.Schema {
	matrix := &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "number"},
	}}
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(quadric.Quadric{}) {
				return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{matrix, {Type: "null"}}}
			}
			return nil
		},
	}
	return r.Reflect(&Scene{})
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("matrix is empty")
	}
	cols := len(rows[0])
	m := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Errorf("row %d has %d values, expected %d", i, len(row), cols)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

func rowsOf(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}
