package quadric_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/conic"
	"go.viam.com/lfd/logging"
	"go.viam.com/lfd/quadric"
	"go.viam.com/lfd/testutils"
)

func newScene(t *testing.T, numFrames int) *testutils.SyntheticScene {
	t.Helper()
	scene, err := testutils.NewSyntheticScene(numFrames, testutils.DefaultEllipsoids())
	test.That(t, err, test.ShouldBeNil)
	return scene
}

func TestNoiselessRecovery(t *testing.T) {
	scene := newScene(t, 8)
	est := quadric.NewEstimator(logging.NewTestLogger(t))

	for obj, truth := range scene.Truth {
		for _, frames := range [][]int{scene.AllFrames(), {0, 1, 2}, {1, 4, 6}, {0, 3, 5, 7}} {
			q, err := est.EstimateObject(scene.Observations(obj, frames))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, q.IsDefined(), test.ShouldBeTrue)
			test.That(t, quadric.Distance(q, truth), test.ShouldBeLessThan, 1e-6)
			test.That(t, q.At(3, 3), test.ShouldAlmostEqual, -1)

			ellipsoid, err := q.Ellipsoid()
			test.That(t, err, test.ShouldBeNil)
			want := scene.Ellipsoids[obj]
			test.That(t, ellipsoid.Center.Sub(want.Center).Norm(), test.ShouldBeLessThan, 1e-6)
			test.That(t, ellipsoid.Axes.X, test.ShouldAlmostEqual, want.Axes.X, 1e-6)
			test.That(t, ellipsoid.Axes.Y, test.ShouldAlmostEqual, want.Axes.Y, 1e-6)
			test.That(t, ellipsoid.Axes.Z, test.ShouldAlmostEqual, want.Axes.Z, 1e-6)
		}
	}
}

func TestQuadricIsSymmetric(t *testing.T) {
	scene := newScene(t, 5)
	q, err := quadric.NewEstimator(nil).EstimateObject(scene.Observations(1, scene.AllFrames()))
	test.That(t, err, test.ShouldBeNil)
	m := q.Matrix()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			test.That(t, m.At(i, j), test.ShouldEqual, m.At(j, i))
		}
	}
}

func TestInsufficientObservations(t *testing.T) {
	scene := newScene(t, 8)
	est := quadric.NewEstimator(logging.NewTestLogger(t))

	var subsets [][]int
	subsets = append(subsets, nil)
	for i := 0; i < 8; i++ {
		subsets = append(subsets, []int{i})
		for j := i + 1; j < 8; j++ {
			subsets = append(subsets, []int{i, j})
		}
	}
	test.That(t, subsets, test.ShouldHaveLength, 37)

	for obj := range scene.Truth {
		for _, frames := range subsets {
			q, err := est.EstimateObject(scene.Observations(obj, frames))
			test.That(t, errors.Is(err, quadric.ErrInsufficientObservations), test.ShouldBeTrue)
			test.That(t, q.IsDefined(), test.ShouldBeFalse)
			test.That(t, quadric.Project(q, scene.Cameras[0].Projection()).IsDefined(), test.ShouldBeFalse)
		}
	}
}

func TestTwoVersusThreeViews(t *testing.T) {
	scene := newScene(t, 8)
	est := quadric.NewEstimator(logging.NewTestLogger(t))

	q, err := est.EstimateObject(scene.Observations(0, []int{0, 3}))
	test.That(t, errors.Is(err, quadric.ErrInsufficientObservations), test.ShouldBeTrue)
	test.That(t, q.IsDefined(), test.ShouldBeFalse)

	q, err = est.EstimateObject(scene.Observations(0, []int{0, 3, 5}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q.IsDefined(), test.ShouldBeTrue)
	_, err = q.Ellipsoid()
	test.That(t, err, test.ShouldBeNil)
}

func TestMinViewsOnlyRaises(t *testing.T) {
	scene := newScene(t, 8)
	obs := scene.Observations(2, []int{0, 2, 4})

	_, err := (&quadric.Estimator{MinViews: 1}).EstimateObject(scene.Observations(2, []int{0, 2}))
	test.That(t, errors.Is(err, quadric.ErrInsufficientObservations), test.ShouldBeTrue)

	_, err = (&quadric.Estimator{MinViews: 4}).EstimateObject(obs)
	test.That(t, errors.Is(err, quadric.ErrInsufficientObservations), test.ShouldBeTrue)

	var zero quadric.Estimator
	q, err := zero.EstimateObject(obs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, quadric.Distance(q, scene.Truth[2]), test.ShouldBeLessThan, 1e-6)
}

func TestScaleInvariance(t *testing.T) {
	scene := newScene(t, 6)
	est := quadric.NewEstimator(logging.NewTestLogger(t))

	for obj := range scene.Truth {
		obs := scene.Observations(obj, scene.AllFrames())
		base, err := est.EstimateObject(obs)
		test.That(t, err, test.ShouldBeNil)

		factors := []float64{-1, 2.5, -1e-3, 7e4, -0.5, 3}
		scaled := make(quadric.ObservationSet, len(obs))
		for i, o := range obs {
			scaled[i] = quadric.Observation{Frame: o.Frame, Ellipse: o.Ellipse.Scale(factors[i]), P: o.P}
		}
		q, err := est.EstimateObject(scaled)
		test.That(t, err, test.ShouldBeNil)
		bm, qm := base.Matrix(), q.Matrix()
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				test.That(t, qm.At(i, j), test.ShouldAlmostEqual, bm.At(i, j), 1e-8)
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	scene := newScene(t, 8)
	est := quadric.NewEstimator(logging.NewTestLogger(t))

	for obj := range scene.Truth {
		obs := scene.Observations(obj, []int{1, 2, 5, 6})
		q, err := est.EstimateObject(obs)
		test.That(t, err, test.ShouldBeNil)
		for _, o := range obs {
			projected := quadric.Project(q, o.P)
			test.That(t, projected.At(2, 2), test.ShouldAlmostEqual, -1)
			test.That(t, conic.EqualUpToScale(projected, o.Ellipse, 1e-6), test.ShouldBeTrue)
			got, want := projected.Center(), o.Ellipse.Center()
			test.That(t, got.Sub(want).Norm(), test.ShouldBeLessThan, 1e-4)
		}
	}
}

func TestDegenerateEstimate(t *testing.T) {
	scene := newScene(t, 6)
	// a hyperboloid of one sheet projects to consistent conics but is no ellipsoid with either sign
	hyperboloid, err := quadric.NewQuadric(mat.NewSymDense(4, []float64{
		0.04, 0, 0, 0,
		0, 0.04, 0, 0,
		0, 0, -0.25, 0,
		0, 0, 0, -1,
	}))
	test.That(t, err, test.ShouldBeNil)
	_, err = hyperboloid.Ellipsoid()
	test.That(t, errors.Is(err, quadric.ErrDegenerateEstimate), test.ShouldBeTrue)

	obs := make(quadric.ObservationSet, 0, len(scene.Cameras))
	for frame, cam := range scene.Cameras {
		p := cam.Projection()
		obs = append(obs, quadric.Observation{Frame: frame, Ellipse: quadric.Project(hyperboloid, p), P: p})
	}
	q, err := quadric.NewEstimator(logging.NewTestLogger(t)).EstimateObject(obs)
	test.That(t, errors.Is(err, quadric.ErrDegenerateEstimate), test.ShouldBeTrue)
	test.That(t, errors.Is(err, quadric.ErrInsufficientObservations), test.ShouldBeFalse)
	test.That(t, q.IsDefined(), test.ShouldBeFalse)
}

func TestMalformedObservations(t *testing.T) {
	scene := newScene(t, 4)
	est := quadric.NewEstimator(logging.NewTestLogger(t))

	obs := scene.Observations(0, scene.AllFrames())
	obs[2].Ellipse = conic.UndefinedEllipse()
	_, err := est.EstimateObject(obs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 2: ellipse is undefined")

	obs = scene.Observations(0, scene.AllFrames())
	obs[1].P = mat.NewDense(3, 3, nil)
	_, err = est.EstimateObject(obs)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must be 3x4")

	obs = scene.Observations(0, scene.AllFrames())
	obs[1].P = mat.NewDense(3, 4, nil)
	_, err = est.EstimateObject(obs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 1: projection matrix has rank 0, need 3")
	test.That(t, errors.Is(err, quadric.ErrDegenerateEstimate), test.ShouldBeFalse)
	test.That(t, errors.Is(err, quadric.ErrInsufficientObservations), test.ShouldBeFalse)

	// two equal rows
	obs = scene.Observations(0, scene.AllFrames())
	rankTwo := mat.DenseCopyOf(obs[3].P)
	rankTwo.SetRow(2, mat.Row(nil, 1, rankTwo))
	obs[3].P = rankTwo
	_, err = est.EstimateObject(obs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 3: projection matrix has rank 2, need 3")

	obs = scene.Observations(0, scene.AllFrames())
	nan := mat.DenseCopyOf(obs[0].P)
	nan.Set(1, 2, math.NaN())
	obs[0].P = nan
	_, err = est.EstimateObject(obs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 0: projection matrix has non finite entries")
	test.That(t, errors.Is(err, quadric.ErrDegenerateEstimate), test.ShouldBeFalse)
}

func TestEllipsoidDecomposition(t *testing.T) {
	rot := testutils.RotationZX(0.4, -0.3)
	center := r3.Vector{X: 1, Y: -2, Z: 0.5}
	axes := r3.Vector{X: 0.3, Y: 0.2, Z: 0.1}
	q, err := quadric.FromEllipsoid(center, axes, rot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q.At(3, 3), test.ShouldAlmostEqual, -1)

	for _, f := range []float64{1, -4, 1e-3} {
		e, err := q.Scale(f).Ellipsoid()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, e.Center.Sub(center).Norm(), test.ShouldBeLessThan, 1e-9)
		test.That(t, e.Axes.Sub(axes).Norm(), test.ShouldBeLessThan, 1e-9)
		test.That(t, mat.Det(e.Rotation), test.ShouldAlmostEqual, 1)
		for col := 0; col < 3; col++ {
			var dot float64
			for row := 0; row < 3; row++ {
				dot += e.Rotation.At(row, col) * rot.At(row, col)
			}
			test.That(t, math.Abs(dot), test.ShouldAlmostEqual, 1, 1e-9)
		}

		back, err := e.Quadric()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, quadric.EqualUpToScale(back, q, 1e-9), test.ShouldBeTrue)
	}

	_, err = quadric.FromEllipsoid(center, r3.Vector{X: 1, Y: 0, Z: 1}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = quadric.Undefined().Ellipsoid()
	test.That(t, errors.Is(err, quadric.ErrDegenerateEstimate), test.ShouldBeTrue)
}
