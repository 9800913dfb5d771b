package quadric

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/conic"
	"go.viam.com/lfd/logging"
)

const (
	// MinViews is the smallest number of views that constrains a dual quadric.
	MinViews = 3
	// DefaultTolerance is the relative tolerance used to reject degenerate estimates.
	DefaultTolerance = 1e-9

	conicEntries   = 6
	quadricEntries = 10
	// projectionRankTol is the relative singular value below which a projection row counts as
	// dependent.
	projectionRankTol = 1e-12
	// rowsPerView is the number of scale free equations a view contributes: one per pair of conic
	// entries.
	rowsPerView = conicEntries * (conicEntries - 1) / 2
)

// upper-triangular index pairs, in the order the unknowns and equations are laid out.
var (
	conicIndex   = [conicEntries][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 1}, {1, 2}, {2, 2}}
	quadricIndex = [quadricEntries][2]int{
		{0, 0}, {0, 1}, {0, 2}, {0, 3},
		{1, 1}, {1, 2}, {1, 3},
		{2, 2}, {2, 3},
		{3, 3},
	}
)

// Observation is one view of an object: the frame it was seen in, the ellipse fitted to its
// detection and the 3x4 projection matrix of that frame.
type Observation struct {
	Frame   int
	Ellipse conic.Ellipse
	P       mat.Matrix
}

// ObservationSet holds the views of a single object.
type ObservationSet []Observation

// Frames lists the frames of the set, in order.
func (obs ObservationSet) Frames() []int {
	frames := make([]int, 0, len(obs))
	for _, o := range obs {
		frames = append(frames, o.Frame)
	}
	return frames
}

// Estimator solves for the dual quadric that best explains a set of ellipse observations. The
// zero value uses MinViews, DefaultTolerance and no logging.
type Estimator struct {
	// MinViews raises the number of views required; values below the package MinViews are
	// ignored.
	MinViews int
	// Tolerance is the relative tolerance of the ellipsoid validity check.
	Tolerance float64
	Logger    logging.Logger
}

// NewEstimator returns an estimator with the default settings.
func NewEstimator(logger logging.Logger) *Estimator {
	return &Estimator{MinViews: MinViews, Tolerance: DefaultTolerance, Logger: logger}
}

func (est *Estimator) minViews() int {
	if est == nil || est.MinViews < MinViews {
		return MinViews
	}
	return est.MinViews
}

func (est *Estimator) tolerance() float64 {
	if est == nil || est.Tolerance <= 0 {
		return DefaultTolerance
	}
	return est.Tolerance
}

func (est *Estimator) logger() logging.Logger {
	if est == nil || est.Logger == nil {
		return logging.NewBlankLogger("quadric")
	}
	return est.Logger
}

// EstimateObject recovers the dual quadric of one object from its views with a single closed
// form solve. With fewer views than required it returns Undefined and
// ErrInsufficientObservations; when the solution is not a real ellipsoid with either sign it
// returns Undefined and ErrDegenerateEstimate. Other errors mean the observations themselves
// are malformed. A defined result is normalised so that Q₃₃ = -1.
func (est *Estimator) EstimateObject(obs ObservationSet) (Quadric, error) {
	if need := est.minViews(); len(obs) < need {
		return Undefined(), errors.Wrapf(ErrInsufficientObservations, "%d views, need %d", len(obs), need)
	}

	a := mat.NewDense(rowsPerView*len(obs), quadricEntries, nil)
	for i, o := range obs {
		if err := checkObservation(o); err != nil {
			return Undefined(), err
		}
		c, p := conditionView(o.Ellipse, o.P)
		addViewRows(a.Slice(i*rowsPerView, (i+1)*rowsPerView, 0, quadricEntries).(*mat.Dense), c, p)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return Undefined(), errors.Wrap(ErrDegenerateEstimate, "SVD of the view equations failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	x := v.ColView(quadricEntries - 1)

	candidate := Quadric{q: mat.NewSymDense(4, nil)}
	for k, idx := range quadricIndex {
		candidate.q.SetSym(idx[0], idx[1], x.AtVec(k))
	}

	tol := est.tolerance()
	if err := candidate.checkEllipsoid(tol); err != nil {
		flipped := candidate.Scale(-1)
		if flipErr := flipped.checkEllipsoid(tol); flipErr != nil {
			return Undefined(), err
		}
		est.logger().Debugw("flipped sign of the estimated quadric", "frames", obs.Frames())
		candidate = flipped
	}
	return candidate.Normalized(), nil
}

func checkObservation(o Observation) error {
	if o.P == nil {
		return errors.Errorf("frame %d: missing projection matrix", o.Frame)
	}
	if r, c := o.P.Dims(); r != 3 || c != 4 {
		return errors.Errorf("frame %d: projection matrix must be 3x4, got %dx%d", o.Frame, r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			if v := o.P.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Errorf("frame %d: projection matrix has non finite entries", o.Frame)
			}
		}
	}
	var svd mat.SVD
	if !svd.Factorize(o.P, mat.SVDNone) {
		return errors.Errorf("frame %d: cannot factorize projection matrix", o.Frame)
	}
	if rank := svd.Rank(projectionRankTol); rank < 3 {
		return errors.Errorf("frame %d: projection matrix has rank %d, need 3", o.Frame, rank)
	}
	if !o.Ellipse.IsDefined() {
		return errors.Errorf("frame %d: ellipse is undefined", o.Frame)
	}
	return nil
}

// conditionView moves the ellipse centre to the origin and scales its mean semi-axis to 1,
// applying the same similarity H to both sides of C ~ P·Q·Pᵀ: C' = H·C·Hᵀ and P' = H·P. Both
// come back with unit Frobenius norm.
func conditionView(e conic.Ellipse, p mat.Matrix) (*mat.SymDense, *mat.Dense) {
	h := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	center := e.Center()
	major, minor, _ := e.Axes()
	if rms := math.Sqrt((major*major + minor*minor) / 2); rms > 0 && !math.IsNaN(center.X+center.Y) {
		s := 1 / rms
		h = mat.NewDense(3, 3, []float64{
			s, 0, -s * center.X,
			0, s, -s * center.Y,
			0, 0, 1,
		})
	}

	var hc, hch mat.Dense
	hc.Mul(h, e.Matrix())
	hch.Mul(&hc, h.T())
	c := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			c.SetSym(i, j, (hch.At(i, j)+hch.At(j, i))/2)
		}
	}
	c.ScaleSym(1/mat.Norm(c, 2), c)

	var hp mat.Dense
	hp.Mul(h, p)
	hp.Scale(1/mat.Norm(&hp, 2), &hp)
	return c, &hp
}

// addViewRows fills the rowsPerView scale free equations of one view into dst. With G the 6x10
// map from the unique entries of Q to the unique entries of P·Q·Pᵀ and c the unique entries of
// the observed conic, c ∝ G·x; every pair r < s gives c_r·(G·x)_s - c_s·(G·x)_r = 0.
func addViewRows(dst *mat.Dense, c mat.Symmetric, p mat.Matrix) {
	g := mat.NewDense(conicEntries, quadricEntries, nil)
	for row, ci := range conicIndex {
		j, k := ci[0], ci[1]
		for col, qi := range quadricIndex {
			m, n := qi[0], qi[1]
			coef := p.At(j, m) * p.At(k, n)
			if m != n {
				coef += p.At(j, n) * p.At(k, m)
			}
			g.Set(row, col, coef)
		}
	}

	var cv [conicEntries]float64
	for i, ci := range conicIndex {
		cv[i] = c.At(ci[0], ci[1])
	}

	row := 0
	for r := 0; r < conicEntries; r++ {
		for s := r + 1; s < conicEntries; s++ {
			for col := 0; col < quadricEntries; col++ {
				dst.Set(row, col, cv[r]*g.At(s, col)-cv[s]*g.At(r, col))
			}
			row++
		}
	}
}
