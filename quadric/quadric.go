// Package quadric estimates 3D ellipsoids, in dual quadric form, from multi-view ellipse
// observations and projects them back into camera views.
package quadric

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/utils"
)

var (
	// ErrInsufficientObservations means an object was visible in too few frames to constrain a
	// quadric.
	ErrInsufficientObservations = errors.New("insufficient observations")
	// ErrDegenerateEstimate means the solved quadric is not a real ellipsoid, with either sign.
	ErrDegenerateEstimate = errors.New("degenerate estimate")
)

// Quadric is a 3D ellipsoid in dual quadric form: a symmetric 4x4 matrix Q such that a plane π
// is tangent to the ellipsoid iff πᵀQπ = 0. It is defined up to a non-zero scale.
//
// The zero value, like Undefined, carries no information.
type Quadric struct {
	q *mat.SymDense
}

// NewQuadric wraps a copy of a symmetric 4x4 dual quadric.
func NewQuadric(q mat.Symmetric) (Quadric, error) {
	if n := q.SymmetricDim(); n != 4 {
		return Quadric{}, errors.Errorf("dual quadric must be 4x4, got %dx%d", n, n)
	}
	cp := mat.NewSymDense(4, nil)
	cp.CopySym(q)
	return Quadric{q: cp}, nil
}

// Undefined is the quadric of an object that could not be estimated: every entry is NaN.
func Undefined() Quadric {
	return Quadric{q: utils.NaNSym(4)}
}

// FromEllipsoid builds the dual quadric of the ellipsoid with the given centre, semi-axes and
// rotation, whose columns are the directions of the axes. A nil rotation is the identity.
//
//	Q = Z·diag(a², b², c², -1)·Zᵀ,  Z = [R t; 0 1]
func FromEllipsoid(center, axes r3.Vector, rotation mat.Matrix) (Quadric, error) {
	if axes.X <= 0 || axes.Y <= 0 || axes.Z <= 0 {
		return Quadric{}, errors.Errorf("semi-axes must be positive, got %v", axes)
	}
	z := mat.NewDense(4, 4, nil)
	if rotation == nil {
		z.Slice(0, 3, 0, 3).(*mat.Dense).Copy(eye(3))
	} else {
		if r, c := rotation.Dims(); r != 3 || c != 3 {
			return Quadric{}, errors.Errorf("rotation must be 3x3, got %dx%d", r, c)
		}
		z.Slice(0, 3, 0, 3).(*mat.Dense).Copy(rotation)
	}
	z.Set(0, 3, center.X)
	z.Set(1, 3, center.Y)
	z.Set(2, 3, center.Z)
	z.Set(3, 3, 1)

	d := mat.NewDiagDense(4, []float64{axes.X * axes.X, axes.Y * axes.Y, axes.Z * axes.Z, -1})
	var tmp, q mat.Dense
	tmp.Mul(z, d)
	q.Mul(&tmp, z.T())
	return Quadric{q: utils.Symmetrize(&q)}, nil
}

// IsDefined reports whether every entry of the quadric is finite.
func (q Quadric) IsDefined() bool {
	return q.q != nil && utils.IsFiniteSym(q.q)
}

// Matrix returns a copy of the dual quadric.
func (q Quadric) Matrix() *mat.SymDense {
	if q.q == nil {
		return utils.NaNSym(4)
	}
	cp := mat.NewSymDense(4, nil)
	cp.CopySym(q.q)
	return cp
}

// At returns entry (i, j) of the dual quadric.
func (q Quadric) At(i, j int) float64 {
	if q.q == nil {
		return math.NaN()
	}
	return q.q.At(i, j)
}

// Scale returns the same quadric with its matrix multiplied by f.
func (q Quadric) Scale(f float64) Quadric {
	s := mat.NewSymDense(4, nil)
	s.ScaleSym(f, q.Matrix())
	return Quadric{q: s}
}

// Normalized returns the canonical representative: Q₃₃ = -1, or unit Frobenius norm when Q₃₃ is
// zero. Undefined quadrics stay undefined.
func (q Quadric) Normalized() Quadric {
	return Quadric{q: utils.NormalizeSym(q.Matrix())}
}

// Center is the centre of the ellipsoid, NaN when Q₃₃ is zero.
func (q Quadric) Center() r3.Vector {
	q33 := q.At(3, 3)
	if q33 == 0 {
		return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	}
	return r3.Vector{X: q.At(0, 3) / q33, Y: q.At(1, 3) / q33, Z: q.At(2, 3) / q33}
}

// shape returns S = Q[0:3,0:3]/(-Q₃₃) + t·tᵀ, the centred shape whose eigenvalues are the squared
// semi-axes.
func (q Quadric) shape() *mat.SymDense {
	t := q.Center()
	tv := []float64{t.X, t.Y, t.Z}
	f := -1 / q.At(3, 3)
	s := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			s.SetSym(i, j, f*q.At(i, j)+tv[i]*tv[j])
		}
	}
	return s
}

// checkEllipsoid returns nil if q, with its current sign, is a real bounded ellipsoid: Q₃₃ is
// negative beyond tol relative to the norm of Q, and the shape block is positive definite with
// its smallest eigenvalue beyond tol relative to the largest.
func (q Quadric) checkEllipsoid(tol float64) error {
	if !q.IsDefined() {
		return errors.Wrap(ErrDegenerateEstimate, "quadric has non finite entries")
	}
	norm := mat.Norm(q.q, 2)
	if q33 := q.q.At(3, 3); !(q33 < -tol*norm) {
		return errors.Wrapf(ErrDegenerateEstimate, "Q₃₃ = %g is not negative", q33)
	}
	var eig mat.EigenSym
	if !eig.Factorize(q.shape(), false) {
		return errors.Wrap(ErrDegenerateEstimate, "eigen decomposition of the shape block failed")
	}
	values := eig.Values(nil)
	if values[0] <= tol*math.Abs(values[2]) {
		return errors.Wrapf(ErrDegenerateEstimate, "shape block is not positive definite, eigenvalues %v", values)
	}
	return nil
}

// Ellipsoid is the geometric decomposition of a dual quadric.
type Ellipsoid struct {
	Center r3.Vector
	// Axes holds the semi-axis lengths in descending order.
	Axes r3.Vector
	// Rotation is a proper rotation whose columns are the directions of Axes.
	Rotation *mat.Dense
}

// Ellipsoid decomposes q into centre, semi-axes and axis directions. It fails with
// ErrDegenerateEstimate if q is not a real ellipsoid with either sign.
func (q Quadric) Ellipsoid() (Ellipsoid, error) {
	if err := q.checkEllipsoid(0); err != nil {
		if q.Scale(-1).checkEllipsoid(0) != nil {
			return Ellipsoid{}, err
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(q.shape(), true) {
		return Ellipsoid{}, errors.Wrap(ErrDegenerateEstimate, "eigen decomposition of the shape block failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues come in ascending order
	rot := mat.NewDense(3, 3, nil)
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			rot.Set(row, col, vectors.At(row, 2-col))
		}
	}
	if mat.Det(rot) < 0 {
		for row := 0; row < 3; row++ {
			rot.Set(row, 2, -rot.At(row, 2))
		}
	}
	return Ellipsoid{
		Center:   q.Center(),
		Axes:     r3.Vector{X: math.Sqrt(values[2]), Y: math.Sqrt(values[1]), Z: math.Sqrt(values[0])},
		Rotation: rot,
	}, nil
}

// Quadric builds the dual quadric of the ellipsoid.
func (e Ellipsoid) Quadric() (Quadric, error) {
	return FromEllipsoid(e.Center, e.Axes, e.Rotation)
}

func (q Quadric) String() string {
	if !q.IsDefined() {
		return "Quadric(undefined)"
	}
	return fmt.Sprintf("Quadric(%v)", mat.Formatted(q.q, mat.Prefix("        "), mat.Squeeze()))
}

// Distance is the scale and sign independent distance between two quadrics. It is NaN if either
// is undefined.
func Distance(a, b Quadric) float64 {
	return utils.SymDistanceUpToScale(a.Matrix(), b.Matrix())
}

// EqualUpToScale reports whether a and b describe the same ellipsoid within tol. Two undefined
// quadrics are equal.
func EqualUpToScale(a, b Quadric, tol float64) bool {
	if !a.IsDefined() || !b.IsDefined() {
		return a.IsDefined() == b.IsDefined()
	}
	return Distance(a, b) <= tol
}

// MarshalJSON writes the quadric as rows, or null when undefined.
func (q Quadric) MarshalJSON() ([]byte, error) {
	if !q.IsDefined() {
		return []byte("null"), nil
	}
	return json.Marshal(utils.SymRows(q.q))
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (q *Quadric) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if rows == nil {
		*q = Undefined()
		return nil
	}
	s, err := utils.SymFromRows(rows, 4)
	if err != nil {
		return err
	}
	*q = Quadric{q: s}
	return nil
}

func eye(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}
