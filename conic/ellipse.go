// Package conic represents 2D ellipses as dual conics and builds them from bounding box
// detections.
package conic

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/detection"
	"go.viam.com/lfd/utils"
)

// ErrMalformedDetection is returned when a bounding box with a non-positive width or height, or
// non finite coordinates, is turned into an ellipse.
var ErrMalformedDetection = errors.New("malformed detection")

// Ellipse is a 2D ellipse in dual conic form: a symmetric 3x3 matrix C such that a line l is
// tangent to the ellipse iff lᵀCl = 0. It is defined up to a non-zero scale.
//
// The zero value, like UndefinedEllipse, carries no information.
type Ellipse struct {
	c *mat.SymDense
}

// NewEllipse wraps a copy of a symmetric 3x3 dual conic.
func NewEllipse(c mat.Symmetric) (Ellipse, error) {
	if n := c.SymmetricDim(); n != 3 {
		return Ellipse{}, errors.Errorf("dual conic must be 3x3, got %dx%d", n, n)
	}
	cp := mat.NewSymDense(3, nil)
	cp.CopySym(c)
	return Ellipse{c: cp}, nil
}

// UndefinedEllipse is the "nothing to draw" value: every entry is NaN.
func UndefinedEllipse() Ellipse {
	return Ellipse{c: utils.NaNSym(3)}
}

// FromBoundingBox returns the axis aligned ellipse inscribed in bb, normalised so that C₂₂ = -1.
func FromBoundingBox(bb detection.BoundingBox) (Ellipse, error) {
	if !bb.IsWellFormed() {
		return UndefinedEllipse(), errors.Wrapf(ErrMalformedDetection, "bounding box %v", bb)
	}
	return FromParameters(bb.Center(), bb.Width()/2, bb.Height()/2, 0), nil
}

// FromParameters builds the ellipse with the given centre, semi-axes and rotation (radians,
// measured from the x axis to the first semi-axis).
//
//	C = T·R·diag(a², b², -1)·Rᵀ·Tᵀ
//
// where T translates to the centre and R rotates by angle.
func FromParameters(center r2.Point, a, b, angle float64) Ellipse {
	cos, sin := math.Cos(angle), math.Sin(angle)
	tr := mat.NewDense(3, 3, []float64{
		cos, -sin, center.X,
		sin, cos, center.Y,
		0, 0, 1,
	})
	d := mat.NewDiagDense(3, []float64{a * a, b * b, -1})
	var tmp, c mat.Dense
	tmp.Mul(tr, d)
	c.Mul(&tmp, tr.T())
	return Ellipse{c: utils.Symmetrize(&c)}
}

// IsDefined reports whether every entry of the conic is finite.
func (e Ellipse) IsDefined() bool {
	return e.c != nil && utils.IsFiniteSym(e.c)
}

// Matrix returns a copy of the dual conic.
func (e Ellipse) Matrix() *mat.SymDense {
	if e.c == nil {
		return utils.NaNSym(3)
	}
	cp := mat.NewSymDense(3, nil)
	cp.CopySym(e.c)
	return cp
}

// At returns entry (i, j) of the dual conic.
func (e Ellipse) At(i, j int) float64 {
	if e.c == nil {
		return math.NaN()
	}
	return e.c.At(i, j)
}

// Scale returns the same ellipse with its matrix multiplied by f.
func (e Ellipse) Scale(f float64) Ellipse {
	s := mat.NewSymDense(3, nil)
	s.ScaleSym(f, e.Matrix())
	return Ellipse{c: s}
}

// Normalized returns the canonical representative: C₂₂ = -1, or unit Frobenius norm when C₂₂ is
// zero. Undefined ellipses stay undefined.
func (e Ellipse) Normalized() Ellipse {
	return Ellipse{c: utils.NormalizeSym(e.Matrix())}
}

// Center is the centre of the ellipse.
func (e Ellipse) Center() r2.Point {
	c22 := e.At(2, 2)
	if c22 == 0 {
		return r2.Point{X: math.NaN(), Y: math.NaN()}
	}
	return r2.Point{X: e.At(0, 2) / c22, Y: e.At(1, 2) / c22}
}

// shape returns M = C[0:2,0:2]/(-C₂₂) + c·cᵀ, the centred conic whose eigenvalues are the squared
// semi-axes.
func (e Ellipse) shape() (*mat.SymDense, bool) {
	if !e.IsDefined() || e.c.At(2, 2) == 0 {
		return nil, false
	}
	center := e.Center()
	f := -1 / e.c.At(2, 2)
	cv := []float64{center.X, center.Y}
	m := mat.NewSymDense(2, nil)
	for i := 0; i < 2; i++ {
		for j := i; j < 2; j++ {
			m.SetSym(i, j, f*e.c.At(i, j)+cv[i]*cv[j])
		}
	}
	return m, true
}

// Axes returns the semi-major axis, the semi-minor axis and the angle of the major axis from the
// x axis in (-π/2, π/2]. All three are NaN if the conic is not a real ellipse.
func (e Ellipse) Axes() (float64, float64, float64) {
	nan := math.NaN()
	m, ok := e.shape()
	if !ok {
		return nan, nan, nan
	}
	var eig mat.EigenSym
	if !eig.Factorize(m, true) {
		return nan, nan, nan
	}
	values := eig.Values(nil)
	if values[0] <= 0 {
		return nan, nan, nan
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	// eigenvalues come in ascending order
	angle := math.Atan2(vectors.At(1, 1), vectors.At(0, 1))
	if angle <= -math.Pi/2 {
		angle += math.Pi
	} else if angle > math.Pi/2 {
		angle -= math.Pi
	}
	return math.Sqrt(values[1]), math.Sqrt(values[0]), angle
}

// BoundingBox is the tightest axis aligned box containing the ellipse. Undefined ellipses give
// an all NaN box.
func (e Ellipse) BoundingBox() detection.BoundingBox {
	nan := math.NaN()
	m, ok := e.shape()
	if !ok || m.At(0, 0) < 0 || m.At(1, 1) < 0 {
		return detection.BoundingBox{X0: nan, Y0: nan, X1: nan, Y1: nan}
	}
	center := e.Center()
	hw, hh := math.Sqrt(m.At(0, 0)), math.Sqrt(m.At(1, 1))
	return detection.BoundingBox{X0: center.X - hw, Y0: center.Y - hh, X1: center.X + hw, Y1: center.Y + hh}
}

func (e Ellipse) String() string {
	if !e.IsDefined() {
		return "Ellipse(undefined)"
	}
	return fmt.Sprintf("Ellipse(%v)", mat.Formatted(e.c, mat.Prefix("        "), mat.Squeeze()))
}

// Distance is the scale and sign independent distance between two ellipses. It is NaN if either
// is undefined.
func Distance(a, b Ellipse) float64 {
	return utils.SymDistanceUpToScale(a.Matrix(), b.Matrix())
}

// EqualUpToScale reports whether a and b describe the same ellipse within tol. Two undefined
// ellipses are equal.
func EqualUpToScale(a, b Ellipse, tol float64) bool {
	if !a.IsDefined() || !b.IsDefined() {
		return a.IsDefined() == b.IsDefined()
	}
	return Distance(a, b) <= tol
}

// MarshalJSON writes the conic as rows, or null when undefined.
func (e Ellipse) MarshalJSON() ([]byte, error) {
	if !e.IsDefined() {
		return []byte("null"), nil
	}
	return json.Marshal(utils.SymRows(e.c))
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (e *Ellipse) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if rows == nil {
		*e = UndefinedEllipse()
		return nil
	}
	s, err := utils.SymFromRows(rows, 3)
	if err != nil {
		return err
	}
	*e = Ellipse{c: s}
	return nil
}
