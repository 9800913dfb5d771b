package utils

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// refEntryTolerance is the size, relative to the Frobenius norm, below which the reference entry
// of NormalizeSym is treated as zero.
const refEntryTolerance = 1e-12

// NaNSym returns an n×n symmetric matrix filled with NaN.
func NaNSym(n int) *mat.SymDense {
	data := make([]float64, n*n)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewSymDense(n, data)
}

// IsFiniteSym reports whether every entry of s is finite.
func IsFiniteSym(s mat.Symmetric) bool {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := s.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Symmetrize returns (A + Aᵀ)/2 for a square matrix A.
func Symmetrize(a mat.Matrix) *mat.SymDense {
	n, c := a.Dims()
	if n != c {
		panic(mat.ErrSquare)
	}
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}

// NormalizeSym scales s so that its last diagonal entry is -1. When that entry is zero relative
// to the Frobenius norm, s is scaled to unit Frobenius norm with its first non-zero entry
// positive instead. Non finite or zero matrices come back as all NaN.
func NormalizeSym(s mat.Symmetric) *mat.SymDense {
	n := s.SymmetricDim()
	if !IsFiniteSym(s) {
		return NaNSym(n)
	}
	norm := mat.Norm(s, 2)
	if norm == 0 {
		return NaNSym(n)
	}
	out := mat.NewSymDense(n, nil)
	ref := s.At(n-1, n-1)
	if math.Abs(ref) > refEntryTolerance*norm {
		out.ScaleSym(-1/ref, s)
		return out
	}
	out.ScaleSym(1/norm, s)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := out.At(i, j)
			if v == 0 {
				continue
			}
			if v < 0 {
				out.ScaleSym(-1, out)
			}
			return out
		}
	}
	return out
}

// SymDistanceUpToScale is the Frobenius distance between a and b after both are scaled to unit
// Frobenius norm, minimised over the sign of b. It is 0 for matrices equal up to a non-zero
// scalar and NaN when either matrix is not finite or is zero.
func SymDistanceUpToScale(a, b mat.Symmetric) float64 {
	if a.SymmetricDim() != b.SymmetricDim() {
		panic(mat.ErrShape)
	}
	if !IsFiniteSym(a) || !IsFiniteSym(b) {
		return math.NaN()
	}
	na, nb := mat.Norm(a, 2), mat.Norm(b, 2)
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	var same, opposite float64
	n := a.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := a.At(i, j)/na, b.At(i, j)/nb
			same += (x - y) * (x - y)
			opposite += (x + y) * (x + y)
		}
	}
	return math.Sqrt(math.Min(same, opposite))
}

// SymRows returns the entries of s row by row.
func SymRows(s mat.Symmetric) [][]float64 {
	n := s.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = s.At(i, j)
		}
	}
	return rows
}

// SymFromRows reads an n×n symmetric matrix given row by row. Asymmetric input is rejected.
func SymFromRows(rows [][]float64, n int) (*mat.SymDense, error) {
	if len(rows) != n {
		return nil, errors.Errorf("expected %d rows, got %d", n, len(rows))
	}
	for i, row := range rows {
		if len(row) != n {
			return nil, errors.Errorf("row %d has %d entries, expected %d", i, len(row), n)
		}
	}
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if rows[i][j] != rows[j][i] {
				return nil, errors.Errorf("matrix is not symmetric at (%d, %d)", i, j)
			}
			s.SetSym(i, j, rows[i][j])
		}
	}
	return s, nil
}
