package utils

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestNormalizeSym(t *testing.T) {
	s := mat.NewSymDense(3, []float64{
		2, 1, 0,
		1, 4, 3,
		0, 3, -0.5,
	})
	n := NormalizeSym(s)
	test.That(t, n.At(2, 2), test.ShouldAlmostEqual, -1)
	test.That(t, n.At(0, 0), test.ShouldAlmostEqual, 4)
	test.That(t, n.At(1, 2), test.ShouldAlmostEqual, 6)

	// zero reference entry: unit norm, first non-zero entry positive
	z := mat.NewSymDense(2, []float64{0, -3, -3, 0})
	n = NormalizeSym(z)
	test.That(t, mat.Norm(n, 2), test.ShouldAlmostEqual, 1)
	test.That(t, n.At(0, 1), test.ShouldBeGreaterThan, 0)

	test.That(t, IsFiniteSym(NormalizeSym(mat.NewSymDense(2, nil))), test.ShouldBeFalse)
	test.That(t, IsFiniteSym(NormalizeSym(NaNSym(3))), test.ShouldBeFalse)
}

func TestSymDistanceUpToScale(t *testing.T) {
	a := mat.NewSymDense(2, []float64{1, 2, 2, 5})
	var b mat.SymDense
	b.ScaleSym(-7, a)
	test.That(t, SymDistanceUpToScale(a, &b), test.ShouldAlmostEqual, 0)

	c := mat.NewSymDense(2, []float64{1, 0, 0, -1})
	test.That(t, SymDistanceUpToScale(a, c), test.ShouldBeGreaterThan, 0.1)
	test.That(t, math.IsNaN(SymDistanceUpToScale(a, NaNSym(2))), test.ShouldBeTrue)
	test.That(t, func() { SymDistanceUpToScale(a, NaNSym(3)) }, test.ShouldPanic)
}

func TestSymmetrize(t *testing.T) {
	s := Symmetrize(mat.NewDense(2, 2, []float64{1, 2, 4, 3}))
	test.That(t, s.At(0, 1), test.ShouldEqual, 3.0)
	test.That(t, s.At(1, 0), test.ShouldEqual, 3.0)
	test.That(t, func() { Symmetrize(mat.NewDense(2, 3, nil)) }, test.ShouldPanic)
}

func TestSymRows(t *testing.T) {
	s := mat.NewSymDense(2, []float64{1, 2, 2, 5})
	rows := SymRows(s)
	test.That(t, rows, test.ShouldResemble, [][]float64{{1, 2}, {2, 5}})

	back, err := SymFromRows(rows, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(back, s), test.ShouldBeTrue)

	_, err = SymFromRows([][]float64{{1, 2}, {3, 5}}, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not symmetric at (0, 1)")

	_, err = SymFromRows([][]float64{{1, 2}, {2}}, 2)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = SymFromRows(rows, 3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, WriteJSON(&buf, map[string]int{"a": 1}), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "{\n  \"a\": 1\n}\n")

	test.That(t, WriteJSONFile(filepath.Join(t.TempDir(), "a.json"), []int{1}), test.ShouldBeNil)
	test.That(t, WriteJSONFile(filepath.Join(t.TempDir(), "missing", "a.json"), []int{1}), test.ShouldNotBeNil)
	test.That(t, ResolveFile("data/aldoma/scene.json"), test.ShouldEndWith, filepath.Join("data", "aldoma", "scene.json"))
}
