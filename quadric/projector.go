package quadric

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lfd/conic"
	"go.viam.com/lfd/utils"
)

// Project returns the ellipse that q projects to through the 3x4 projection matrix p,
// C = P·Q·Pᵀ, normalised. An undefined quadric projects to the undefined ellipse.
func Project(q Quadric, p mat.Matrix) conic.Ellipse {
	if !q.IsDefined() {
		return conic.UndefinedEllipse()
	}
	var pq, c mat.Dense
	pq.Mul(p, q.q)
	c.Mul(&pq, p.T())
	e, err := conic.NewEllipse(utils.Symmetrize(&c))
	if err != nil {
		return conic.UndefinedEllipse()
	}
	return e.Normalized()
}
