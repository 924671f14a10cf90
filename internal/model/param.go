package model

import "gonum.org/v1/gonum/mat"

// Param is a trainable matrix paired with its gradient buffer.
// Gradients accumulate across Backward calls until ZeroGrad.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int, data []float64) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, data),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad resets the gradient buffer to exactly zero.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Dims returns the parameter shape.
func (p *Param) Dims() (int, int) {
	return p.Value.Dims()
}
