package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ReLU applies max(0, x) elementwise. It keeps the positivity mask of the
// most recent Forward call.
type ReLU struct {
	mask []bool
	rows int
	cols int
}

// NewReLU returns a ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

func (r *ReLU) Kind() Kind { return KindReLU }

func (r *ReLU) sealed() {}

// Params returns nil; ReLU has nothing to train.
func (r *ReLU) Params() []*Param { return nil }

func (r *ReLU) Forward(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	if cap(r.mask) < rows*cols {
		r.mask = make([]bool, rows*cols)
	}
	r.mask = r.mask[:rows*cols]
	r.rows, r.cols = rows, cols
	for i := 0; i < rows; i++ {
		src := x.RawRowView(i)
		dst := out.RawRowView(i)
		for j, v := range src {
			positive := v > 0
			r.mask[i*cols+j] = positive
			if positive {
				dst[j] = v
			}
		}
	}
	return out, nil
}

// Backward zeroes the gradient wherever the forward input was not
// strictly positive.
func (r *ReLU) Backward(grad *mat.Dense) (*mat.Dense, error) {
	rows, cols := grad.Dims()
	if r.mask == nil {
		return nil, fmt.Errorf("%w: relu backward called before forward", ErrShapeMismatch)
	}
	if rows != r.rows || cols != r.cols {
		return nil, fmt.Errorf("%w: relu gradient is %dx%d, want %dx%d", ErrShapeMismatch, rows, cols, r.rows, r.cols)
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		src := grad.RawRowView(i)
		dst := out.RawRowView(i)
		for j, g := range src {
			if r.mask[i*cols+j] {
				dst[j] = g
			}
		}
	}
	return out, nil
}
