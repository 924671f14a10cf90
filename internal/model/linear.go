package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear is a fully connected layer computing y = x·Wᵀ + b.
//
// Shapes:
//   - x: [batch, in]
//   - W: [out, in]
//   - b: [1, out]
//   - y: [batch, out]
type Linear struct {
	in     int
	out    int
	weight *Param
	bias   *Param

	input *mat.Dense
}

// NewLinear constructs a layer with weights drawn uniformly from
// ±scale/sqrt(in) and zero bias.
func NewLinear(in, out int, rng *rand.Rand, scale float64) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("%w: linear dims must be positive (in=%d out=%d)", ErrShapeMismatch, in, out)
	}
	if scale <= 0 {
		scale = 1
	}
	bound := scale / math.Sqrt(float64(in))
	weights := make([]float64, out*in)
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * bound
	}
	return NewLinearFromData(in, out, weights, nil)
}

// NewLinearFromData constructs a layer from row-major weights of length
// out*in and a bias of length out. A nil bias means zeros.
func NewLinearFromData(in, out int, weights, bias []float64) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("%w: linear dims must be positive (in=%d out=%d)", ErrShapeMismatch, in, out)
	}
	if len(weights) != in*out {
		return nil, fmt.Errorf("%w: weight has %d values, want %d", ErrShapeMismatch, len(weights), in*out)
	}
	if bias == nil {
		bias = make([]float64, out)
	}
	if len(bias) != out {
		return nil, fmt.Errorf("%w: bias has %d values, want %d", ErrShapeMismatch, len(bias), out)
	}
	return &Linear{
		in:     in,
		out:    out,
		weight: newParam("weight", out, in, append([]float64(nil), weights...)),
		bias:   newParam("bias", 1, out, append([]float64(nil), bias...)),
	}, nil
}

func (l *Linear) Kind() Kind { return KindLinear }

func (l *Linear) sealed() {}

// InFeatures returns the expected input width.
func (l *Linear) InFeatures() int { return l.in }

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int { return l.out }

// Weight returns the [out, in] weight parameter.
func (l *Linear) Weight() *Param { return l.weight }

// Bias returns the [1, out] bias parameter.
func (l *Linear) Bias() *Param { return l.bias }

// Params returns [weight, bias].
func (l *Linear) Params() []*Param {
	return []*Param{l.weight, l.bias}
}

// Forward computes x·Wᵀ + b and keeps x for the backward pass.
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != l.in {
		return nil, fmt.Errorf("%w: linear expects %d input features, got %d", ErrShapeMismatch, l.in, cols)
	}
	out := mat.NewDense(rows, l.out, nil)
	out.Mul(x, l.weight.Value.T())
	b := l.bias.Value.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), b)
	}
	l.input = x
	return out, nil
}

// Backward accumulates dW += gᵀ·x and db += colsum(g), and returns g·W.
// The incoming gradient is expected to already carry the loss's batch
// averaging, so no further division happens here.
func (l *Linear) Backward(grad *mat.Dense) (*mat.Dense, error) {
	if l.input == nil {
		return nil, fmt.Errorf("%w: linear backward called before forward", ErrShapeMismatch)
	}
	rows, cols := grad.Dims()
	inRows, _ := l.input.Dims()
	if cols != l.out || rows != inRows {
		return nil, fmt.Errorf("%w: linear gradient is %dx%d, want %dx%d", ErrShapeMismatch, rows, cols, inRows, l.out)
	}

	var dW mat.Dense
	dW.Mul(grad.T(), l.input)
	l.weight.Grad.Add(l.weight.Grad, &dW)

	db := l.bias.Grad.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(db, grad.RawRowView(i))
	}

	dx := mat.NewDense(rows, l.in, nil)
	dx.Mul(grad, l.weight.Value)
	return dx, nil
}
