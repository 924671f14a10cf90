package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NumClasses is the number of digit classes emitted by the final layer.
const NumClasses = 10

var (
	// ErrShapeMismatch reports a layer input or gradient whose dimensions
	// disagree with the layer configuration.
	ErrShapeMismatch = errors.New("model: shape mismatch")
	// ErrInvalidLabel reports a label outside [0, classes).
	ErrInvalidLabel = errors.New("model: invalid label")
	// ErrNonFiniteLoss reports a NaN or infinite loss value.
	ErrNonFiniteLoss = errors.New("model: non-finite loss")
)

// Batch represents a minibatch of flattened inputs and class labels.
type Batch struct {
	Inputs *mat.Dense // [batch, features]
	Labels []int
}

// NewBatch copies rows into a dense input matrix.
func NewBatch(rows [][]float64, labels []int) (Batch, error) {
	if len(rows) == 0 {
		return Batch{}, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	if len(rows) != len(labels) {
		return Batch{}, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(rows), len(labels))
	}
	width := len(rows[0])
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return Batch{}, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), width)
		}
		data = append(data, row...)
	}
	return Batch{
		Inputs: mat.NewDense(len(rows), width, data),
		Labels: append([]int(nil), labels...),
	}, nil
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	return len(b.Labels)
}

// Kind tags the closed set of layer implementations.
type Kind int

const (
	KindLinear Kind = iota
	KindReLU
)

func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindReLU:
		return "relu"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Layer is one stage of a Sequential model.
//
// Forward caches whatever Backward needs; Backward consumes the gradient
// of the loss with respect to the layer output, accumulates parameter
// gradients and returns the gradient with respect to the layer input.
// The set of implementations is closed to this package.
type Layer interface {
	Kind() Kind
	Forward(x *mat.Dense) (*mat.Dense, error)
	Backward(grad *mat.Dense) (*mat.Dense, error)
	Params() []*Param

	sealed()
}
