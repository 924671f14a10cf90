package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sequential chains layers so the output of layer i feeds layer i+1.
type Sequential struct {
	layers []Layer
	in     int
	out    int
}

// NewSequential validates that consecutive linear layers agree on their
// feature counts and returns the composed model.
func NewSequential(layers ...Layer) (*Sequential, error) {
	in, out := 0, 0
	for i, layer := range layers {
		lin, ok := layer.(*Linear)
		if !ok {
			continue
		}
		if out != 0 && lin.InFeatures() != out {
			return nil, fmt.Errorf("%w: layer %d expects %d features, previous layer emits %d", ErrShapeMismatch, i, lin.InFeatures(), out)
		}
		if in == 0 {
			in = lin.InFeatures()
		}
		out = lin.OutFeatures()
	}
	if in == 0 {
		return nil, fmt.Errorf("%w: model has no linear layers", ErrShapeMismatch)
	}
	return &Sequential{layers: layers, in: in, out: out}, nil
}

// NewMLP builds Linear→ReLU blocks for each hidden width followed by a
// final Linear to classes. Weights are drawn from a generator seeded with
// seed, so equal seeds give equal models.
func NewMLP(in int, hidden []int, classes int, seed int64, scale float64) (*Sequential, error) {
	rng := rand.New(rand.NewSource(seed))
	layers := make([]Layer, 0, 2*len(hidden)+1)
	prev := in
	for _, width := range hidden {
		lin, err := NewLinear(prev, width, rng, scale)
		if err != nil {
			return nil, err
		}
		layers = append(layers, lin, NewReLU())
		prev = width
	}
	head, err := NewLinear(prev, classes, rng, scale)
	if err != nil {
		return nil, err
	}
	layers = append(layers, head)
	return NewSequential(layers...)
}

// Layers returns the model's layers in forward order.
func (s *Sequential) Layers() []Layer { return s.layers }

// InFeatures returns the input width of the first linear layer.
func (s *Sequential) InFeatures() int { return s.in }

// OutFeatures returns the number of logits emitted.
func (s *Sequential) OutFeatures() int { return s.out }

// Forward runs x through every layer and returns the logits.
func (s *Sequential) Forward(x *mat.Dense) (*mat.Dense, error) {
	var err error
	for i, layer := range s.layers {
		x, err = layer.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s) forward: %w", i, layer.Kind(), err)
		}
	}
	return x, nil
}

// Backward propagates the loss gradient through the layers in reverse
// order, accumulating into each parameter's gradient buffer.
func (s *Sequential) Backward(grad *mat.Dense) error {
	var err error
	for i := len(s.layers) - 1; i >= 0; i-- {
		grad, err = s.layers[i].Backward(grad)
		if err != nil {
			return fmt.Errorf("layer %d (%s) backward: %w", i, s.layers[i].Kind(), err)
		}
	}
	return nil
}

// Params returns every trainable parameter in forward order.
func (s *Sequential) Params() []*Param {
	var params []*Param
	for _, layer := range s.layers {
		params = append(params, layer.Params()...)
	}
	return params
}

// NamedParams returns parameters keyed "<layer index>.<name>".
func (s *Sequential) NamedParams() map[string]*Param {
	named := make(map[string]*Param)
	for i, layer := range s.layers {
		for _, p := range layer.Params() {
			named[fmt.Sprintf("%d.%s", i, p.Name)] = p
		}
	}
	return named
}

// ZeroGrad clears every gradient buffer.
func (s *Sequential) ZeroGrad() {
	for _, p := range s.Params() {
		p.ZeroGrad()
	}
}

// Predict returns per-row class probabilities.
func (s *Sequential) Predict(x *mat.Dense) (*mat.Dense, error) {
	logits, err := s.Forward(x)
	if err != nil {
		return nil, err
	}
	return Softmax(logits), nil
}

// Classify returns the most probable class for each row.
func (s *Sequential) Classify(x *mat.Dense) ([]int, error) {
	logits, err := s.Forward(x)
	if err != nil {
		return nil, err
	}
	rows, _ := logits.Dims()
	classes := make([]int, rows)
	for i := range classes {
		classes[i] = floats.MaxIdx(logits.RawRowView(i))
	}
	return classes, nil
}
