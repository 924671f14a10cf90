// Package optim holds parameter update rules.
package optim

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/billwebb/DL-PyTorch/internal/model"
)

// ErrInvalidLearningRate is returned for a learning rate that is not > 0.
var ErrInvalidLearningRate = errors.New("optim: learning rate must be > 0")

// SGD applies param -= lr * grad to every registered parameter.
// The learning rate is fixed for the optimizer's lifetime.
type SGD struct {
	params []*model.Param
	lr     float64
}

// NewSGD registers params for plain gradient descent.
func NewSGD(params []*model.Param, lr float64) (*SGD, error) {
	if !(lr > 0) {
		return nil, fmt.Errorf("%w (got %v)", ErrInvalidLearningRate, lr)
	}
	return &SGD{params: params, lr: lr}, nil
}

// Step updates every parameter in place from its accumulated gradient.
func (s *SGD) Step() {
	for _, p := range s.params {
		rows, _ := p.Dims()
		for i := 0; i < rows; i++ {
			floats.AddScaled(p.Value.RawRowView(i), -s.lr, p.Grad.RawRowView(i))
		}
	}
}

// ZeroGrad clears every registered gradient buffer. Gradients are
// additive, so this must run before each backward pass.
func (s *SGD) ZeroGrad() {
	for _, p := range s.params {
		p.ZeroGrad()
	}
}

// LR returns the learning rate.
func (s *SGD) LR() float64 {
	return s.lr
}

// Params returns the registered parameters.
func (s *SGD) Params() []*model.Param {
	return s.params
}
