package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSoftmaxRowsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := make([]float64, 8*10)
	for i := range data {
		data[i] = rng.NormFloat64() * 50
	}
	data[0] = 1000
	data[11] = -1000

	probs := Softmax(mat.NewDense(8, 10, data))
	for i := 0; i < 8; i++ {
		row := probs.RawRowView(i)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-6, "row %d", i)
		for _, p := range row {
			assert.False(t, math.IsNaN(p))
			assert.GreaterOrEqual(t, p, 0.0)
		}
	}
}

func TestCrossEntropyKnownValue(t *testing.T) {
	ce := NewCrossEntropy()
	loss, err := ce.Forward(mat.NewDense(1, 2, []float64{2, 1}), []int{0})
	require.NoError(t, err)
	// -log(e^2 / (e^2 + e^1)) = log(1 + e^-1)
	assert.InDelta(t, math.Log1p(math.Exp(-1)), loss, 1e-12)
}

func TestCrossEntropyNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ce := NewCrossEntropy()
	for trial := 0; trial < 50; trial++ {
		data := make([]float64, 4*5)
		for i := range data {
			data[i] = rng.NormFloat64() * 10
		}
		labels := []int{rng.Intn(5), rng.Intn(5), rng.Intn(5), rng.Intn(5)}
		loss, err := ce.Forward(mat.NewDense(4, 5, data), labels)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, loss, 0.0)
	}
}

func TestCrossEntropyZeroOnlyForCertainPrediction(t *testing.T) {
	ce := NewCrossEntropy()

	loss, err := ce.Forward(mat.NewDense(1, 3, []float64{0, -1000, -1000}), []int{0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, loss)
	assert.Equal(t, 1.0, ce.Probabilities().At(0, 0))

	loss, err = ce.Forward(mat.NewDense(1, 3, []float64{0, -1000, -1000}), []int{1})
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)

	loss, err = ce.Forward(mat.NewDense(1, 3, []float64{5, 4.9, 0}), []int{0})
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)
}

func TestCrossEntropyInvalidLabel(t *testing.T) {
	ce := NewCrossEntropy()
	logits := mat.NewDense(2, 3, nil)
	for _, labels := range [][]int{{0, 3}, {-1, 0}} {
		_, err := ce.Forward(logits, labels)
		assert.ErrorIs(t, err, ErrInvalidLabel)
	}
	_, err := ce.Forward(logits, []int{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCrossEntropyNonFinite(t *testing.T) {
	ce := NewCrossEntropy()
	_, err := ce.Forward(mat.NewDense(1, 2, []float64{math.NaN(), 0}), []int{0})
	assert.ErrorIs(t, err, ErrNonFiniteLoss)

	_, err = ce.Forward(mat.NewDense(1, 2, []float64{math.Inf(1), 0}), []int{1})
	assert.ErrorIs(t, err, ErrNonFiniteLoss)
}

func TestCrossEntropyBackward(t *testing.T) {
	ce := NewCrossEntropy()
	_, err := ce.Backward()
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = ce.Forward(mat.NewDense(2, 2, []float64{0, 0, 0, 0}), []int{0, 1})
	require.NoError(t, err)
	grad, err := ce.Backward()
	require.NoError(t, err)
	want := mat.NewDense(2, 2, []float64{-0.25, 0.25, 0.25, -0.25})
	assert.True(t, mat.EqualApprox(want, grad, 1e-12), "grad = %v", mat.Formatted(grad))
}
