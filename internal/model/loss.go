package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropy is softmax followed by negative log-likelihood, averaged
// over the batch.
//
// Backward returns (softmax(logits) - onehot(labels)) / B, so the batch
// mean is folded into the gradient here and nowhere else.
type CrossEntropy struct {
	probs  *mat.Dense
	labels []int
}

// NewCrossEntropy returns a softmax cross-entropy loss.
func NewCrossEntropy() *CrossEntropy {
	return &CrossEntropy{}
}

// Forward returns the mean loss of logits [batch, classes] against labels.
func (c *CrossEntropy) Forward(logits *mat.Dense, labels []int) (float64, error) {
	rows, cols := logits.Dims()
	if rows == 0 || len(labels) != rows {
		return 0, fmt.Errorf("%w: %d logit rows, %d labels", ErrShapeMismatch, rows, len(labels))
	}
	for i, label := range labels {
		if label < 0 || label >= cols {
			return 0, fmt.Errorf("%w: label %d at row %d, want [0, %d)", ErrInvalidLabel, label, i, cols)
		}
	}

	probs := mat.NewDense(rows, cols, nil)
	total := 0.0
	for i := 0; i < rows; i++ {
		src := logits.RawRowView(i)
		maxLogit, sum := softmaxRow(probs.RawRowView(i), src)
		total += (maxLogit - src[labels[i]]) + math.Log(sum)
	}
	loss := total / float64(rows)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonFiniteLoss, loss)
	}

	c.probs = probs
	c.labels = append(c.labels[:0], labels...)
	return loss, nil
}

// Backward returns the gradient of the mean loss with respect to the
// logits of the last Forward call.
func (c *CrossEntropy) Backward() (*mat.Dense, error) {
	if c.probs == nil {
		return nil, fmt.Errorf("%w: loss backward called before forward", ErrShapeMismatch)
	}
	rows, cols := c.probs.Dims()
	grad := mat.NewDense(rows, cols, nil)
	grad.Copy(c.probs)
	for i, label := range c.labels {
		row := grad.RawRowView(i)
		row[label] -= 1
	}
	grad.Scale(1/float64(rows), grad)
	return grad, nil
}

// Probabilities returns the softmax output cached by the last Forward.
func (c *CrossEntropy) Probabilities() *mat.Dense {
	return c.probs
}

// Softmax returns the row-wise softmax of logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		softmaxRow(out.RawRowView(i), logits.RawRowView(i))
	}
	return out
}

// softmaxRow writes softmax(src) into dst, subtracting the row max before
// exponentiating. It returns the max and the sum of shifted exponentials.
func softmaxRow(dst, src []float64) (float64, float64) {
	maxLogit := floats.Max(src)
	for j, v := range src {
		dst[j] = math.Exp(v - maxLogit)
	}
	sum := floats.Sum(dst)
	floats.Scale(1/sum, dst)
	return maxLogit, sum
}
