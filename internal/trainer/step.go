package trainer

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/billwebb/DL-PyTorch/internal/model"
)

// ErrPhaseOrder reports a step stage entered out of sequence.
var ErrPhaseOrder = errors.New("trainer: step phase out of order")

// Network is the trainable model: a forward pass to logits and a backward
// pass that accumulates parameter gradients.
type Network interface {
	Forward(x *mat.Dense) (*mat.Dense, error)
	Backward(grad *mat.Dense) error
}

// Loss scores logits against labels and yields the gradient w.r.t. them.
type Loss interface {
	Forward(logits *mat.Dense, labels []int) (float64, error)
	Backward() (*mat.Dense, error)
}

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	Step()
	ZeroGrad()
}

// Phase is a stage of a single training step.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseForward
	PhaseLossComputed
	PhaseBackward
	PhaseUpdated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseForward:
		return "forward"
	case PhaseLossComputed:
		return "loss_computed"
	case PhaseBackward:
		return "backward"
	case PhaseUpdated:
		return "updated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// next is the only legal successor of each phase.
var next = map[Phase]Phase{
	PhaseIdle:         PhaseForward,
	PhaseForward:      PhaseLossComputed,
	PhaseLossComputed: PhaseBackward,
	PhaseBackward:     PhaseUpdated,
	PhaseUpdated:      PhaseIdle,
}

// Stepper runs training steps as zero grad, forward, loss, backward,
// update. Each stage consumes the previous one's output.
type Stepper struct {
	net  Network
	loss Loss
	opt  Optimizer

	phase Phase
	steps int

	// Observer, when set, is called after every phase transition.
	Observer func(Phase)
}

// NewStepper binds a model, loss and optimizer.
func NewStepper(net Network, loss Loss, opt Optimizer) *Stepper {
	return &Stepper{net: net, loss: loss, opt: opt}
}

// Phase returns the current phase; it is PhaseIdle between steps.
func (s *Stepper) Phase() Phase { return s.phase }

// Steps returns the number of completed parameter updates.
func (s *Stepper) Steps() int { return s.steps }

// Step trains on one batch and returns its loss. Any error aborts the
// step before parameters are touched, leaving the stepper idle.
func (s *Stepper) Step(batch model.Batch) (float64, error) {
	if s.phase != PhaseIdle {
		return 0, fmt.Errorf("%w: step started in %s", ErrPhaseOrder, s.phase)
	}
	loss, err := s.run(batch)
	if err != nil {
		s.phase = PhaseIdle
		return 0, err
	}
	s.steps++
	return loss, nil
}

func (s *Stepper) run(batch model.Batch) (float64, error) {
	s.opt.ZeroGrad()

	logits, err := s.net.Forward(batch.Inputs)
	if err != nil {
		return 0, fmt.Errorf("forward: %w", err)
	}
	if err := s.advance(PhaseForward); err != nil {
		return 0, err
	}

	loss, err := s.loss.Forward(logits, batch.Labels)
	if err != nil {
		return 0, fmt.Errorf("loss: %w", err)
	}
	if err := s.advance(PhaseLossComputed); err != nil {
		return 0, err
	}

	grad, err := s.loss.Backward()
	if err != nil {
		return 0, fmt.Errorf("loss backward: %w", err)
	}
	if err := s.net.Backward(grad); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	if err := s.advance(PhaseBackward); err != nil {
		return 0, err
	}

	s.opt.Step()
	if err := s.advance(PhaseUpdated); err != nil {
		return 0, err
	}
	if err := s.advance(PhaseIdle); err != nil {
		return 0, err
	}
	return loss, nil
}

func (s *Stepper) advance(to Phase) error {
	if next[s.phase] != to {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, s.phase, to)
	}
	s.phase = to
	if s.Observer != nil {
		s.Observer(to)
	}
	return nil
}
