package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/billwebb/DL-PyTorch/internal/dataset"
	"github.com/billwebb/DL-PyTorch/internal/metrics"
	"github.com/billwebb/DL-PyTorch/internal/model"
	"github.com/billwebb/DL-PyTorch/internal/optim"
)

// RunConfig captures the knobs required by a full training run.
type RunConfig struct {
	RunID        string
	DataDir      string
	Epochs       int
	BatchSize    int
	Hidden       []int
	LearningRate float64
	InitScale    float64
	Seed         int64
	LogEvery     int
	NumWorkers   int
	MaxSamples   int
	Shuffle      bool
	Checkpoint   string
}

// Summary reports what a run produced.
type Summary struct {
	Result
	Accuracy metrics.Accuracy
	// Probabilities holds the class distribution for the first test image.
	Probabilities []float64
	FirstLabel    int
}

// Run loads MNIST from cfg.DataDir, trains an MLP, evaluates it on the
// test split and optionally writes a checkpoint.
func Run(ctx context.Context, cfg RunConfig) (Summary, error) {
	if cfg.Epochs <= 0 {
		return Summary{}, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return Summary{}, errors.New("trainer: batch size must be > 0")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	train, err := dataset.Load(cfg.DataDir, dataset.SplitTrain, cfg.MaxSamples)
	if err != nil {
		return Summary{}, fmt.Errorf("load train split: %w", err)
	}
	test, err := dataset.Load(cfg.DataDir, dataset.SplitTest, cfg.MaxSamples)
	if err != nil {
		return Summary{}, fmt.Errorf("load test split: %w", err)
	}
	log.Printf("run=%s train=%d test=%d features=%d", cfg.RunID, train.Len(), test.Len(), train.Features())

	trainLoader, err := dataset.NewLoader(train, dataset.LoaderOptions{
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		Shuffle:    cfg.Shuffle,
	})
	if err != nil {
		return Summary{}, err
	}
	testLoader, err := dataset.NewLoader(test, dataset.LoaderOptions{
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
	})
	if err != nil {
		return Summary{}, err
	}

	net, err := model.NewMLP(train.Features(), cfg.Hidden, model.NumClasses, cfg.Seed, cfg.InitScale)
	if err != nil {
		return Summary{}, fmt.Errorf("build model: %w", err)
	}
	sgd, err := optim.NewSGD(net.Params(), cfg.LearningRate)
	if err != nil {
		return Summary{}, err
	}
	log.Printf("run=%s hidden=%v lr=%g batches_per_epoch=%d epochs=%d", cfg.RunID, cfg.Hidden, sgd.LR(), trainLoader.NumBatches(), cfg.Epochs)

	stepper := NewStepper(net, model.NewCrossEntropy(), sgd)
	res, err := Train(ctx, stepper, trainLoader, Options{
		Epochs:   cfg.Epochs,
		LogEvery: cfg.LogEvery,
		Reporter: LogReporter{RunID: cfg.RunID},
	})
	if err != nil {
		return Summary{Result: res}, err
	}

	acc, err := Evaluate(ctx, net, testLoader)
	if err != nil {
		return Summary{Result: res}, err
	}
	log.Printf("run=%s steps=%d test_accuracy=%.4f (%d/%d)", cfg.RunID, res.Steps, acc.Value(), acc.Correct, acc.Total)

	first, err := test.Batch([]int{0})
	if err != nil {
		return Summary{Result: res, Accuracy: acc}, err
	}
	probs, err := net.Predict(first.Inputs)
	if err != nil {
		return Summary{Result: res, Accuracy: acc}, err
	}

	if cfg.Checkpoint != "" {
		if err := net.SaveFile(cfg.Checkpoint); err != nil {
			return Summary{Result: res, Accuracy: acc}, err
		}
		log.Printf("run=%s checkpoint=%s", cfg.RunID, cfg.Checkpoint)
	}

	return Summary{
		Result:        res,
		Accuracy:      acc,
		Probabilities: append([]float64(nil), probs.RawRowView(0)...),
		FirstLabel:    first.Labels[0],
	}, nil
}
