package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/billwebb/DL-PyTorch/internal/metrics"
	"github.com/billwebb/DL-PyTorch/internal/model"
)

// BatchSource yields one epoch of fully materialised batches per call.
// The batch channel closes at the end of the epoch, after which the error
// channel reports any failure.
type BatchSource interface {
	Epoch(ctx context.Context) (<-chan model.Batch, <-chan error)
}

// Progress is a periodic loss report.
type Progress struct {
	Epoch int
	Step  int
	metrics.Snapshot
}

// Reporter receives periodic progress. It observes training only.
type Reporter interface {
	Report(Progress)
}

// LogReporter writes progress lines with the standard logger.
type LogReporter struct {
	RunID string
}

// Report implements Reporter.
func (r LogReporter) Report(p Progress) {
	log.Printf("run=%s epoch=%d step=%d loss=%.4f images_per_sec=%.1f data_ms=%.2f compute_ms=%.2f",
		r.RunID,
		p.Epoch,
		p.Step,
		p.AvgLoss,
		p.ImagesPerSec,
		p.AvgDataMS,
		p.AvgComputeMS,
	)
}

// Options controls the epoch loop.
type Options struct {
	Epochs   int
	LogEvery int
	Reporter Reporter
}

// Result summarises a finished run.
type Result struct {
	Epochs   int
	Steps    int
	LastLoss float64
}

// Train runs opts.Epochs passes over src, one Stepper step per batch.
// The running loss average is reported every LogEvery steps and reset.
func Train(ctx context.Context, stepper *Stepper, src BatchSource, opts Options) (Result, error) {
	if opts.Epochs <= 0 {
		return Result{}, errors.New("trainer: epochs must be > 0")
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 100
	}

	var (
		res    Result
		window metrics.Window
	)
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		err := forEachBatch(ctx, src, func(batch model.Batch, dataTime time.Duration) error {
			startCompute := time.Now()
			loss, err := stepper.Step(batch)
			if err != nil {
				return fmt.Errorf("epoch %d step %d: %w", epoch, res.Steps+1, err)
			}
			computeTime := time.Since(startCompute)

			res.Steps++
			res.LastLoss = loss
			window.Record(batch.Size(), dataTime, computeTime, loss)
			if res.Steps%opts.LogEvery == 0 && opts.Reporter != nil {
				opts.Reporter.Report(Progress{Epoch: epoch, Step: res.Steps, Snapshot: window.Snapshot()})
			}
			return nil
		})
		if err != nil {
			return res, err
		}
		res.Epochs = epoch
	}
	return res, nil
}

// Classifier predicts a class per input row.
type Classifier interface {
	Classify(x *mat.Dense) ([]int, error)
}

// Evaluate scores clf over one epoch of src.
func Evaluate(ctx context.Context, clf Classifier, src BatchSource) (metrics.Accuracy, error) {
	var acc metrics.Accuracy
	err := forEachBatch(ctx, src, func(batch model.Batch, _ time.Duration) error {
		predicted, err := clf.Classify(batch.Inputs)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		acc.Add(predicted, batch.Labels)
		return nil
	})
	return acc, err
}

// forEachBatch drains one epoch, timing how long each batch took to
// arrive. Returning an error from fn abandons the rest of the epoch.
func forEachBatch(parent context.Context, src BatchSource, fn func(model.Batch, time.Duration) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	batches, errs := src.Epoch(ctx)
	for {
		startData := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				if err := <-errs; err != nil {
					return fmt.Errorf("load batch: %w", err)
				}
				return nil
			}
			if err := fn(batch, time.Since(startData)); err != nil {
				return err
			}
		}
	}
}
