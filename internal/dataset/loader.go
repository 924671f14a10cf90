package dataset

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/billwebb/DL-PyTorch/internal/model"
)

// LoaderOptions configures batching over a Dataset.
type LoaderOptions struct {
	BatchSize  int
	NumWorkers int
	Seed       int64
	Shuffle    bool
	DropLast   bool
}

// Loader yields an epoch of batches at a time. Batches are assembled by
// worker goroutines but always delivered whole and in a deterministic order
// for a given seed.
type Loader struct {
	ds   *Dataset
	opts LoaderOptions
	rng  *rand.Rand
}

// NewLoader validates opts and returns a loader over ds.
func NewLoader(ds *Dataset, opts LoaderOptions) (*Loader, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, errors.New("loader: empty dataset")
	}
	if opts.BatchSize <= 0 {
		return nil, errors.New("loader: batch size must be > 0")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	l := &Loader{
		ds:   ds,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
	if l.NumBatches() == 0 {
		return nil, errors.New("loader: dataset smaller than one batch with drop_last")
	}
	return l, nil
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n := l.ds.Len() / l.opts.BatchSize
	if !l.opts.DropLast && l.ds.Len()%l.opts.BatchSize != 0 {
		n++
	}
	return n
}

// Epoch starts delivering one pass over the dataset. The batch channel is
// closed when the epoch ends; by then the error channel holds at most one
// error and is closed too. Cancel ctx to abandon an epoch early.
func (l *Loader) Epoch(parent context.Context) (<-chan model.Batch, <-chan error) {
	ctx, cancel := context.WithCancel(parent)

	workers := l.opts.NumWorkers
	jobs := make(chan batchJob, workers)
	results := make(chan batchResult, workers)
	out := make(chan model.Batch, workers)
	errCh := make(chan error, 1)

	go produceJobs(ctx, jobs, l.order(), l.opts.BatchSize, l.NumBatches())

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.worker(ctx, jobs, results)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer cancel()
		defer close(out)
		defer close(errCh)
		if err := runAggregator(ctx, results, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// order returns the example order for the next epoch. The generator is
// shared across epochs, so each epoch is shuffled differently but the
// sequence of epochs is reproducible.
func (l *Loader) order() []int {
	n := l.ds.Len()
	if l.opts.Shuffle {
		return l.rng.Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

type batchJob struct {
	id      int
	indices []int
}

type batchResult struct {
	id    int
	batch model.Batch
	err   error
}

func produceJobs(ctx context.Context, jobs chan<- batchJob, order []int, batchSize, numBatches int) {
	defer close(jobs)
	for id := 0; id < numBatches; id++ {
		start := id * batchSize
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		select {
		case <-ctx.Done():
			return
		case jobs <- batchJob{id: id, indices: order[start:end]}:
		}
	}
}

func (l *Loader) worker(ctx context.Context, jobs <-chan batchJob, results chan<- batchResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			batch, err := l.ds.Batch(job.indices)
			select {
			case <-ctx.Done():
				return
			case results <- batchResult{id: job.id, batch: batch, err: err}:
			}
		}
	}
}

// runAggregator re-sequences worker output by batch id.
func runAggregator(ctx context.Context, results <-chan batchResult, out chan<- model.Batch) error {
	pending := make(map[int]model.Batch)
	next := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-results:
			if !ok {
				// Workers also stop on cancellation, so a closed channel
				// does not by itself mean the epoch completed.
				return ctx.Err()
			}
			if res.err != nil {
				return res.err
			}
			pending[res.id] = res.batch
			for {
				batch, ready := pending[next]
				if !ready {
					break
				}
				delete(pending, next)
				next++
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- batch:
				}
			}
		}
	}
}
