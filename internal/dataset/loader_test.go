package dataset

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqDataset returns n single-pixel images whose label equals their index.
func seqDataset(n int) *Dataset {
	ds := &Dataset{Rows: 1, Cols: 2}
	for i := 0; i < n; i++ {
		ds.Images = append(ds.Images, []float64{float64(i), -float64(i)})
		ds.Labels = append(ds.Labels, i)
	}
	return ds
}

func TestLoaderNumBatches(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		batch    int
		dropLast bool
		want     int
	}{
		{"exact", 20, 5, false, 4},
		{"partial kept", 21, 5, false, 5},
		{"partial dropped", 21, 5, true, 4},
		{"single", 3, 10, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLoader(seqDataset(tt.n), LoaderOptions{BatchSize: tt.batch, DropLast: tt.dropLast})
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.NumBatches())
		})
	}
}

func TestNewLoaderRejectsBadOptions(t *testing.T) {
	_, err := NewLoader(seqDataset(3), LoaderOptions{BatchSize: 0})
	assert.Error(t, err)
	_, err = NewLoader(&Dataset{}, LoaderOptions{BatchSize: 1})
	assert.Error(t, err)
	_, err = NewLoader(seqDataset(3), LoaderOptions{BatchSize: 4, DropLast: true})
	assert.Error(t, err)
}

func TestLoaderEpochCoversDataset(t *testing.T) {
	l, err := NewLoader(seqDataset(23), LoaderOptions{BatchSize: 5, NumWorkers: 4, Shuffle: true, Seed: 9})
	require.NoError(t, err)

	labels := collectEpoch(t, l)
	require.Len(t, labels, 5)
	var seen []int
	for i, batch := range labels {
		if i < 4 {
			assert.Len(t, batch, 5)
		}
		seen = append(seen, batch...)
	}
	sort.Ints(seen)
	for i, v := range seen {
		require.Equal(t, i, v)
	}
}

func TestLoaderDeterministicAcrossRuns(t *testing.T) {
	opts := LoaderOptions{BatchSize: 4, NumWorkers: 3, Shuffle: true, Seed: 123}
	l1, err := NewLoader(seqDataset(20), opts)
	require.NoError(t, err)
	l2, err := NewLoader(seqDataset(20), opts)
	require.NoError(t, err)

	first1, first2 := collectEpoch(t, l1), collectEpoch(t, l2)
	assert.Equal(t, first1, first2)

	second1, second2 := collectEpoch(t, l1), collectEpoch(t, l2)
	assert.Equal(t, second1, second2)
	assert.NotEqual(t, first1, second1, "epochs should be reshuffled")
}

func TestLoaderUnshuffledOrder(t *testing.T) {
	l, err := NewLoader(seqDataset(6), LoaderOptions{BatchSize: 4, NumWorkers: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {4, 5}}, collectEpoch(t, l))
}

func TestLoaderBatchInputs(t *testing.T) {
	l, err := NewLoader(seqDataset(3), LoaderOptions{BatchSize: 3})
	require.NoError(t, err)
	batches, errs := l.Epoch(context.Background())
	batch := <-batches
	rows, cols := batch.Inputs.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, -2.0, batch.Inputs.At(2, 1))
	_, ok := <-batches
	assert.False(t, ok)
	assert.NoError(t, <-errs)
}

func TestLoaderCancel(t *testing.T) {
	l, err := NewLoader(seqDataset(100), LoaderOptions{BatchSize: 1, NumWorkers: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	batches, errs := l.Epoch(ctx)
	<-batches
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-batches:
			if !ok {
				assert.ErrorIs(t, <-errs, context.Canceled)
				return
			}
		case <-deadline:
			t.Fatal("loader did not stop after cancel")
		}
	}
}

func collectEpoch(t *testing.T, l *Loader) [][]int {
	t.Helper()
	batches, errs := l.Epoch(context.Background())
	var out [][]int
	deadline := time.After(time.Second)
	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				require.NoError(t, <-errs)
				return out
			}
			out = append(out, batch.Labels)
		case <-deadline:
			t.Fatal("timed out waiting for batches")
		}
	}
}
