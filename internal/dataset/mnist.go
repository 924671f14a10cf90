package dataset

import (
	"bufio"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/billwebb/DL-PyTorch/internal/model"
)

// Dataset is an in-memory set of flattened, normalised images and their
// labels.
type Dataset struct {
	Images [][]float64
	Labels []int
	Rows   int
	Cols   int
}

// Normalize maps a 0-255 pixel to [-1, 1] (scale to [0, 1], then mean
// 0.5 and std 0.5).
func Normalize(pixel byte) float64 {
	return (float64(pixel)/255 - 0.5) / 0.5
}

// FromRaw normalises raw pixels into a Dataset.
func FromRaw(images [][]byte, labels []byte, rows, cols int) (*Dataset, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("dataset: %d images but %d labels", len(images), len(labels))
	}
	ds := &Dataset{
		Images: make([][]float64, len(images)),
		Labels: make([]int, len(labels)),
		Rows:   rows,
		Cols:   cols,
	}
	for i, img := range images {
		if len(img) != rows*cols {
			return nil, fmt.Errorf("dataset: image %d has %d pixels, want %d", i, len(img), rows*cols)
		}
		vec := make([]float64, len(img))
		for j, px := range img {
			vec[j] = Normalize(px)
		}
		ds.Images[i] = vec
		ds.Labels[i] = int(labels[i])
	}
	return ds, nil
}

// Load reads one split from the IDX files discovered under root.
func Load(root string, split Split, maxSamples int) (*Dataset, error) {
	found, err := DiscoverFiles(root)
	if err != nil {
		return nil, err
	}
	files, ok := found[split]
	if !ok || files.Images == "" || files.Labels == "" {
		return nil, fmt.Errorf("dataset: %s split incomplete under %s", split, root)
	}
	return LoadFiles(files, maxSamples)
}

// LoadFiles reads an image/label IDX pair.
func LoadFiles(files SplitFiles, maxSamples int) (*Dataset, error) {
	imgFile, err := openIDX(files.Images)
	if err != nil {
		return nil, fmt.Errorf("open images: %w", err)
	}
	defer imgFile.Close()
	images, rows, cols, err := ReadImages(bufio.NewReader(imgFile), maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", files.Images, err)
	}

	lblFile, err := openIDX(files.Labels)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer lblFile.Close()
	labels, err := ReadLabels(bufio.NewReader(lblFile), maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", files.Labels, err)
	}

	return FromRaw(images, labels, rows, cols)
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Features returns the flattened image width.
func (d *Dataset) Features() int {
	return d.Rows * d.Cols
}

// Batch materialises the examples at indices into a model batch.
func (d *Dataset) Batch(indices []int) (model.Batch, error) {
	if len(indices) == 0 {
		return model.Batch{}, fmt.Errorf("dataset: empty batch")
	}
	width := d.Features()
	if width == 0 {
		return model.Batch{}, fmt.Errorf("dataset: images have no pixels")
	}
	data := make([]float64, len(indices)*width)
	labels := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return model.Batch{}, fmt.Errorf("dataset: index %d out of range [0, %d)", idx, d.Len())
		}
		copy(data[i*width:(i+1)*width], d.Images[idx])
		labels[i] = d.Labels[idx]
	}
	return model.Batch{
		Inputs: mat.NewDense(len(indices), width, data),
		Labels: labels,
	}, nil
}
