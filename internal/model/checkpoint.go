package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

type checkpoint struct {
	Params []checkpointParam `json:"params"`
}

type checkpointParam struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// Save writes the model parameters as JSON.
func (s *Sequential) Save(w io.Writer) error {
	named := s.NamedParams()
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	ckpt := checkpoint{Params: make([]checkpointParam, 0, len(names))}
	for _, name := range names {
		p := named[name]
		rows, cols := p.Dims()
		data := make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			data = append(data, p.Value.RawRowView(i)...)
		}
		ckpt.Params = append(ckpt.Params, checkpointParam{Name: name, Rows: rows, Cols: cols, Data: data})
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(ckpt); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// Load overwrites the model parameters from JSON written by Save. Every
// parameter must be present with a matching shape.
func (s *Sequential) Load(r io.Reader) error {
	var ckpt checkpoint
	if err := json.NewDecoder(r).Decode(&ckpt); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	stored := make(map[string]checkpointParam, len(ckpt.Params))
	for _, p := range ckpt.Params {
		stored[p.Name] = p
	}
	named := s.NamedParams()
	for name, p := range named {
		src, ok := stored[name]
		if !ok {
			return fmt.Errorf("checkpoint missing %s", name)
		}
		rows, cols := p.Dims()
		if src.Rows != rows || src.Cols != cols || len(src.Data) != rows*cols {
			return fmt.Errorf("%w: %s is %dx%d in checkpoint, want %dx%d", ErrShapeMismatch, name, src.Rows, src.Cols, rows, cols)
		}
	}
	for name, p := range named {
		src := stored[name]
		rows, cols := p.Dims()
		for i := 0; i < rows; i++ {
			copy(p.Value.RawRowView(i), src.Data[i*cols:(i+1)*cols])
		}
	}
	return nil
}

// SaveFile writes a checkpoint to path.
func (s *Sequential) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a checkpoint from path.
func (s *Sequential) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	return s.Load(f)
}
