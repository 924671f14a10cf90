package dataset

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	imagesMagic = 2051
	labelsMagic = 2049
)

// ErrBadMagic reports an IDX header that does not match the expected type.
var ErrBadMagic = errors.New("dataset: invalid idx magic number")

// ReadImages parses an IDX3 image file:
//
//	magic      uint32 (2051)
//	count      uint32
//	rows, cols uint32
//	pixels     count*rows*cols unsigned bytes
//
// maxItems > 0 stops after that many images.
func ReadImages(r io.Reader, maxItems int) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("read image header: %w", err)
	}
	if header[0] != imagesMagic {
		return nil, 0, 0, fmt.Errorf("%w: got %d, want %d", ErrBadMagic, header[0], imagesMagic)
	}
	count := limit(int(header[1]), maxItems)
	rows, cols = int(header[2]), int(header[3])

	images = make([][]byte, count)
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("read image %d: %w", i, err)
		}
	}
	return images, rows, cols, nil
}

// ReadLabels parses an IDX1 label file:
//
//	magic  uint32 (2049)
//	count  uint32
//	labels count unsigned bytes
func ReadLabels(r io.Reader, maxItems int) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadMagic, header[0], labelsMagic)
	}
	labels := make([]byte, limit(int(header[1]), maxItems))
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return labels, nil
}

// WriteImages encodes images in IDX3 layout. All images must hold
// rows*cols pixels.
func WriteImages(w io.Writer, images [][]byte, rows, cols int) error {
	header := [4]uint32{imagesMagic, uint32(len(images)), uint32(rows), uint32(cols)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	for i, img := range images {
		if len(img) != rows*cols {
			return fmt.Errorf("image %d has %d pixels, want %d", i, len(img), rows*cols)
		}
		if _, err := w.Write(img); err != nil {
			return err
		}
	}
	return nil
}

// WriteLabels encodes labels in IDX1 layout.
func WriteLabels(w io.Writer, labels []byte) error {
	header := [2]uint32{labelsMagic, uint32(len(labels))}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(labels)
	return err
}

func limit(count, maxItems int) int {
	if maxItems > 0 && count > maxItems {
		return maxItems
	}
	return count
}

// openIDX opens path, transparently decompressing a .gz suffix.
func openIDX(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}
