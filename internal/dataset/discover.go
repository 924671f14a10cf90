package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

// Split names one of the MNIST partitions by its file prefix.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "t10k"
)

// SplitFiles holds the image and label IDX paths for one split.
type SplitFiles struct {
	Images string
	Labels string
}

var idxRegexp = regexp.MustCompile(`^(train|t10k)-(images-idx3|labels-idx1)-ubyte(\.gz)?$`)

// DiscoverFiles returns MNIST IDX files beneath root keyed by split. When
// both a plain and a gzipped copy exist, the plain file wins.
func DiscoverFiles(root string) (map[Split]SplitFiles, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if idxRegexp.MatchString(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover idx files: %w", err)
	}
	sort.Strings(paths)

	found := make(map[Split]SplitFiles)
	for _, path := range paths {
		m := idxRegexp.FindStringSubmatch(filepath.Base(path))
		split := Split(m[1])
		files := found[split]
		switch m[2] {
		case "images-idx3":
			if files.Images == "" {
				files.Images = path
			}
		case "labels-idx1":
			if files.Labels == "" {
				files.Labels = path
			}
		}
		found[split] = files
	}
	return found, nil
}
