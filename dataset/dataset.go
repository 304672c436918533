// Package dataset loads labelled cat / non-cat images and turns them into the
// column-per-example matrices the classifier trains on.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrBadLabel is returned when a label is neither 0 nor 1.
	ErrBadLabel = errors.New("label must be 0 or 1")
	// ErrBadShape is returned when stored arrays do not describe an image batch.
	ErrBadShape = errors.New("unexpected array shape")
)

// DefaultClasses names label 0 and label 1.
var DefaultClasses = []string{"non-cat", "cat"}

// Set is one labelled split. X is (H*W*C, m) scaled to [0,1], Y is (1, m).
// Images keeps the raw channel-last bytes of each example for display.
type Set struct {
	X        *mat.Dense
	Y        *mat.Dense
	Images   [][]byte
	Height   int
	Width    int
	Channels int
	Classes  []string
}

// Len returns the number of examples.
func (s *Set) Len() int {
	if s == nil || s.Y == nil {
		return 0
	}
	_, m := s.Y.Dims()
	return m
}

// Features returns n_x, the length of one flattened example.
func (s *Set) Features() int {
	return s.Height * s.Width * s.Channels
}

// ClassName returns the name of label, falling back to the number.
func (s *Set) ClassName(label int) string {
	if label >= 0 && label < len(s.Classes) {
		return s.Classes[label]
	}
	return fmt.Sprintf("class %d", label)
}

// Flatten reshapes m images of H×W×C bytes into an (H*W*C, m) matrix of
// values in [0,1]. Within a column the channel index varies fastest, then the
// column index, then the row, matching a row-major (m, H, W, C) array.
func Flatten(images [][]byte, height, width, channels int) (*mat.Dense, error) {
	nx := height * width * channels
	m := len(images)
	if nx <= 0 || m == 0 {
		return nil, fmt.Errorf("%w: %d images of %dx%dx%d", ErrBadShape, m, height, width, channels)
	}
	X := mat.NewDense(nx, m, nil)
	for j, img := range images {
		if len(img) != nx {
			return nil, fmt.Errorf("%w: image %d has %d bytes, expected %d", ErrBadShape, j, len(img), nx)
		}
		for i, v := range img {
			X.Set(i, j, float64(v)/255)
		}
	}
	return X, nil
}

// labelRow converts integer labels into a (1, m) matrix, rejecting anything
// other than 0 and 1.
func labelRow(labels []int64) (*mat.Dense, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels", ErrBadShape)
	}
	Y := mat.NewDense(1, len(labels), nil)
	for j, l := range labels {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("%w: example %d has label %d", ErrBadLabel, j, l)
		}
		Y.Set(0, j, float64(l))
	}
	return Y, nil
}

func newSet(images [][]byte, labels []int64, h, w, c int, classes []string) (*Set, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images but %d labels", ErrBadShape, len(images), len(labels))
	}
	X, err := Flatten(images, h, w, c)
	if err != nil {
		return nil, err
	}
	Y, err := labelRow(labels)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	return &Set{
		X:        X,
		Y:        Y,
		Images:   images,
		Height:   h,
		Width:    w,
		Channels: c,
		Classes:  classes,
	}, nil
}

// Source describes where one split lives.
//
//   - a directory: cat/ and non-cat/ image folders, resized to Size×Size
//   - a .npz archive: arrays <Prefix>_x and <Prefix>_y
//   - a .npy file: the image array, with labels in LabelPath
type Source struct {
	Path      string `yaml:"path"`
	Prefix    string `yaml:"prefix,omitempty"`
	LabelPath string `yaml:"label_path,omitempty"`
	Size      int    `yaml:"size,omitempty"`
}

// Load reads the split described by src.
func Load(src Source) (*Set, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", src.Path, err)
	}
	if info.IsDir() {
		size := src.Size
		if size <= 0 {
			size = DefaultImageSize
		}
		return LoadImageDir(src.Path, size)
	}
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".npz":
		return LoadNPZ(src.Path, src.Prefix)
	case ".npy":
		if src.LabelPath == "" {
			return nil, fmt.Errorf("dataset %s: .npy images need a label_path", src.Path)
		}
		return LoadNPYPair(src.Path, src.LabelPath)
	default:
		return nil, fmt.Errorf("dataset %s: unsupported format", src.Path)
	}
}

// LoadSplits loads the training and test splits concurrently.
func LoadSplits(ctx context.Context, train, test Source) (*Set, *Set, error) {
	var trainSet, testSet *Set
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := Load(train)
		if err != nil {
			return fmt.Errorf("train split: %w", err)
		}
		trainSet = s
		return ctx.Err()
	})
	g.Go(func() error {
		s, err := Load(test)
		if err != nil {
			return fmt.Errorf("test split: %w", err)
		}
		testSet = s
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if trainSet.Features() != testSet.Features() {
		return nil, nil, fmt.Errorf("%w: train has %d features, test has %d",
			ErrBadShape, trainSet.Features(), testSet.Features())
	}
	return trainSet, testSet, nil
}
