package dataset

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DefaultImageSize is the side length every image is resized to.
const DefaultImageSize = 64

// Class directories read by LoadImageDir, indexed by label.
var classDirs = []string{"non-cat", "cat"}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// ToRGB resizes img to size×size and returns its pixels as channel-last RGB
// bytes (size*size*3). Alpha is dropped.
func ToRGB(img image.Image, size int) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]byte, 0, size*size*3)
	for y := 0; y < size; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+size*4]
		for x := 0; x < size; x++ {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

func decodeFile(path string, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ToRGB(img, size), nil
}

// LoadImage reads one picture and returns it as an (size*size*3, 1) column
// ready for prediction, together with its raw bytes.
func LoadImage(path string, size int) (*mat.Dense, []byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	raw, err := decodeFile(path, size)
	if err != nil {
		return nil, nil, err
	}
	X, err := Flatten([][]byte{raw}, size, size, 3)
	if err != nil {
		return nil, nil, err
	}
	return X, raw, nil
}

// LoadImageDir reads dir/non-cat/* as label 0 and dir/cat/* as label 1,
// decoding in parallel. Files are ordered by class, then by name.
func LoadImageDir(dir string, size int) (*Set, error) {
	type entry struct {
		path  string
		label int64
	}
	var entries []entry
	for label, class := range classDirs {
		names, err := os.ReadDir(filepath.Join(dir, class))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var files []string
		for _, n := range names {
			if !n.IsDir() && imageExts[strings.ToLower(filepath.Ext(n.Name()))] {
				files = append(files, n.Name())
			}
		}
		sort.Strings(files)
		for _, f := range files {
			entries = append(entries, entry{path: filepath.Join(dir, class, f), label: int64(label)})
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: no images under %s", dir, strings.Join(classDirs, "/ or "))
	}

	images := make([][]byte, len(entries))
	labels := make([]int64, len(entries))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, e := range entries {
		i, e := i, e
		labels[i] = e.label
		g.Go(func() error {
			raw, err := decodeFile(e.path, size)
			if err != nil {
				return err
			}
			images[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newSet(images, labels, size, size, 3, nil)
}
