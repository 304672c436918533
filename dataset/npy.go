package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sbinet/npyio"
)

// array is a decoded NumPy array. Exactly one of u8 and ints is set.
type array struct {
	shape []int
	u8    []uint8
	ints  []int64
}

func (a *array) size() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	return n
}

// dtype strips the byte order mark from a NumPy descr such as "<i8".
func dtype(descr string) string {
	return strings.TrimLeft(descr, "<>|=")
}

func readArray(r io.Reader) (*array, error) {
	rd, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}
	hdr := rd.Header.Descr
	if hdr.Fortran {
		return nil, fmt.Errorf("%w: fortran ordered arrays are not supported", ErrBadShape)
	}
	a := &array{shape: append([]int(nil), hdr.Shape...)}

	switch dt := dtype(hdr.Type); dt {
	case "u1":
		err = rd.Read(&a.u8)
	case "i1":
		var v []int8
		if err = rd.Read(&v); err == nil {
			a.ints = make([]int64, len(v))
			for i, x := range v {
				a.ints[i] = int64(x)
			}
		}
	case "i2":
		var v []int16
		if err = rd.Read(&v); err == nil {
			a.ints = make([]int64, len(v))
			for i, x := range v {
				a.ints[i] = int64(x)
			}
		}
	case "i4":
		var v []int32
		if err = rd.Read(&v); err == nil {
			a.ints = make([]int64, len(v))
			for i, x := range v {
				a.ints[i] = int64(x)
			}
		}
	case "i8":
		err = rd.Read(&a.ints)
	case "b1":
		var v []bool
		if err = rd.Read(&v); err == nil {
			a.ints = make([]int64, len(v))
			for i, x := range v {
				if x {
					a.ints[i] = 1
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", hdr.Type)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// images splits a (m, H, W, C) or (m, H, W) uint8 array into one byte slice
// per example.
func (a *array) images() ([][]byte, int, int, int, error) {
	if a.u8 == nil {
		return nil, 0, 0, 0, fmt.Errorf("%w: images must be uint8", ErrBadShape)
	}
	var m, h, w, c int
	switch len(a.shape) {
	case 3:
		m, h, w, c = a.shape[0], a.shape[1], a.shape[2], 1
	case 4:
		m, h, w, c = a.shape[0], a.shape[1], a.shape[2], a.shape[3]
	default:
		return nil, 0, 0, 0, fmt.Errorf("%w: images have shape %v", ErrBadShape, a.shape)
	}
	nx := h * w * c
	if len(a.u8) != m*nx {
		return nil, 0, 0, 0, fmt.Errorf("%w: %d bytes for shape %v", ErrBadShape, len(a.u8), a.shape)
	}
	out := make([][]byte, m)
	for j := range out {
		out[j] = a.u8[j*nx : (j+1)*nx]
	}
	return out, h, w, c, nil
}

// labels accepts (m,), (1, m) and (m, 1) label arrays.
func (a *array) labels() ([]int64, error) {
	switch {
	case len(a.shape) == 1:
	case len(a.shape) == 2 && (a.shape[0] == 1 || a.shape[1] == 1):
	default:
		return nil, fmt.Errorf("%w: labels have shape %v", ErrBadShape, a.shape)
	}
	if a.u8 != nil {
		out := make([]int64, len(a.u8))
		for i, v := range a.u8 {
			out[i] = int64(v)
		}
		return out, nil
	}
	if len(a.ints) != a.size() {
		return nil, fmt.Errorf("%w: %d labels for shape %v", ErrBadShape, len(a.ints), a.shape)
	}
	return a.ints, nil
}

func readArrayFile(path string) (*array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, err := readArray(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// LoadNPYPair reads images (m, H, W, C) uint8 and labels (m,) from two .npy
// files.
func LoadNPYPair(imagePath, labelPath string) (*Set, error) {
	xa, err := readArrayFile(imagePath)
	if err != nil {
		return nil, err
	}
	ya, err := readArrayFile(labelPath)
	if err != nil {
		return nil, err
	}
	return fromArrays(xa, ya, nil)
}

// LoadNPZ reads <prefix>_x and <prefix>_y from a NumPy .npz archive, plus the
// optional list_classes array of class names. An empty prefix means "train".
func LoadNPZ(path, prefix string) (*Set, error) {
	if prefix == "" {
		prefix = "train"
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[strings.TrimSuffix(f.Name, ".npy")] = f
	}
	read := func(name string) (*array, error) {
		f, ok := entries[name]
		if !ok {
			return nil, fmt.Errorf("%s: no array named %q", path, name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		a, err := readArray(rc)
		if err != nil {
			return nil, fmt.Errorf("%s[%s]: %w", path, name, err)
		}
		return a, nil
	}

	xa, err := read(prefix + "_x")
	if err != nil {
		return nil, err
	}
	ya, err := read(prefix + "_y")
	if err != nil {
		return nil, err
	}
	var classes []string
	if f, ok := entries["list_classes"]; ok {
		classes = readClasses(f)
	}
	return fromArrays(xa, ya, classes)
}

// readClasses decodes a byte string array of class names. Anything it cannot
// decode leaves the default names in place.
func readClasses(f *zip.File) []string {
	rc, err := f.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()
	rd, err := npyio.NewReader(rc)
	if err != nil {
		return nil
	}
	var names []string
	if err := rd.Read(&names); err != nil {
		return nil
	}
	for i := range names {
		names[i] = strings.TrimRight(names[i], "\x00")
	}
	return names
}

func fromArrays(xa, ya *array, classes []string) (*Set, error) {
	imgs, h, w, c, err := xa.images()
	if err != nil {
		return nil, err
	}
	labels, err := ya.labels()
	if err != nil {
		return nil, err
	}
	return newSet(imgs, labels, h, w, c, classes)
}
