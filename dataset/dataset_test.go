package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeNPY encodes data as a version 1.0 .npy stream.
func writeNPY(t *testing.T, w io.Writer, descr string, shape []int, data any) {
	t.Helper()
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	shapeStr := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	shapeStr += ")"
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeStr)
	pad := 64 - (10+len(header)+1)%64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))))
	buf.WriteString(header)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, data))
	_, err := w.Write(buf.Bytes())
	require.NoError(t, err)
}

// twoImages is a (2, 2, 2, 3) batch whose bytes count up from 0.
func twoImages() []uint8 {
	out := make([]uint8, 24)
	for i := range out {
		out[i] = uint8(i * 10)
	}
	return out
}

func TestFlattenIsChannelLast(t *testing.T) {
	img := []byte{0, 51, 102, 153, 204, 255}
	X, err := Flatten([][]byte{img, img}, 1, 2, 3)
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, [2]int{6, 2}, [2]int{r, c})
	for i, v := range img {
		assert.InDelta(t, float64(v)/255, X.At(i, 0), 1e-12)
		assert.InDelta(t, float64(v)/255, X.At(i, 1), 1e-12)
	}

	_, err = Flatten([][]byte{img, img[:5]}, 1, 2, 3)
	assert.ErrorIs(t, err, ErrBadShape)
	_, err = Flatten(nil, 1, 2, 3)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestLoadNPYPair(t *testing.T) {
	dir := t.TempDir()
	xPath := filepath.Join(dir, "x.npy")
	yPath := filepath.Join(dir, "y.npy")

	xf, err := os.Create(xPath)
	require.NoError(t, err)
	writeNPY(t, xf, "|u1", []int{2, 2, 2, 3}, twoImages())
	require.NoError(t, xf.Close())

	yf, err := os.Create(yPath)
	require.NoError(t, err)
	writeNPY(t, yf, "<i8", []int{2}, []int64{1, 0})
	require.NoError(t, yf.Close())

	set, err := LoadNPYPair(xPath, yPath)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 12, set.Features())
	assert.Equal(t, []float64{1, 0}, set.Y.RawMatrix().Data)
	assert.InDelta(t, 130.0/255, set.X.At(1, 1), 1e-12)
	assert.Equal(t, DefaultClasses, set.Classes)
	assert.Equal(t, "cat", set.ClassName(1))
	assert.Equal(t, "class 7", set.ClassName(7))
}

func TestLoadNPZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cats.npz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	add := func(name, descr string, shape []int, data any) {
		w, err := zw.Create(name + ".npy")
		require.NoError(t, err)
		writeNPY(t, w, descr, shape, data)
	}
	add("train_x", "|u1", []int{2, 2, 2, 3}, twoImages())
	add("train_y", "<i8", []int{1, 2}, []int64{0, 1})
	add("test_x", "|u1", []int{2, 2, 2, 3}, twoImages())
	add("test_y", "<i8", []int{2}, []int64{1, 2})
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	set, err := LoadNPZ(path, "train")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, [3]int{2, 2, 3}, [3]int{set.Height, set.Width, set.Channels})
	assert.Equal(t, []float64{0, 1}, set.Y.RawMatrix().Data)

	_, err = LoadNPZ(path, "test")
	assert.ErrorIs(t, err, ErrBadLabel)

	_, err = LoadNPZ(path, "valid")
	assert.Error(t, err)
	assert.Equal(t, DefaultClasses, set.Classes)

	t.Run("class names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pets.npz")
		writeNPZ(t, path,
			npzMember{name: "train_x", descr: "|u1", shape: []int{2, 2, 2, 3}, data: twoImages()},
			npzMember{name: "train_y", descr: "<i8", shape: []int{2}, data: []int64{0, 1}},
			npzMember{name: "list_classes", descr: "|S7", shape: []int{2}, data: []byte("dogsxxxbirds\x00\x00")},
		)
		set, err := LoadNPZ(path, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"dogsxxx", "birds"}, set.Classes)
		assert.Equal(t, "birds", set.ClassName(1))
	})

	t.Run("undecodable class names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.npz")
		writeNPZ(t, path,
			npzMember{name: "train_x", descr: "|u1", shape: []int{2, 2, 2, 3}, data: twoImages()},
			npzMember{name: "train_y", descr: "<i8", shape: []int{2}, data: []int64{0, 1}},
			npzMember{name: "list_classes", raw: []byte("not a numpy array")},
		)
		set, err := LoadNPZ(path, "train")
		require.NoError(t, err)
		assert.Equal(t, DefaultClasses, set.Classes)
	})
}

// npzMember is one array of an .npz archive; raw, when set, is written as is.
type npzMember struct {
	name  string
	descr string
	shape []int
	data  any
	raw   []byte
}

func writeNPZ(t *testing.T, path string, members ...npzMember) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name + ".npy")
		require.NoError(t, err)
		if m.raw != nil {
			_, err = w.Write(m.raw)
			require.NoError(t, err)
			continue
		}
		writeNPY(t, w, m.descr, m.shape, m.data)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func imageDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cat"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "non-cat"), 0o755))
	writePNG(t, filepath.Join(dir, "cat", "a.png"), color.RGBA{R: 200, G: 100, B: 50, A: 255})
	writePNG(t, filepath.Join(dir, "cat", "b.png"), color.RGBA{R: 10, G: 20, B: 30, A: 255})
	writePNG(t, filepath.Join(dir, "non-cat", "c.png"), color.RGBA{R: 0, G: 255, B: 0, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat", "notes.txt"), []byte("skip"), 0o644))
	return dir
}

func assertPixel(t *testing.T, want, got []byte) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, float64(want[i]), float64(got[i]), 1, "channel %d", i)
	}
}

func TestLoadImageDir(t *testing.T) {
	set, err := LoadImageDir(imageDir(t), 4)
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 4*4*3, set.Features())
	assert.Equal(t, []float64{0, 1, 1}, set.Y.RawMatrix().Data)
	// Solid colours survive resizing.
	assertPixel(t, []byte{0, 255, 0}, set.Images[0][:3])
	assertPixel(t, []byte{200, 100, 50}, set.Images[1][:3])
	assert.InDelta(t, 1.0, set.X.At(1, 0), 1.0/255)

	_, err = LoadImageDir(t.TempDir(), 4)
	assert.Error(t, err)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.png")
	writePNG(t, path, color.RGBA{R: 255, A: 255})

	X, raw, err := LoadImage(path, 2)
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, [2]int{12, 1}, [2]int{r, c})
	assertPixel(t, []byte{255, 0, 0}, raw[:3])
	assert.InDelta(t, 1.0, X.At(0, 0), 1.0/255)
}

func TestLoadSplits(t *testing.T) {
	dir := imageDir(t)
	train, test, err := LoadSplits(context.Background(),
		Source{Path: dir, Size: 4},
		Source{Path: dir, Size: 4},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 3, test.Len())

	_, _, err = LoadSplits(context.Background(),
		Source{Path: dir, Size: 4},
		Source{Path: dir, Size: 8},
	)
	assert.ErrorIs(t, err, ErrBadShape)

	_, _, err = LoadSplits(context.Background(),
		Source{Path: dir, Size: 4},
		Source{Path: filepath.Join(dir, "missing.npz")},
	)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSynthetic(t *testing.T) {
	a, err := Synthetic(50, 12, 3)
	require.NoError(t, err)
	b, err := Synthetic(50, 12, 3)
	require.NoError(t, err)

	assert.Equal(t, 50, a.Len())
	assert.Equal(t, 12, a.Features())
	assert.Equal(t, a.Images, b.Images)
	assert.Equal(t, a.Y.RawMatrix().Data, b.Y.RawMatrix().Data)
}
