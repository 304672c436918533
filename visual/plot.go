// Package visual renders training curves, mislabeled examples and run
// summaries.
package visual

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/openfluke/catnet/dataset"
	"github.com/openfluke/catnet/nn"
)

// ErrNothingToPlot is returned when there are no points or no images.
var ErrNothingToPlot = errors.New("nothing to plot")

// CostCurve saves a line plot of the recorded cost against the iteration
// number. The format follows the file extension (.png, .svg, .pdf).
func CostCurve(path string, costs []nn.CostPoint, learningRate float64) error {
	if len(costs) == 0 {
		return ErrNothingToPlot
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Learning rate = %g", learningRate)
	p.X.Label.Text = "iterations"
	p.Y.Label.Text = "cost"

	pts := make(plotter.XYs, len(costs))
	for i, c := range costs {
		pts[i].X = float64(c.Iteration)
		pts[i].Y = c.Cost
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("cost line: %w", err)
	}
	line.Color = color.RGBA{B: 200, A: 255}
	p.Add(plotter.NewGrid(), line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save cost plot: %w", err)
	}
	return nil
}

// ToImage turns channel-last bytes back into an image. One channel is read
// as grayscale and three as RGB.
func ToImage(raw []byte, height, width, channels int) (image.Image, error) {
	if len(raw) != height*width*channels {
		return nil, fmt.Errorf("%d bytes for %dx%dx%d image", len(raw), height, width, channels)
	}
	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, raw)
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < height*width; i++ {
			img.Pix[i*4] = raw[i*3]
			img.Pix[i*4+1] = raw[i*3+1]
			img.Pix[i*4+2] = raw[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// Caption is the label drawn above a mislabeled example.
func Caption(set *dataset.Set, predicted, actual int) string {
	return fmt.Sprintf("Prediction: %s\nClass: %s", set.ClassName(predicted), set.ClassName(actual))
}

// MislabeledGrid draws the examples at idx in one row, each titled with the
// predicted and true class. At most limit images are drawn (0 means all).
func MislabeledGrid(path string, set *dataset.Set, pred mat.Matrix, idx []int, limit int) error {
	if limit > 0 && len(idx) > limit {
		idx = idx[:limit]
	}
	if len(idx) == 0 {
		return ErrNothingToPlot
	}

	plots := make([]*plot.Plot, len(idx))
	for k, j := range idx {
		if j < 0 || j >= len(set.Images) {
			return fmt.Errorf("example %d out of range", j)
		}
		img, err := ToImage(set.Images[j], set.Height, set.Width, set.Channels)
		if err != nil {
			return fmt.Errorf("example %d: %w", j, err)
		}
		p := plot.New()
		p.HideAxes()
		p.Title.Text = Caption(set, int(pred.At(0, j)), int(set.Y.At(0, j)))
		b := img.Bounds()
		p.Add(plotter.NewImage(img, 0, 0, float64(b.Dx()), float64(b.Dy())))
		plots[k] = p
	}

	const tile = 2 * vg.Inch
	canvas := vgimg.New(tile*vg.Length(len(plots)), tile+vg.Inch/2)
	dc := draw.New(canvas)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(plots),
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
	for k, p := range plots {
		p.Draw(canvases[0][k])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
