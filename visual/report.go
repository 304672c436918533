package visual

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openfluke/catnet/nn"
)

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#6c7a89")
	alert  = lipgloss.Color("#e53935")

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(18)

	valueStyle = lipgloss.NewStyle().Bold(true)

	warnStyle = lipgloss.NewStyle().Foreground(alert)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

// Summary is what a finished training run reports.
type Summary struct {
	ModelID       string
	Dims          nn.Dims
	Iterations    int
	LearningRate  float64
	FinalCost     float64
	BestCost      float64
	TrainAccuracy float64
	TestAccuracy  float64
	HasTest       bool
	Confusion     nn.ConfusionMatrix
	Mislabeled    int
	Elapsed       time.Duration
	Artifacts     []string
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

// Render formats s as a bordered terminal panel.
func Render(s Summary) string {
	lines := []string{
		titleStyle.Render("catnet " + s.ModelID),
		row("layers", fmt.Sprintf("%d -> %d -> %d", s.Dims.Input, s.Dims.Hidden, s.Dims.Output)),
		row("iterations", fmt.Sprintf("%d (lr %g)", s.Iterations, s.LearningRate)),
		row("final cost", fmt.Sprintf("%.6f", s.FinalCost)),
		row("best cost", fmt.Sprintf("%.6f", s.BestCost)),
		row("train accuracy", fmt.Sprintf("%.2f%%", 100*s.TrainAccuracy)),
	}
	if s.HasTest {
		cm := s.Confusion
		lines = append(lines,
			row("test accuracy", fmt.Sprintf("%.2f%%", 100*s.TestAccuracy)),
			row("precision/recall", fmt.Sprintf("%.3f / %.3f", cm.Precision(), cm.Recall())),
			row("confusion", fmt.Sprintf("tp %d  fp %d  tn %d  fn %d",
				cm.TruePositive, cm.FalsePositive, cm.TrueNegative, cm.FalseNegative)),
		)
		if s.Mislabeled > 0 {
			lines = append(lines, warnStyle.Render(fmt.Sprintf("%d test images mislabeled", s.Mislabeled)))
		}
	}
	if s.Elapsed > 0 {
		lines = append(lines, row("elapsed", s.Elapsed.Round(time.Millisecond).String()))
	}
	for _, a := range s.Artifacts {
		lines = append(lines, row("wrote", a))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// Report writes the rendered summary to w.
func Report(w io.Writer, s Summary) error {
	_, err := fmt.Fprintln(w, Render(s))
	return err
}
