// Package chart renders the per-domain accuracy bar chart embedded in the
// multiple-choice results mail.
package chart

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
)

// AccuracyPNG writes a PNG bar chart of per-domain accuracy. Labels and
// values are parallel slices; values are ratios in [0, 1] shown as percent.
func AccuracyPNG(w io.Writer, title string, labels []string, values []float64) error {
	if len(labels) == 0 || len(labels) != len(values) {
		return fmt.Errorf("labels/values mismatch: %d vs %d", len(labels), len(values))
	}

	bars := make([]chart.Value, len(labels))
	for i, label := range labels {
		bars[i] = chart.Value{Label: label, Value: values[i]}
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      640,
		Height:     400,
		BarWidth:   60,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			Name:           "정답률",
			Range:          &chart.ContinuousRange{Min: 0, Max: 1},
			ValueFormatter: chart.PercentValueFormatter,
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}
