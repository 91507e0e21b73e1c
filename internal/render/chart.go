package render

import (
	"fmt"
	"html"
	"io"
	"math"

	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth  = 1024
	chartHeight = 420
)

// emptySVG is written when there is nothing to plot.
const emptySVG = `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><text x="16" y="32" font-family="sans-serif" font-size="14" fill="#888">no data</text></svg>`

// ChartSVG draws the index trend as SVG: x is the period, y the index value,
// one line with markers per city. Labels are escaped here because the SVG
// renderer writes text nodes verbatim.
func ChartSVG(w io.Writer, c *pipeline.Chart) error {
	if c == nil {
		_, err := fmt.Fprintf(w, emptySVG, chartWidth, chartHeight)
		return err
	}
	lo, hi, ok := c.Bounds()
	if !ok {
		_, err := fmt.Fprintf(w, emptySVG, chartWidth, chartHeight)
		return err
	}

	at := c.PeriodIndex()
	series := make([]chart.Series, 0, len(c.Lines))
	for i, l := range c.Lines {
		if len(l.Points) == 0 {
			continue
		}
		xs := make([]float64, 0, len(l.Points))
		ys := make([]float64, 0, len(l.Points))
		for _, p := range l.Points {
			xs = append(xs, float64(at[p.Period]+1))
			ys = append(ys, p.Value)
		}
		// go-chart needs two values per series.
		if len(xs) == 1 {
			xs = append(xs, xs[0])
			ys = append(ys, ys[0])
		}
		col := chart.GetDefaultColor(i)
		series = append(series, chart.ContinuousSeries{
			Name:    html.EscapeString(l.City),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}

	ticks := make([]chart.Tick, 0, len(c.Periods))
	for i, p := range c.Periods {
		ticks = append(ticks, chart.Tick{Value: float64(i + 1), Label: html.EscapeString(p)})
	}
	maxX := float64(len(c.Periods)) + 0.5
	if len(c.Periods) == 1 {
		maxX = 2
		ticks = append(ticks, chart.Tick{Value: 2, Label: ""})
	}

	yMin, yMax := math.Min(0, math.Floor(lo)), math.Max(100, math.Ceil(hi))
	graph := chart.Chart{
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 36}},
		XAxis: chart.XAxis{
			Name:  dataset.ColPeriod,
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: 0.5, Max: maxX},
		},
		YAxis: chart.YAxis{
			Name:  dataset.ColIndex,
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
			Ticks: yTicks(yMin, yMax),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	if err := graph.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("render: chart: %w", err)
	}
	return nil
}

func yTicks(lo, hi float64) []chart.Tick {
	step := 25.0
	if hi-lo > 200 {
		step = math.Ceil((hi-lo)/8/25) * 25
	}
	var ticks []chart.Tick
	for v := math.Ceil(lo/step) * step; v <= hi; v += step {
		ticks = append(ticks, chart.Tick{Value: v, Label: fmt.Sprintf("%g", v)})
	}
	return ticks
}
