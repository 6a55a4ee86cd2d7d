// Package chartrender draws a normalized series as a PNG line chart.
package chartrender

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/dalemusser/stratatrack/internal/domain/series"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when the series has no values to draw.
var ErrNoData = errors.New("series has no values")

const (
	DefaultWidth  = 800
	DefaultHeight = 400
	maxDimension  = 2000
)

// Options controls the rendered image.
type Options struct {
	Title  string
	Unit   string
	Width  int
	Height int
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 || w > maxDimension {
		w = DefaultWidth
	}
	if h <= 0 || h > maxDimension {
		h = DefaultHeight
	}
	return w, h
}

var lineColor = drawing.ColorFromHex("1976d2")

// PNG renders s to w. Gap samples are skipped, so the line connects the
// values on either side of a gap.
func PNG(w io.Writer, s []series.Sample, opts Options) error {
	var xs []time.Time
	var ys []float64
	for _, p := range s {
		if p.IsGap() {
			continue
		}
		xs = append(xs, p.Date)
		ys = append(ys, *p.Value)
	}
	if len(xs) == 0 {
		return ErrNoData
	}
	// go-chart needs at least two X values.
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}

	width, height := opts.size()
	ch := chart.Chart{
		Title:      opts.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(series.DateLayout),
		},
		YAxis: chart.YAxis{
			Name:  opts.Unit,
			Range: yRange(ys),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    opts.Title,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
					DotColor:    lineColor,
					DotWidth:    3,
				},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}

// yRange pads the value range so a flat series still has a drawable axis.
func yRange(ys []float64) *chart.ContinuousRange {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.1, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
