package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sartorproj/stockarima/arima"
	"github.com/sartorproj/stockarima/timeseries"
)

// Default image size.
const (
	Width  = 10 * vg.Inch
	Height = 4 * vg.Inch
)

var (
	seriesColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	forecastColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	bandColor     = color.RGBA{R: 31, G: 119, B: 180, A: 48}
	intervalColor = color.RGBA{R: 255, G: 127, B: 14, A: 64}
)

var errEmpty = errors.New("nothing to plot")

// Line plots a dated series against time.
func Line(title, ylabel string, s *timeseries.Series) (*plot.Plot, error) {
	xys := timeXYs(s)
	if len(xys) == 0 {
		return nil, errEmpty
	}

	p := newPlot(title, ylabel)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = seriesColor
	line.LineStyle.Width = vg.Points(1.2)
	p.Add(line)
	return p, nil
}

// Correlogram draws ACF or PACF values as stems from lag 0 with a shaded
// confidence band of ±bounds[k] from lag 1 on.
func Correlogram(title string, values, bounds []float64) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, errEmpty
	}

	p := newPlot(title, "correlation")
	p.X.Label.Text = "lag"
	p.Y.Min, p.Y.Max = -1.05, 1.05

	if len(bounds) == len(values) && len(values) > 1 {
		band := make(plotter.XYs, 0, 2*(len(values)-1))
		for k := 1; k < len(values); k++ {
			band = append(band, plotter.XY{X: float64(k), Y: bounds[k]})
		}
		for k := len(values) - 1; k >= 1; k-- {
			band = append(band, plotter.XY{X: float64(k), Y: -bounds[k]})
		}
		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return nil, err
		}
		poly.Color = bandColor
		poly.LineStyle.Width = 0
		p.Add(poly)
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: float64(len(values) - 1), Y: 0}})
	if err != nil {
		return nil, err
	}
	zero.LineStyle.Color = color.Gray{Y: 128}
	p.Add(zero)

	points := make(plotter.XYs, len(values))
	for k, v := range values {
		points[k] = plotter.XY{X: float64(k), Y: v}
		stem, err := plotter.NewLine(plotter.XYs{{X: float64(k), Y: 0}, {X: float64(k), Y: v}})
		if err != nil {
			return nil, err
		}
		stem.LineStyle.Color = seriesColor
		p.Add(stem)
	}
	marks, err := plotter.NewScatter(points)
	if err != nil {
		return nil, err
	}
	marks.GlyphStyle.Color = seriesColor
	marks.GlyphStyle.Shape = draw.CircleGlyph{}
	marks.GlyphStyle.Radius = vg.Points(2.5)
	p.Add(marks)

	return p, nil
}

// Forecast plots the last history points followed by the forecast mean and
// its interval. history <= 0 plots the whole series.
func Forecast(title string, s *timeseries.Series, fc *arima.Forecast, history int) (*plot.Plot, error) {
	if fc == nil || len(fc.Timestamps) != len(fc.Mean) || len(fc.Mean) == 0 {
		return nil, errors.New("forecast needs timestamps")
	}
	if history > 0 && s.Len() > history {
		s = s.Tail(history)
	}
	hist := timeXYs(s)
	if len(hist) == 0 {
		return nil, errEmpty
	}

	p := newPlot(title, s.Name)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	last := hist[len(hist)-1]
	mean := plotter.XYs{last}
	band := plotter.XYs{last}
	for i, ts := range fc.Timestamps {
		x := float64(ts.Unix())
		mean = append(mean, plotter.XY{X: x, Y: fc.Mean[i]})
		if finite(fc.Upper[i]) {
			band = append(band, plotter.XY{X: x, Y: fc.Upper[i]})
		}
	}
	for i := len(fc.Timestamps) - 1; i >= 0; i-- {
		if finite(fc.Lower[i]) {
			band = append(band, plotter.XY{X: float64(fc.Timestamps[i].Unix()), Y: fc.Lower[i]})
		}
	}

	if len(band) >= 3 {
		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return nil, err
		}
		poly.Color = intervalColor
		poly.LineStyle.Width = 0
		p.Add(poly)
		p.Legend.Add(fmt.Sprintf("%.0f%% interval", 100*(1-fc.Alpha)), poly)
	}

	hl, err := plotter.NewLine(hist)
	if err != nil {
		return nil, err
	}
	hl.LineStyle.Color = seriesColor
	hl.LineStyle.Width = vg.Points(1.2)

	fl, err := plotter.NewLine(mean)
	if err != nil {
		return nil, err
	}
	fl.LineStyle.Color = forecastColor
	fl.LineStyle.Width = vg.Points(1.5)
	fl.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(hl, fl)
	p.Legend.Add("observed", hl)
	p.Legend.Add("forecast", fl)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// PNG renders p at the default size.
func PNG(p *plot.Plot) ([]byte, error) {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newPlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

// timeXYs returns (unix seconds, value) pairs, skipping non-finite values.
func timeXYs(s *timeseries.Series) plotter.XYs {
	if s == nil || !s.HasTimestamps() {
		return nil
	}
	xys := make(plotter.XYs, 0, s.Len())
	for i, v := range s.Values {
		if !finite(v) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(s.Timestamps[i].Unix()), Y: v})
	}
	return xys
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
