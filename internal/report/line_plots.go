package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/fernandezfran/galpynostatic/internal/profile"
)

var (
	dataColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	fitColor  = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}
)

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// ProfilePlot draws potential against SOC with the cut-off as a dashed
// line.
func ProfilePlot(res *profile.Result, vcut float64, title string) ([]byte, error) {
	if res == nil || res.Len() == 0 {
		return nil, fmt.Errorf("no profile to plot")
	}
	pts := make(plotter.XYs, res.Len())
	for i := range pts {
		pts[i] = plotter.XY{X: res.SOC[i], Y: res.Potential[i]}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "SOC"
	p.Y.Label.Text = "Potential (V)"
	p.X.Min, p.X.Max = 0, 1
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile line: %w", err)
	}
	line.Color = dataColor
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("profile", line)

	cut, err := plotter.NewLine(plotter.XYs{{X: 0, Y: vcut}, {X: 1, Y: vcut}})
	if err != nil {
		return nil, fmt.Errorf("failed to create cut-off line: %w", err)
	}
	cut.Color = color.Gray{Y: 128}
	cut.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(cut)
	p.Legend.Add(fmt.Sprintf("cut-off %.3f V", vcut), cut)
	p.Legend.Top = true

	return renderPNG(p, vg.Points(600), vg.Points(400))
}

// ConcentrationPlot draws the concentration snapshot against the
// normalized radius.
func ConcentrationPlot(res *profile.Result, soc float64) ([]byte, error) {
	if res == nil || !res.Snapshot || len(res.Radius) == 0 {
		return nil, fmt.Errorf("profile has no concentration snapshot")
	}
	pts := make(plotter.XYs, len(res.Radius))
	for i := range pts {
		pts[i] = plotter.XY{X: res.Radius[i], Y: res.Concentration[i]}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Concentration at SOC %.2f", soc)
	p.X.Label.Text = "r / R"
	p.Y.Label.Text = "θ"
	p.X.Min, p.X.Max = 0, 1
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create concentration line: %w", err)
	}
	line.Color = dataColor
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)

	return renderPNG(p, vg.Points(600), vg.Points(400))
}

// FitPlot draws measured SOC against C-rate on a log axis, with the model
// predictions as a line. NaN predictions are skipped.
func FitPlot(rates, socs, predRates, pred []float64, title string) ([]byte, error) {
	if len(rates) == 0 || len(rates) != len(socs) || len(predRates) != len(pred) {
		return nil, fmt.Errorf("fit plot: %d rates, %d SOC, %d prediction rates, %d predictions",
			len(rates), len(socs), len(predRates), len(pred))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "C-rate"
	p.Y.Label.Text = "max SOC"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	data := make(plotter.XYs, 0, len(rates))
	for i, r := range rates {
		if r > 0 && !math.IsNaN(socs[i]) {
			data = append(data, plotter.XY{X: r, Y: socs[i]})
		}
	}
	sc, err := plotter.NewScatter(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create data points: %w", err)
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Color = dataColor
	sc.GlyphStyle.Radius = vg.Points(3)
	p.Add(sc)
	p.Legend.Add("experiment", sc)

	model := make(plotter.XYs, 0, len(pred))
	for i, r := range predRates {
		if r > 0 && !math.IsNaN(pred[i]) {
			model = append(model, plotter.XY{X: r, Y: pred[i]})
		}
	}
	if len(model) > 0 {
		line, err := plotter.NewLine(model)
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction line: %w", err)
		}
		line.Color = fitColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("model", line)
	}
	p.Legend.Top = false
	p.Legend.Left = true

	return renderPNG(p, vg.Points(600), vg.Points(400))
}

// LogSpace returns n C-rates evenly spaced in log10 between lo and hi,
// for drawing smooth prediction lines.
func LogSpace(lo, hi float64, n int) []float64 {
	if n < 2 || !(lo > 0) || !(hi > lo) {
		return []float64{lo}
	}
	return floats.LogSpan(make([]float64, n), lo, hi)
}
