package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/fernandezfran/galpynostatic/internal/diagram"
)

// mapGrid adapts a rectangular map to plotter.GridXYZ: columns are log
// ell, rows are log Xi.
type mapGrid struct {
	ells, xis []float64
	z         [][]float64 // [ell][xi]
}

func (g mapGrid) Dims() (c, r int)   { return len(g.ells), len(g.xis) }
func (g mapGrid) Z(c, r int) float64 { return g.z[c][r] }
func (g mapGrid) X(c int) float64    { return g.ells[c] }
func (g mapGrid) Y(r int) float64    { return g.xis[r] }
func (g mapGrid) Min() float64       { return 0 }
func (g mapGrid) Max() float64       { return 1 }

var nanColor = color.Gray{Y: 200}

// MapHeatmap draws the max SOC over (log ell, log Xi) with a colour bar.
// marks, when not empty, are drawn on top, e.g. the operating points of a
// fitted experiment.
func MapHeatmap(m *diagram.Map, marks plotter.XYs, title string) ([]byte, error) {
	ells, xis, z, err := m.Grid()
	if err != nil {
		return nil, fmt.Errorf("no map to plot: %w", err)
	}
	if len(ells) < 2 || len(xis) < 2 {
		return nil, fmt.Errorf("heatmap needs at least 2 x 2 points, got %d x %d", len(ells), len(xis))
	}

	cmap := moreland.ExtendedBlackBody()
	cmap.SetMin(0)
	cmap.SetMax(1)

	hm := plotter.NewHeatMap(mapGrid{ells: ells, xis: xis, z: z}, cmap.Palette(255))
	hm.Min, hm.Max = 0, 1
	hm.NaN = nanColor

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "log(ℓ)"
	p.Y.Label.Text = "log(Ξ)"
	p.Add(hm)

	if len(marks) > 0 {
		sc, err := plotter.NewScatter(marks)
		if err != nil {
			return nil, fmt.Errorf("failed to create map marks: %w", err)
		}
		sc.GlyphStyle.Shape = draw.RingGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		sc.GlyphStyle.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
		p.Add(sc)
	}

	cb := plot.New()
	cb.Title.Text = "SOC"
	cb.HideX()
	cb.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	const width, height = 600, 480
	img := vgimg.New(vg.Points(width), vg.Points(height))
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -vg.Points(90), 0, 0))
	cb.Draw(draw.Crop(dc, vg.Points(width-80), 0, vg.Points(30), 0))

	buf := new(bytes.Buffer)
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write heatmap to buffer: %w", err)
	}
	return buf.Bytes(), nil
}
