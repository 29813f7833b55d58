package visualize

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"loostaar/domain/core"
	"loostaar/domain/genotype"
	"loostaar/domain/loo"
	"loostaar/internal/errors"
)

// LabelThreshold is the |ΔLog10P| above which a point carries its variant ID
const LabelThreshold = 0.1

var (
	driverColor  = color.RGBA{R: 228, G: 26, B: 28, A: 255}
	diluterColor = color.RGBA{R: 55, G: 126, B: 184, A: 255}
	zeroColor    = color.Gray{Y: 160}
)

// Options are the recognised chart settings. Nil bounds are fitted to the data.
type Options struct {
	Title string
	YMin  *float64
	YMax  *float64
}

// Point is one plotted variant
type Point struct {
	VariantID core.VariantID
	Position  float64
	Delta     float64
	Role      loo.Role
	Labeled   bool
}

// Points joins rows with positions. Every row needs a position, including
// rows whose delta is missing; those rows are then left off the chart.
func Points(rows []loo.Row, positions genotype.Positions) ([]Point, error) {
	ids := make([]core.VariantID, len(rows))
	for i, r := range rows {
		ids[i] = r.VariantID
	}
	if missing := positions.Missing(ids); len(missing) > 0 {
		cause := core.NewMissingPositionError(missing[0])
		if len(missing) > 1 {
			cause = fmt.Errorf("%w (and %d more)", cause, len(missing)-1)
		}
		return nil, errors.MissingPositionError(cause)
	}

	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		if r.DeltaLog10P == nil {
			continue
		}
		d := *r.DeltaLog10P
		points = append(points, Point{
			VariantID: r.VariantID,
			Position:  positions[r.VariantID],
			Delta:     d,
			Role:      r.Role(),
			Labeled:   math.Abs(d) > LabelThreshold,
		})
	}
	return points, nil
}

// NewPlot builds the influence scatter: position against ΔLog10P, coloured
// by role, with a dashed zero line and labels on influential variants.
func NewPlot(rows []loo.Row, positions genotype.Positions, opts Options) (*plot.Plot, error) {
	points, err := Points(rows, positions)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = "Leave-one-out influence"
	}
	p.X.Label.Text = "Position"
	p.Y.Label.Text = "ΔLog10P"
	p.Legend.Top = true

	var drivers, diluters, labeled plotter.XYs
	var names []string
	for _, pt := range points {
		xy := plotter.XY{X: pt.Position, Y: pt.Delta}
		if pt.Role == loo.RoleDriver {
			drivers = append(drivers, xy)
		} else {
			diluters = append(diluters, xy)
		}
		if pt.Labeled {
			labeled = append(labeled, xy)
			names = append(names, pt.VariantID.String())
		}
	}

	if len(points) > 0 {
		zero := plotter.NewFunction(func(float64) float64 { return 0 })
		zero.Color = zeroColor
		zero.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(zero)
	}

	for _, series := range []struct {
		name string
		xys  plotter.XYs
		c    color.Color
	}{
		{"driver", drivers, driverColor},
		{"diluter", diluters, diluterColor},
	} {
		if len(series.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(series.xys)
		if err != nil {
			return nil, fmt.Errorf("scatter %s: %w", series.name, err)
		}
		s.GlyphStyle.Color = series.c
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(series.name, s)
	}

	if len(labeled) > 0 {
		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: labeled, Labels: names})
		if err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		for i := range labels.TextStyle {
			labels.TextStyle[i].XAlign = text.XCenter
			labels.TextStyle[i].YAlign = text.YBottom
		}
		labels.Offset = vg.Point{Y: vg.Points(4)}
		p.Add(labels)
	}

	// ranges are widened by Add, so fixed bounds go last
	if opts.YMin != nil {
		p.Y.Min = *opts.YMin
	}
	if opts.YMax != nil {
		p.Y.Max = *opts.YMax
	}
	return p, nil
}

// Render writes the chart in format ("svg", "png" or "pdf")
func Render(w io.Writer, format string, rows []loo.Row, positions genotype.Positions, opts Options) error {
	p, err := NewPlot(rows, positions, opts)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}
