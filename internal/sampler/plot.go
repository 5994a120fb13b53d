package sampler

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"ganforge/internal/metrics"
)

// PlotHistory draws the named series of h against iteration index and saves
// the chart to path. The format follows the file extension (png, svg, pdf).
func PlotHistory(h *metrics.History, path string, names ...string) error {
	if len(names) == 0 {
		names = []string{metrics.DLoss, metrics.GLoss}
	}
	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Loss"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	drawn := 0
	for i, name := range names {
		values := h.Values(name)
		if len(values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(values))
		for j, v := range values {
			pts[j].X = float64(j)
			pts[j].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "[Plot] series %s", name)
		}
		line.Width = vg.Points(1)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
		drawn++
	}
	if drawn == 0 {
		return errors.New("[Plot] no data to plot")
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "[Plot] save")
	}
	return nil
}
