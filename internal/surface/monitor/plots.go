package monitor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/normals.report/internal/surface/export"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot file names written by GeneratePlots.
const (
	ConcentrationPlot = "cluster_concentration.png"
	ProportionPlot    = "cluster_proportion.png"
	LifecyclePlot     = "cluster_lifecycle.png"
)

// GeneratePlots writes PNG time-series plots into outputDir: one line per
// cluster for concentration and proportion, plus reported/born/retired
// counts per frame. Returns the number of plots written.
func (h *History) GeneratePlots(outputDir string) (int, error) {
	if outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if h.Len() == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	pConc := newPlot("Cluster Concentration", "‖resultant sum‖")
	pProp := newPlot("Cluster Proportion", "Proportion")

	for _, id := range h.ClusterIDs() {
		samples := h.Samples(id)
		concPts := make(plotter.XYs, 0, len(samples))
		propPts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			concPts = append(concPts, plotter.XY{X: float64(s.Frame), Y: s.Concentration})
			propPts = append(propPts, plotter.XY{X: float64(s.Frame), Y: s.Proportion})
		}
		label := fmt.Sprintf("cluster %d", id)
		if err := addLine(pConc, concPts, id, label); err != nil {
			return 0, err
		}
		if err := addLine(pProp, propPts, id, label); err != nil {
			return 0, err
		}
	}

	frames := h.Frames()
	reported := make(plotter.XYs, len(frames))
	born := make(plotter.XYs, len(frames))
	retired := make(plotter.XYs, len(frames))
	for i, f := range frames {
		x := float64(f.Frame)
		reported[i] = plotter.XY{X: x, Y: float64(f.Reported)}
		born[i] = plotter.XY{X: x, Y: float64(f.Born)}
		retired[i] = plotter.XY{X: x, Y: float64(f.Retired)}
	}
	pLife := newPlot("Cluster Lifecycle", "Clusters")
	for i, series := range []struct {
		name string
		pts  plotter.XYs
	}{{"reported", reported}, {"born", born}, {"retired", retired}} {
		if err := addLine(pLife, series.pts, int64(i), series.name); err != nil {
			return 0, err
		}
	}

	count := 0
	for _, out := range []struct {
		p    *plot.Plot
		file string
	}{{pConc, ConcentrationPlot}, {pProp, ProportionPlot}, {pLife, LifecyclePlot}} {
		path := filepath.Join(outputDir, out.file)
		if err := out.p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
			return count, fmt.Errorf("save %s: %w", out.file, err)
		}
		count++
	}
	return count, nil
}

func newPlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

// addLine adds pts to p coloured like cluster id in label images.
func addLine(p *plot.Plot, pts plotter.XYs, id int64, label string) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = export.ColorFor(id)
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}
