package monitor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/normals.report/internal/surface/export"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderDashboard writes a self-contained HTML page with the proportion and
// concentration series of every cluster, per-frame lifecycle counts and
// the latest mean directions.
func (h *History) RenderDashboard(w io.Writer) error {
	frames := h.Frames()
	ids := h.ClusterIDs()

	xAxis := make([]string, len(frames))
	index := make(map[uint64]int, len(frames))
	for i, f := range frames {
		xAxis[i] = strconv.FormatUint(f.Frame, 10)
		index[f.Frame] = i
	}

	prop := newLineChart("Cluster Proportion", "proportion")
	conc := newLineChart("Cluster Concentration", "‖resultant sum‖")
	prop.SetXAxis(xAxis)
	conc.SetXAxis(xAxis)

	for _, id := range ids {
		// Frames where the cluster was not reported stay null so the line
		// breaks instead of dropping to zero.
		propData := make([]opts.LineData, len(frames))
		concData := make([]opts.LineData, len(frames))
		for _, s := range h.Samples(id) {
			i, ok := index[s.Frame]
			if !ok {
				continue
			}
			propData[i] = opts.LineData{Value: s.Proportion}
			concData[i] = opts.LineData{Value: s.Concentration}
		}
		name := fmt.Sprintf("cluster %d", id)
		style := charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(id)})
		prop.AddSeries(name, propData, style)
		conc.AddSeries(name, concData, style)
	}

	life := charts.NewBar()
	life.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cluster dashboard", Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cluster Lifecycle", Subtitle: fmt.Sprintf("frames=%d", len(frames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	reported := make([]opts.BarData, len(frames))
	born := make([]opts.BarData, len(frames))
	retired := make([]opts.BarData, len(frames))
	for i, f := range frames {
		reported[i] = opts.BarData{Value: f.Reported}
		born[i] = opts.BarData{Value: f.Born}
		retired[i] = opts.BarData{Value: f.Retired}
	}
	life.SetXAxis(xAxis).
		AddSeries("reported", reported).
		AddSeries("born", born).
		AddSeries("retired", retired)

	dirs := charts.NewScatter()
	dirs.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "480px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Latest Mean Directions", Subtitle: "x/y components; z toward the camera is negative"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: 1, Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1, Name: "y"}),
	)
	for _, id := range ids {
		samples := h.Samples(id)
		if len(samples) == 0 {
			continue
		}
		last := samples[len(samples)-1]
		pt := []opts.ScatterData{{Value: []interface{}{last.MeanDirection.X, last.MeanDirection.Y, last.MeanDirection.Z}}}
		dirs.AddSeries(fmt.Sprintf("cluster %d", id), pt,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(id)}))
	}

	page := components.NewPage()
	page.PageTitle = "Cluster dashboard"
	page.AddCharts(prop, conc, life, dirs)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func newLineChart(title, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	return line
}

func hexColor(id int64) string {
	c := export.ColorFor(id)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
