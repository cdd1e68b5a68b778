package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"smcbot/internal/market"
	"smcbot/internal/smc"
)

// Data 一次报表渲染所需的全部输入。
type Data struct {
	Symbol      string
	Interval    string
	Candles     []market.Candle
	Events      []smc.StructureEvent
	OrderBlocks []smc.OrderBlock
	FVGs        []smc.FVG
	EQH         []smc.Pivot
	EQL         []smc.Pivot
}

// RenderHTML 把 K 线与结构标注渲染为单页 HTML 图表。
func RenderHTML(w io.Writer, d Data) error {
	if len(d.Candles) == 0 {
		return fmt.Errorf("没有可渲染的 K 线")
	}

	x := make([]string, len(d.Candles))
	kd := make([]opts.KlineData, len(d.Candles))
	for i, c := range d.Candles {
		x[i] = c.Time().Format("01-02 15:04")
		// echarts K 线取值顺序: open/close/low/high
		kd[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s %s 市场结构", d.Symbol, d.Interval),
			Subtitle: fmt.Sprintf("%d 根 K 线 / %d 个结构事件", len(d.Candles), len(d.Events)),
		}),
		charts.WithXAxisOpts(opts.XAxis{SplitNumber: 20}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 60, End: 100}),
	)

	seriesOpts := markOptions(d)
	kline.SetXAxis(x).AddSeries("kline", kd, seriesOpts...)

	for _, overlay := range eventOverlays(x, d) {
		kline.Overlap(overlay)
	}
	return kline.Render(w)
}

// markOptions 把订单块 / FVG / 等高等低转成 K 线系列上的标线标注。
func markOptions(d Data) []charts.SeriesOpts {
	var out []charts.SeriesOpts
	for _, b := range d.OrderBlocks {
		name := "OB"
		if b.Bias == smc.TrendBearish {
			name = "OB-"
		}
		out = append(out,
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: name, YAxis: b.Top},
				opts.MarkLineNameYAxisItem{Name: name, YAxis: b.Bottom},
			),
		)
	}
	for _, g := range d.FVGs {
		if g.Mitigated {
			continue
		}
		out = append(out,
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "FVG", YAxis: g.Top},
				opts.MarkLineNameYAxisItem{Name: "FVG", YAxis: g.Bottom},
			),
		)
	}
	for _, p := range d.EQH {
		out = append(out, charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "EQH", YAxis: p.Price},
		))
	}
	for _, p := range d.EQL {
		out = append(out, charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "EQL", YAxis: p.Price},
		))
	}
	return out
}

// eventOverlays 把 BOS/CHoCH 事件画成叠加散点，按类型分系列。
func eventOverlays(x []string, d Data) []*charts.Scatter {
	groups := map[string][]opts.ScatterData{}
	for _, e := range d.Events {
		if e.Index < 0 || e.Index >= len(x) {
			continue
		}
		key := fmt.Sprintf("%s %s", e.Timeframe, e.Kind)
		groups[key] = append(groups[key], opts.ScatterData{
			Name:       e.Direction.String(),
			Value:      []interface{}{x[e.Index], e.Price},
			SymbolSize: 12,
		})
	}

	var out []*charts.Scatter
	for name, points := range groups {
		sc := charts.NewScatter()
		sc.SetXAxis(x).AddSeries(name, points)
		out = append(out, sc)
	}
	return out
}
