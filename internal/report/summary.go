package report

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/markcheno/go-talib"

	"smcbot/internal/market"
)

// IndicatorContext 报表附带的常规指标快照，提供结构信号之外的行情语境。
type IndicatorContext struct {
	EMA20  float64 `json:"ema20"`
	EMA50  float64 `json:"ema50"`
	RSI14  float64 `json:"rsi14"`
	ATR14  float64 `json:"atr14"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Indicators 基于完整序列计算末根指标值。数据不足时对应字段为 0。
func Indicators(candles []market.Candle) IndicatorContext {
	if len(candles) == 0 {
		return IndicatorContext{}
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	last := len(candles) - 1

	ctx := IndicatorContext{
		Close:  candles[last].Close,
		Volume: candles[last].Volume,
	}
	if len(closes) > 20 {
		ctx.EMA20 = talib.Ema(closes, 20)[last]
	}
	if len(closes) > 50 {
		ctx.EMA50 = talib.Ema(closes, 50)[last]
	}
	if len(closes) > 14 {
		ctx.RSI14 = talib.Rsi(closes, 14)[last]
		ctx.ATR14 = talib.Atr(highs, lows, closes, 14)[last]
	}
	return ctx
}

// Summary 渲染控制台文本摘要：结构事件表 + 活跃订单块/FVG 表 + 指标快照。
func Summary(d Data) string {
	events := table.NewWriter()
	events.SetStyle(table.StyleLight)
	events.SetTitle(fmt.Sprintf("%s %s 结构事件", d.Symbol, d.Interval))
	events.AppendHeader(table.Row{"Bar", "周期", "类型", "方向", "价格", "时间"})
	for _, e := range d.Events {
		events.AppendRow(table.Row{
			e.Index, e.Timeframe.String(), string(e.Kind), e.Direction.String(),
			fmt.Sprintf("%.6f", e.Price),
			time.UnixMilli(e.Time).Format("2006-01-02 15:04"),
		})
	}

	zones := table.NewWriter()
	zones.SetStyle(table.StyleLight)
	zones.SetTitle("活跃区域")
	zones.AppendHeader(table.Row{"类型", "方向", "上沿", "下沿", "Bar"})
	for _, b := range d.OrderBlocks {
		if b.MitigationIndex != nil {
			continue
		}
		zones.AppendRow(table.Row{"OB", b.Bias.String(),
			fmt.Sprintf("%.6f", b.Top), fmt.Sprintf("%.6f", b.Bottom), b.OriginIndex})
	}
	for _, g := range d.FVGs {
		if g.Mitigated {
			continue
		}
		zones.AppendRow(table.Row{"FVG", g.Bias.String(),
			fmt.Sprintf("%.6f", g.Top), fmt.Sprintf("%.6f", g.Bottom), g.Index})
	}
	for _, p := range d.EQH {
		zones.AppendRow(table.Row{"EQH", "-", fmt.Sprintf("%.6f", p.Price), "-", p.Index})
	}
	for _, p := range d.EQL {
		zones.AppendRow(table.Row{"EQL", "-", "-", fmt.Sprintf("%.6f", p.Price), p.Index})
	}

	ind := Indicators(d.Candles)
	ctx := table.NewWriter()
	ctx.SetStyle(table.StyleLight)
	ctx.SetTitle("指标快照")
	ctx.AppendHeader(table.Row{"Close", "EMA20", "EMA50", "RSI14", "ATR14"})
	ctx.AppendRow(table.Row{
		fmt.Sprintf("%.6f", ind.Close),
		fmt.Sprintf("%.6f", ind.EMA20),
		fmt.Sprintf("%.6f", ind.EMA50),
		fmt.Sprintf("%.2f", ind.RSI14),
		fmt.Sprintf("%.6f", ind.ATR14),
	})

	return events.Render() + "\n" + zones.Render() + "\n" + ctx.Render() + "\n"
}
