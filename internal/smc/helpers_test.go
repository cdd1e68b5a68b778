package smc

import (
	"smcbot/internal/market"
)

// mkCandles 按 [open, high, low, close] 构造测试序列，1 分钟间隔。
func mkCandles(ohlc [][4]float64) []market.Candle {
	out := make([]market.Candle, len(ohlc))
	for i, v := range ohlc {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      v[0],
			High:      v[1],
			Low:       v[2],
			Close:     v[3],
			Final:     true,
		}
	}
	return out
}

// trendCandles 从 start 出发按 steps 逐根推进收盘价。
// 只在推进方向留 0.1 影线，保证峰谷处的极值严格（打平确认不了枢轴）。
func trendCandles(start float64, steps []float64) []market.Candle {
	out := make([]market.Candle, 0, len(steps))
	prev := start
	for i, step := range steps {
		open := prev
		close := open + step
		high := max(open, close)
		low := min(open, close)
		if step > 0 {
			high += 0.1
		} else if step < 0 {
			low -= 0.1
		}
		out = append(out, market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Final:     true,
		})
		prev = close
	}
	return out
}

// repeatSteps 生成 n 个相同步长。
func repeatSteps(step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = step
	}
	return out
}

// feed 逐根前缀喂给引擎，模拟实时逐 bar 驱动。
func feed(e *Engine, candles []market.Candle) []StructureEvent {
	var events []StructureEvent
	for i := 1; i <= len(candles); i++ {
		events = append(events, e.OnBar(candles[:i])...)
	}
	return events
}
