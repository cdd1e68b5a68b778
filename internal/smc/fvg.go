package smc

import (
	"math"

	"smcbot/internal/market"
)

// bodyDeltaPct K 线实体相对开盘价的涨跌幅百分比，开盘价为 0 时按 0 处理。
func bodyDeltaPct(c market.Candle) float64 {
	if c.Open == 0 {
		return 0
	}
	return math.Abs((c.Close-c.Open)/c.Open) * 100
}

// DetectFVG 扫描三根 K 线失衡（Fair Value Gap）。
//
// autoThreshold 开启时，先对整个窗口求实体涨跌幅均值并以两倍均值作为门槛，
// 实体过小的失衡被过滤；关闭时门槛为 0，退化为纯粹的三根缺口判定。
// 注意门槛每次调用都会在全窗口上重算，实时调用方应预期 O(n) 的开销。
//
// 多头：low[i] > high[i-2] 且 close[i-1] > high[i-2]，缺口为 [high[i-2], low[i]]；
// 空头对称。两侧判定互相独立。
func DetectFVG(candles []market.Candle, autoThreshold bool) ([]FVG, error) {
	if len(candles) < 3 {
		return nil, ErrInsufficientData
	}

	threshold := 0.0
	if autoThreshold {
		sum := 0.0
		for k := 1; k < len(candles); k++ {
			sum += bodyDeltaPct(candles[k])
		}
		threshold = sum / float64(len(candles)-1) * 2
	}

	var out []FVG
	for i := 2; i < len(candles); i++ {
		curr := candles[i]
		mid := candles[i-1]
		first := candles[i-2]
		delta := bodyDeltaPct(mid)

		if curr.Low > first.High && mid.Close > first.High && delta > threshold {
			out = append(out, FVG{
				Top:    curr.Low,
				Bottom: first.High,
				Bias:   TrendBullish,
				Index:  i,
				Time:   curr.OpenTime,
			})
		}
		if curr.High < first.Low && mid.Close < first.Low && delta > threshold {
			out = append(out, FVG{
				Top:    first.Low,
				Bottom: curr.High,
				Bias:   TrendBearish,
				Index:  i,
				Time:   curr.OpenTime,
			})
		}
	}
	return out, nil
}
