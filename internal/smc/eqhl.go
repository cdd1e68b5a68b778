package smc

import (
	"math"

	"smcbot/internal/market"
)

const atrPeriod = 14

// TrueRanges 逐根真实波幅。i=0 没有前收盘，记 0。
func TrueRanges(candles []market.Candle) []float64 {
	tr := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = max(hl, hc, lc)
	}
	return tr
}

// ATR 14 周期尾随简单均值。窗口不足 14 根的位置记 0。
// 与常见的 Wilder 平滑 ATR 不同，这里刻意保持与参考指标一致的滚动均值。
func ATR(candles []market.Candle) []float64 {
	tr := TrueRanges(candles)
	atr := make([]float64, len(tr))
	sum := 0.0
	for i, v := range tr {
		sum += v
		if i >= atrPeriod {
			sum -= tr[i-atrPeriod]
		}
		if i >= atrPeriod-1 {
			atr[i] = sum / atrPeriod
		}
	}
	return atr
}

// DetectEqualHighsLows 检测等高（EQH）与等低（EQL）。
//
// 以 tolerance × ATR[i] 为容差，bar i 的 high 与任一更早的摆动高点枢轴价
// 差距小于容差即记一次 EQH（命中第一个枢轴即停止扫描）；EQL 对称。
// swingHighs/swingLows 必须用 swingLength 回看长度算出。
func DetectEqualHighsLows(candles []market.Candle, swingHighs, swingLows []Pivot, swingLength int, tolerance float64) (eqh, eql []Pivot) {
	atr := ATR(candles)
	for i := swingLength; i < len(candles); i++ {
		threshold := tolerance * atr[i]

		for _, p := range swingHighs {
			if p.Index >= i {
				break
			}
			if math.Abs(candles[i].High-p.Price) < threshold {
				eqh = append(eqh, Pivot{Index: i, Price: candles[i].High, IsHigh: true, Time: candles[i].OpenTime})
				break
			}
		}
		for _, p := range swingLows {
			if p.Index >= i {
				break
			}
			if math.Abs(candles[i].Low-p.Price) < threshold {
				eql = append(eql, Pivot{Index: i, Price: candles[i].Low, IsHigh: false, Time: candles[i].OpenTime})
				break
			}
		}
	}
	return eqh, eql
}
