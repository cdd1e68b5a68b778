package smc

import (
	"errors"
	"fmt"

	"smcbot/internal/market"
)

// ErrInsufficientData 窗口长度不足以完成请求的回看计算。
var ErrInsufficientData = errors.New("insufficient bars for requested lookback")

// Pivots 扫描序列并返回已确认的枢轴高点与低点，均按 index 升序。
//
// 候选位 c = i-length 在 bar i 存在后才可确认：high[c] 必须严格高于
// (c, c+length] 窗口内的全部 high 才构成枢轴高点，打平不确认；低点对称。
// 也就是说每个枢轴天然滞后 length 根。同一根 K 线可以同时是高点和低点枢轴。
func Pivots(candles []market.Candle, length int) (highs, lows []Pivot, err error) {
	if length < 1 {
		return nil, nil, fmt.Errorf("pivot length must be >= 1, got %d", length)
	}
	if len(candles) < length+1 {
		return nil, nil, ErrInsufficientData
	}
	for i := length; i < len(candles); i++ {
		c := i - length
		isHigh, isLow := true, true
		for j := c + 1; j <= i; j++ {
			if candles[j].High >= candles[c].High {
				isHigh = false
			}
			if candles[j].Low <= candles[c].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, Pivot{Index: c, Price: candles[c].High, IsHigh: true, Time: candles[c].OpenTime})
		}
		if isLow {
			lows = append(lows, Pivot{Index: c, Price: candles[c].Low, IsHigh: false, Time: candles[c].OpenTime})
		}
	}
	return highs, lows, nil
}
