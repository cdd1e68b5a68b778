package smc

import (
	"smcbot/internal/market"
)

// LocateOrderBlocks 为每个结构突破事件定位其起始蜡烛。
//
// 多头突破取突破位之前最近的摆动低点枢轴，空头取摆动高点；没有可用枢轴
// 时该事件跳过。以 [pivot.Index, 事件.Index] 为一段行情，多头取段内最低
// low 的那根蜡烛（打平取先出现的），空头对称取最高 high。Top/Bottom 即该
// 蜡烛的 High/Low。
func LocateOrderBlocks(candles []market.Candle, events []StructureEvent, swingHighs, swingLows []Pivot) []OrderBlock {
	var out []OrderBlock
	for _, ev := range events {
		pivots := swingLows
		if ev.Direction == TrendBearish {
			pivots = swingHighs
		}
		origin, ok := lastPivotBefore(pivots, ev.Index)
		if !ok {
			continue
		}

		anchor := origin.Index
		if ev.Direction == TrendBullish {
			for j := origin.Index + 1; j <= ev.Index && j < len(candles); j++ {
				if candles[j].Low < candles[anchor].Low {
					anchor = j
				}
			}
		} else {
			for j := origin.Index + 1; j <= ev.Index && j < len(candles); j++ {
				if candles[j].High > candles[anchor].High {
					anchor = j
				}
			}
		}

		out = append(out, OrderBlock{
			Top:         candles[anchor].High,
			Bottom:      candles[anchor].Low,
			Bias:        ev.Direction,
			OriginIndex: anchor,
			Time:        candles[anchor].OpenTime,
		})
	}
	return out
}

// lastPivotBefore 返回 index 严格小于 before 的最后一个枢轴。
func lastPivotBefore(pivots []Pivot, before int) (Pivot, bool) {
	for i := len(pivots) - 1; i >= 0; i-- {
		if pivots[i].Index < before {
			return pivots[i], true
		}
	}
	return Pivot{}, false
}
