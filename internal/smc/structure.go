package smc

import (
	"smcbot/internal/market"
)

// Tracker 维护内部/摆动两套独立的结构状态机。
// 非并发安全：Update 与 DetectRealtime 必须由同一个消费者串行调用。
type Tracker struct {
	swingLength      int
	internalLength   int
	confluenceFilter bool

	state StructureState
}

func NewTracker(swingLength, internalLength int, confluenceFilter bool) *Tracker {
	if swingLength < 1 {
		swingLength = 50
	}
	if internalLength < 1 {
		internalLength = 5
	}
	return &Tracker{
		swingLength:      swingLength,
		internalLength:   internalLength,
		confluenceFilter: confluenceFilter,
	}
}

// State 返回当前状态的拷贝。
func (t *Tracker) State() StructureState { return t.state }

// Reset 清空全部状态，重新开始一个交易会话。
func (t *Tracker) Reset() { t.state = StructureState{} }

// SwingLength 返回摆动结构的回看长度。
func (t *Tracker) SwingLength() int { return t.swingLength }

// Update 用最新确认的枢轴推进两套状态。每次 bar 更新都要调用，
// 与是否检测到穿越无关。跟踪位只会被更新的枢轴替换（index 严格递增），
// 替换的同时复位 Crossed。
func (t *Tracker) Update(candles []market.Candle) {
	if len(candles) < max(t.swingLength, t.internalLength)+1 {
		return
	}

	if highs, lows, err := Pivots(candles, t.internalLength); err == nil {
		if len(highs) > 0 {
			t.state.InternalHigh.replace(highs[len(highs)-1])
		}
		if len(lows) > 0 {
			t.state.InternalLow.replace(lows[len(lows)-1])
		}
	}
	if highs, lows, err := Pivots(candles, t.swingLength); err == nil {
		if len(highs) > 0 {
			t.state.SwingHigh.replace(highs[len(highs)-1])
		}
		if len(lows) > 0 {
			t.state.SwingLow.replace(lows[len(lows)-1])
		}
	}
}

// isBullishBar 上影线长于下影线，视为多头蜡烛。
func isBullishBar(c market.Candle) bool {
	upper := c.High - max(c.Open, c.Close)
	lower := min(c.Open, c.Close) - c.Low
	return upper > lower
}

func isBearishBar(c market.Candle) bool {
	upper := c.High - max(c.Open, c.Close)
	lower := min(c.Open, c.Close) - c.Low
	return upper < lower
}

// DetectRealtime 只看最近两根收盘价，检测指定周期的结构突破，返回 0~2 个事件。
//
// 多头穿越：跟踪高点存在、尚未被穿越、curr > level 且 prev <= level；
// 空头对称。内部周期在开启共振过滤时额外要求触发蜡烛的影线方向与突破
// 方向一致（被过滤掉的穿越不置位 Crossed，该位留给后面方向吻合的 bar）。
// 趋势相反记 CHoCH，否则记 BOS；高低两侧独立判定，同一根 bar 可能同时
// 发出两个方向相反的事件。
func (t *Tracker) DetectRealtime(candles []market.Candle, tf Timeframe) []StructureEvent {
	if len(candles) < 2 {
		return nil
	}
	curr := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	bullishBar, bearishBar := true, true
	if tf == TimeframeInternal && t.confluenceFilter {
		bullishBar = isBullishBar(curr)
		bearishBar = isBearishBar(curr)
	}

	var trend *Trend
	var high, low *LevelState
	switch tf {
	case TimeframeInternal:
		trend = &t.state.InternalTrend
		high = &t.state.InternalHigh
		low = &t.state.InternalLow
	case TimeframeSwing:
		trend = &t.state.SwingTrend
		high = &t.state.SwingHigh
		low = &t.state.SwingLow
	default:
		return nil
	}

	var events []StructureEvent
	barIndex := len(candles) - 1

	if high.Valid && !high.Crossed && curr.Close > high.Price && prev.Close <= high.Price && bullishBar {
		kind := KindBOS
		if *trend == TrendBearish {
			kind = KindCHoCH
		}
		events = append(events, StructureEvent{
			Index:     barIndex,
			Price:     high.Price,
			Kind:      kind,
			Direction: TrendBullish,
			Timeframe: tf,
			Time:      curr.OpenTime,
		})
		*trend = TrendBullish
		high.Crossed = true
	}

	if low.Valid && !low.Crossed && curr.Close < low.Price && prev.Close >= low.Price && bearishBar {
		kind := KindBOS
		if *trend == TrendBullish {
			kind = KindCHoCH
		}
		events = append(events, StructureEvent{
			Index:     barIndex,
			Price:     low.Price,
			Kind:      kind,
			Direction: TrendBearish,
			Timeframe: tf,
			Time:      curr.OpenTime,
		})
		*trend = TrendBearish
		low.Crossed = true
	}

	return events
}

// DetectHistorical 对整段序列做一次批量的摆动结构检测。
// 与增量路径语义等价（回放等价性由测试约束），供离线报表使用，
// 也是增量实现的对照基准。不读写 Tracker 状态。
func (t *Tracker) DetectHistorical(candles []market.Candle) ([]StructureEvent, error) {
	highs, lows, err := Pivots(candles, t.swingLength)
	if err != nil {
		return nil, err
	}

	isHigh := make([]bool, len(candles))
	isLow := make([]bool, len(candles))
	for _, p := range highs {
		isHigh[p.Index] = true
	}
	for _, p := range lows {
		isLow[p.Index] = true
	}

	var events []StructureEvent
	trend := TrendNeutral
	var lastHigh, lastLow LevelState

	for i := t.swingLength; i < len(candles); i++ {
		p := i - t.swingLength
		if isHigh[p] {
			lastHigh = LevelState{Price: candles[p].High, Index: p, Valid: true}
		} else if isLow[p] {
			lastLow = LevelState{Price: candles[p].Low, Index: p, Valid: true}
		}

		curr := candles[i].Close
		prev := candles[i-1].Close

		if lastHigh.Valid && curr > lastHigh.Price && prev <= lastHigh.Price {
			kind := KindBOS
			if trend == TrendBearish {
				kind = KindCHoCH
			}
			events = append(events, StructureEvent{
				Index:     i,
				Price:     lastHigh.Price,
				Kind:      kind,
				Direction: TrendBullish,
				Timeframe: TimeframeSwing,
				Time:      candles[i].OpenTime,
			})
			trend = TrendBullish
			lastHigh = LevelState{}
		}

		if lastLow.Valid && curr < lastLow.Price && prev >= lastLow.Price {
			kind := KindBOS
			if trend == TrendBullish {
				kind = KindCHoCH
			}
			events = append(events, StructureEvent{
				Index:     i,
				Price:     lastLow.Price,
				Kind:      kind,
				Direction: TrendBearish,
				Timeframe: TimeframeSwing,
				Time:      candles[i].OpenTime,
			})
			trend = TrendBearish
			lastLow = LevelState{}
		}
	}
	return events, nil
}
