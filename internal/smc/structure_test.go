package smc

import (
	"math"
	"testing"
)

// bosScenario 在 index 1 形成枢轴高点 12，bar 5 收盘站上后触发多头突破。
// 全部 low 相等，保证不会确认任何枢轴低点。
func bosScenario() [][4]float64 {
	return [][4]float64{
		{9.5, 10, 9, 9.5},
		{10, 12, 9, 11},
		{10.8, 11, 9, 10},
		{10, 10.5, 9, 10},
		{10.2, 11.6, 9, 11.5},
		{11.5, 12.6, 9, 12.5},
	}
}

func TestTrackerBullishBOS(t *testing.T) {
	candles := mkCandles(bosScenario())
	tr := NewTracker(2, 2, false)

	var events []StructureEvent
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		events = append(events, tr.DetectRealtime(candles[:i], TimeframeInternal)...)
	}

	if len(events) != 1 {
		t.Fatalf("want exactly one event, got %+v", events)
	}
	ev := events[0]
	if ev.Kind != KindBOS || ev.Direction != TrendBullish {
		t.Fatalf("want bullish BOS, got %+v", ev)
	}
	if ev.Index != 5 || math.Abs(ev.Price-12) > 1e-9 {
		t.Fatalf("want break at bar 5 of level 12, got %+v", ev)
	}
	st := tr.State()
	if st.InternalTrend != TrendBullish {
		t.Fatalf("trend must flip bullish, got %v", st.InternalTrend)
	}
	if !st.InternalHigh.Crossed {
		t.Fatal("crossed flag must be set after a fired crossing")
	}
}

func TestTrackerNoDuplicateFireOnUnchangedLevel(t *testing.T) {
	base := bosScenario()
	// 突破后价格回落再次站上同一位：级别未被新枢轴替换，不得重复触发。
	base = append(base,
		[4]float64{12.5, 12.55, 9, 11.5},
		[4]float64{11.5, 12.7, 9, 12.6},
	)
	candles := mkCandles(base)
	tr := NewTracker(2, 2, false)

	count := 0
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		count += len(tr.DetectRealtime(candles[:i], TimeframeInternal))
	}
	if count != 1 {
		t.Fatalf("level must fire once until replaced, fired %d times", count)
	}
}

func TestTrackerCHoCHOnTrendReversal(t *testing.T) {
	base := bosScenario()
	// 突破转多后构造枢轴低点（index 7，low=11.0），随后跌破触发 CHoCH。
	base = append(base,
		[4]float64{12.5, 12.55, 11.8, 12.2}, // 6
		[4]float64{12.2, 12.4, 11.0, 11.5},  // 7: 未来的枢轴低点
		[4]float64{11.5, 12.0, 11.2, 11.4},  // 8
		[4]float64{11.4, 12.1, 11.3, 11.6},  // 9: 枢轴低点 7 在此确认
		[4]float64{11.6, 11.7, 10.7, 10.8},  // 10: 收盘跌破 11.0
	)
	candles := mkCandles(base)
	tr := NewTracker(2, 2, false)

	var events []StructureEvent
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		events = append(events, tr.DetectRealtime(candles[:i], TimeframeInternal)...)
	}

	last := events[len(events)-1]
	if last.Kind != KindCHoCH || last.Direction != TrendBearish {
		t.Fatalf("want bearish CHoCH after bullish trend, got %+v", last)
	}
	if last.Index != 10 || math.Abs(last.Price-11.0) > 1e-9 {
		t.Fatalf("want break of level 11.0 at bar 10, got %+v", last)
	}
	if tr.State().InternalTrend != TrendBearish {
		t.Fatal("trend must flip bearish after CHoCH")
	}
}

func TestTrackerLevelIndexMonotonic(t *testing.T) {
	steps := append(repeatSteps(1, 8), append(repeatSteps(-1, 8), append(repeatSteps(1, 8), repeatSteps(-1, 8)...)...)...)
	candles := trendCandles(100, steps)
	tr := NewTracker(3, 3, false)

	prevHigh, prevLow := -1, -1
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		st := tr.State()
		if st.InternalHigh.Valid {
			if st.InternalHigh.Index < prevHigh {
				t.Fatalf("tracked high index regressed: %d -> %d", prevHigh, st.InternalHigh.Index)
			}
			prevHigh = st.InternalHigh.Index
		}
		if st.InternalLow.Valid {
			if st.InternalLow.Index < prevLow {
				t.Fatalf("tracked low index regressed: %d -> %d", prevLow, st.InternalLow.Index)
			}
			prevLow = st.InternalLow.Index
		}
	}
	if prevHigh < 0 || prevLow < 0 {
		t.Fatal("expected both sides to be tracked on a zig-zag series")
	}
}

func TestTrackerCrossedResetsOnReplacement(t *testing.T) {
	steps := append(repeatSteps(1, 6), append(repeatSteps(-1, 6), append(repeatSteps(1, 8), repeatSteps(-1, 4)...)...)...)
	candles := trendCandles(100, steps)
	tr := NewTracker(3, 3, false)

	sawCrossed, sawResetAfterCrossed := false, false
	lastIdx, lastCrossed := -1, false
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		tr.DetectRealtime(candles[:i], TimeframeInternal)
		st := tr.State()
		if !st.InternalHigh.Valid {
			continue
		}
		if st.InternalHigh.Crossed {
			sawCrossed = true
		}
		if lastCrossed && st.InternalHigh.Index > lastIdx && !st.InternalHigh.Crossed {
			sawResetAfterCrossed = true
		}
		lastIdx, lastCrossed = st.InternalHigh.Index, st.InternalHigh.Crossed
	}
	if !sawCrossed {
		t.Fatal("scenario never crossed the tracked high")
	}
	if !sawResetAfterCrossed {
		t.Fatal("replacement by a newer pivot must reset the crossed flag")
	}
}

func TestConfluenceFilterSuppressesButKeepsLevel(t *testing.T) {
	candles := mkCandles([][4]float64{
		{9.5, 10, 9, 9.5},
		{10, 12, 9, 11},
		{10.8, 11, 9, 10},
		{10, 10.5, 9, 10},
		{10.2, 11.6, 9, 11.5},
		// bar 5 收盘穿越 12，但下影远长于上影 → 被过滤。
		{11.4, 12.55, 9, 12.5},
		// bar 6 回落到位下方。
		{12.5, 12.58, 11.8, 11.8},
		// bar 7 再次穿越，影线方向吻合 → 触发。
		{11.9, 12.7, 11.85, 12.6},
	})
	tr := NewTracker(2, 2, true) // 只对 internal 周期做检测

	var events []StructureEvent
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		events = append(events, tr.DetectRealtime(candles[:i], TimeframeInternal)...)
		if i == 6 {
			st := tr.State()
			if len(events) != 0 {
				t.Fatalf("filtered crossing must not emit, got %+v", events)
			}
			if !st.InternalHigh.Valid || st.InternalHigh.Crossed {
				t.Fatalf("filtered crossing must leave the level armed: %+v", st.InternalHigh)
			}
		}
	}

	if len(events) != 1 || events[0].Index != 7 || events[0].Direction != TrendBullish {
		t.Fatalf("want the level to fire on bar 7 once bias matches, got %+v", events)
	}
	if !tr.State().InternalHigh.Crossed {
		t.Fatal("crossed flag must be set once the crossing finally fires")
	}
}

func TestSwingIgnoresConfluenceFilter(t *testing.T) {
	// 同一形态、同一过滤开关下，摆动周期不受影线方向约束。
	candles := mkCandles([][4]float64{
		{9.5, 10, 9, 9.5},
		{10, 12, 9, 11},
		{10.8, 11, 9, 10},
		{10, 10.5, 9, 10},
		{10.2, 11.6, 9, 11.5},
		{11.4, 12.55, 9, 12.5}, // 下影更长的穿越 bar
	})
	tr := NewTracker(2, 2, true)

	var internalEv, swingEv []StructureEvent
	for i := 1; i <= len(candles); i++ {
		tr.Update(candles[:i])
		internalEv = append(internalEv, tr.DetectRealtime(candles[:i], TimeframeInternal)...)
		swingEv = append(swingEv, tr.DetectRealtime(candles[:i], TimeframeSwing)...)
	}
	if len(internalEv) != 0 {
		t.Fatalf("internal crossing should be filtered, got %+v", internalEv)
	}
	if len(swingEv) != 1 || swingEv[0].Timeframe != TimeframeSwing {
		t.Fatalf("swing crossing must fire regardless of candle bias, got %+v", swingEv)
	}
}

func TestTrackerUpdateIgnoresShortWindow(t *testing.T) {
	candles := mkCandles(bosScenario())
	tr := NewTracker(10, 2, false)
	tr.Update(candles) // len=6 < swing 10+1，整体跳过
	st := tr.State()
	if st.InternalHigh.Valid || st.SwingHigh.Valid {
		t.Fatalf("update on a short window must be a no-op, got %+v", st)
	}
}
