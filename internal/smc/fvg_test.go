package smc

import (
	"errors"
	"math"
	"testing"
)

func TestDetectFVGRequiresThreeBars(t *testing.T) {
	candles := mkCandles([][4]float64{{1, 2, 0.5, 1.5}, {1.5, 2.5, 1, 2}})
	if _, err := DetectFVG(candles, false); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
}

func TestDetectFVGBullishGap(t *testing.T) {
	// bar0 high=10.5，bar1 收盘 12 站上，bar2 low=11 留下缺口 [10.5, 11]。
	candles := mkCandles([][4]float64{
		{10, 10.5, 9.8, 10.2},
		{10.6, 12.2, 10.5, 12.0},
		{12.0, 12.8, 11.0, 12.5},
	})
	got, err := DetectFVG(candles, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want one bullish FVG, got %+v", got)
	}
	fvg := got[0]
	if fvg.Bias != TrendBullish || fvg.Index != 2 {
		t.Fatalf("unexpected FVG: %+v", fvg)
	}
	if math.Abs(fvg.Top-11.0) > 1e-9 || math.Abs(fvg.Bottom-10.5) > 1e-9 {
		t.Fatalf("gap must be [high[i-2], low[i]], got %+v", fvg)
	}
}

func TestDetectFVGBearishGap(t *testing.T) {
	candles := mkCandles([][4]float64{
		{12, 12.5, 11.8, 12.2},
		{11.6, 11.7, 10.0, 10.2},
		{10.1, 10.9, 9.5, 9.8},
	})
	got, err := DetectFVG(candles, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Bias != TrendBearish {
		t.Fatalf("want one bearish FVG, got %+v", got)
	}
	if math.Abs(got[0].Top-11.8) > 1e-9 || math.Abs(got[0].Bottom-10.9) > 1e-9 {
		t.Fatalf("gap must be [high[i], low[i-2]], got %+v", got[0])
	}
}

func TestDetectFVGAutoThresholdFiltersSmallBodies(t *testing.T) {
	// 缺口成立但中间 bar 实体很小；窗口里掺入大实体抬高均值门槛后应被滤掉。
	candles := mkCandles([][4]float64{
		{100, 200, 90, 190},  // 大实体，推高均值
		{190, 260, 180, 250}, // 大实体
		{250, 251, 249, 250.5},
		{250.6, 252.0, 250.52, 251.5}, // 实体 ≈0.36%
		{252.1, 253, 252.05, 252.6},   // low > high[i-2]=252 → 形态成立
	})
	strict, err := DetectFVG(candles, false)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range strict {
		if f.Index == 4 && f.Bias == TrendBullish {
			found = true
		}
	}
	if !found {
		t.Fatalf("threshold 0 must keep the raw 3-bar gap, got %+v", strict)
	}

	auto, err := DetectFVG(candles, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range auto {
		if f.Index == 4 {
			t.Fatalf("auto threshold must filter the small-body gap, got %+v", auto)
		}
	}
}

func TestDetectFVGZeroOpenIsDefined(t *testing.T) {
	candles := mkCandles([][4]float64{
		{1, 1.5, 0.9, 1.2},
		{0, 2.2, 0, 2.0}, // open=0：实体涨幅按 0 处理，不 panic
		{2.1, 2.5, 1.9, 2.3},
	})
	got, err := DetectFVG(candles, false)
	if err != nil {
		t.Fatal(err)
	}
	// bodyDelta=0 不大于门槛 0 → 即便缺口成立也不计。
	if len(got) != 0 {
		t.Fatalf("zero-open body delta is 0 and must not pass a 0 threshold, got %+v", got)
	}
}
