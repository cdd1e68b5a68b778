package smc

// Trend 市场趋势方向。数值与参考指标保持一致：多头 1、空头 -1、未定 0。
type Trend int

const (
	TrendNeutral Trend = 0
	TrendBullish Trend = 1
	TrendBearish Trend = -1
)

func (t Trend) String() string {
	switch t {
	case TrendBullish:
		return "bullish"
	case TrendBearish:
		return "bearish"
	case TrendNeutral:
		return "neutral"
	}
	return "unknown"
}

// StructureKind 结构突破的类别：顺势 BOS，逆势 CHoCH。
type StructureKind string

const (
	KindBOS   StructureKind = "BOS"
	KindCHoCH StructureKind = "CHoCH"
)

// Timeframe 区分内部结构（短周期）与摆动结构（长周期）两套独立状态机。
type Timeframe int

const (
	TimeframeInternal Timeframe = iota
	TimeframeSwing
)

func (tf Timeframe) String() string {
	if tf == TimeframeSwing {
		return "swing"
	}
	return "internal"
}

// Pivot 经过确认的局部极值。滞后 length 根才可知，确认后不再改写。
type Pivot struct {
	Index   int     `json:"index"`
	Price   float64 `json:"price"`
	IsHigh  bool    `json:"is_high"`
	Time    int64   `json:"time"`
	Crossed bool    `json:"crossed,omitempty"`
}

// StructureEvent 一次结构突破。Price 为被突破的枢轴位，产生后不可变。
type StructureEvent struct {
	Index     int           `json:"index"`
	Price     float64       `json:"price"`
	Kind      StructureKind `json:"kind"`
	Direction Trend         `json:"direction"`
	Timeframe Timeframe     `json:"timeframe"`
	Time      int64         `json:"time"`
}

// OrderBlock 结构突破前一段行情的起始蜡烛区间。
type OrderBlock struct {
	Top             float64 `json:"top"`
	Bottom          float64 `json:"bottom"`
	Bias            Trend   `json:"bias"`
	OriginIndex     int     `json:"origin_index"`
	Time            int64   `json:"time"`
	MitigationIndex *int    `json:"mitigation_index,omitempty"`
}

// FVG 三根 K 线形成的价格失衡区间。
type FVG struct {
	Top       float64 `json:"top"`
	Bottom    float64 `json:"bottom"`
	Bias      Trend   `json:"bias"`
	Index     int     `json:"index"`
	Time      int64   `json:"time"`
	Mitigated bool    `json:"mitigated,omitempty"`
}

// LevelState 某一侧当前跟踪的枢轴位。
// Valid=false 表示该侧尚未出现任何确认枢轴；Crossed 在首次被价格穿越时置位，
// 直到被更新的枢轴替换才复位。
type LevelState struct {
	Price   float64 `json:"price"`
	Index   int     `json:"index"`
	Crossed bool    `json:"crossed"`
	Valid   bool    `json:"valid"`
}

// replace 用更新的枢轴替换当前位并复位穿越标记。
// 只允许向更大的 index 推进，旧枢轴不会覆盖新枢轴。
func (l *LevelState) replace(p Pivot) bool {
	if l.Valid && p.Index <= l.Index {
		return false
	}
	l.Price = p.Price
	l.Index = p.Index
	l.Crossed = false
	l.Valid = true
	return true
}

// StructureState 两套状态机共享的可变状态，归属唯一的引擎实例，外层负责串行访问。
type StructureState struct {
	InternalTrend Trend      `json:"internal_trend"`
	SwingTrend    Trend      `json:"swing_trend"`
	InternalHigh  LevelState `json:"internal_high"`
	InternalLow   LevelState `json:"internal_low"`
	SwingHigh     LevelState `json:"swing_high"`
	SwingLow      LevelState `json:"swing_low"`
}
