package market

import "time"

// Candle 单根 K 线。时间为毫秒时间戳，序列内按 OpenTime 升序排列。
// 序列中最后一根可能尚未收盘（Final=false），行情源会原地覆盖它直到收盘。
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Trades    int64
	Final     bool
}

// Time 返回开盘时间。
func (c Candle) Time() time.Time { return time.UnixMilli(c.OpenTime) }

// CandleEvent 封装了来源于外部行情源的单根 K 线。
type CandleEvent struct {
	Symbol   string
	Interval string
	Candle   Candle
}

// SubscribeOptions 控制实时订阅行为。
type SubscribeOptions struct {
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}

// SourceStats 记录数据源运行期的一些指标。
type SourceStats struct {
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Closes 提取收盘价序列。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs 提取最高价序列。
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows 提取最低价序列。
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Clone 返回序列拷贝，避免调用方与 feed 侧共享底层数组。
func Clone(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out
}
