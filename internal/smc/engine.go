package smc

import (
	"smcbot/internal/market"
)

// Config 引擎参数。零值字段在 NewEngine 里回填默认值。
type Config struct {
	SwingLength      int     `json:"swing_length" toml:"swing_length"`
	InternalLength   int     `json:"internal_length" toml:"internal_length"`
	ConfluenceFilter bool    `json:"confluence_filter" toml:"confluence_filter"`
	FVGAutoThreshold bool    `json:"fvg_auto_threshold" toml:"fvg_auto_threshold"`
	EqualTolerance   float64 `json:"equal_tolerance" toml:"equal_tolerance"`
}

func (c Config) withDefaults() Config {
	out := c
	if out.SwingLength < 1 {
		out.SwingLength = 50
	}
	if out.InternalLength < 1 {
		out.InternalLength = 5
	}
	if out.EqualTolerance <= 0 {
		out.EqualTolerance = 0.1
	}
	return out
}

// Engine 把枢轴检测、结构状态机和各派生检测器拼成对外的统一入口。
// 每次 bar 更新（新收盘或盘中增量）串行调用一次 OnBar；实例不可并发复用。
type Engine struct {
	cfg     Config
	tracker *Tracker
	events  []StructureEvent
}

func NewEngine(cfg Config) *Engine {
	final := cfg.withDefaults()
	return &Engine{
		cfg:     final,
		tracker: NewTracker(final.SwingLength, final.InternalLength, final.ConfluenceFilter),
	}
}

// Config 返回生效后的参数。
func (e *Engine) Config() Config { return e.cfg }

// State 返回结构状态拷贝。
func (e *Engine) State() StructureState { return e.tracker.State() }

// Reset 清空状态与事件日志，用于重新初始化一个会话。
func (e *Engine) Reset() {
	e.tracker.Reset()
	e.events = nil
}

// OnBar 处理一次 bar 更新：先推进枢轴跟踪，再对两个周期独立做实时突破
// 检测。返回本次新产生的事件（可能为空）；全部事件追加进引擎的事件日志。
// 同一根 bar 的盘中重复调用不会重复触发已穿越的位（Crossed 栅栏保证）。
func (e *Engine) OnBar(candles []market.Candle) []StructureEvent {
	e.tracker.Update(candles)

	events := e.tracker.DetectRealtime(candles, TimeframeInternal)
	events = append(events, e.tracker.DetectRealtime(candles, TimeframeSwing)...)
	if len(events) > 0 {
		e.events = append(e.events, events...)
	}
	return events
}

// Replay 从头回放一段历史，逐根喂给 OnBar，返回产生的全部事件。
// 用于暖启动：回放 1..N 之后继续喂 N+1 与直接回放 1..N+1 状态一致。
func (e *Engine) Replay(candles []market.Candle) []StructureEvent {
	e.Reset()
	for i := 1; i <= len(candles); i++ {
		e.OnBar(candles[:i])
	}
	return e.Events()
}

// Events 返回事件日志拷贝。
func (e *Engine) Events() []StructureEvent {
	out := make([]StructureEvent, len(e.events))
	copy(out, e.events)
	return out
}

// SwingPivots 以当前摆动长度重算全部枢轴。
func (e *Engine) SwingPivots(candles []market.Candle) (highs, lows []Pivot, err error) {
	return Pivots(candles, e.cfg.SwingLength)
}

// OrderBlocks 基于事件日志与摆动枢轴定位订单块。
func (e *Engine) OrderBlocks(candles []market.Candle) ([]OrderBlock, error) {
	highs, lows, err := e.SwingPivots(candles)
	if err != nil {
		return nil, err
	}
	return LocateOrderBlocks(candles, e.events, highs, lows), nil
}

// FVGs 扫描当前窗口内的失衡区间。
func (e *Engine) FVGs(candles []market.Candle) ([]FVG, error) {
	return DetectFVG(candles, e.cfg.FVGAutoThreshold)
}

// EqualHighsLows 检测等高等低。
func (e *Engine) EqualHighsLows(candles []market.Candle) (eqh, eql []Pivot, err error) {
	highs, lows, err := e.SwingPivots(candles)
	if err != nil {
		return nil, nil, err
	}
	eqh, eql = DetectEqualHighsLows(candles, highs, lows, e.cfg.SwingLength, e.cfg.EqualTolerance)
	return eqh, eql, nil
}

// DetectHistorical 批量版摆动结构检测，供离线报表与等价性测试使用。
func (e *Engine) DetectHistorical(candles []market.Candle) ([]StructureEvent, error) {
	return e.tracker.DetectHistorical(candles)
}
