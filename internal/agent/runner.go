package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smcbot/internal/logger"
	"smcbot/internal/market"
	"smcbot/internal/smc"
	"smcbot/internal/store"
)

// EventSink 接收新产生的结构事件（执行端、通知端等协作方实现）。
type EventSink interface {
	OnStructureEvents(events []smc.StructureEvent)
}

// Params Runner 的装配参数。DB 可为 nil（不落盘）。
type Params struct {
	Source       market.Source
	Klines       *store.MemoryKlineStore
	DB           *store.SQLiteStore
	Symbol       string
	Interval     string
	HistoryLimit int
	Strategy     smc.Config
	Sink         EventSink
}

// Status 对外暴露的运行状态。
type Status struct {
	SessionID  string             `json:"session_id"`
	Running    bool               `json:"running"`
	Connected  bool               `json:"connected"`
	Symbol     string             `json:"symbol"`
	Interval   string             `json:"interval"`
	BarsSeen   int                `json:"bars_seen"`
	EventCount int                `json:"event_count"`
	LastBar    int64              `json:"last_bar"`
	State      smc.StructureState `json:"state"`
}

// Runner 把行情流串行化后驱动结构引擎：引擎状态只被 run 协程读写，
// HTTP 等并发读方只接触 Runner 发布的快照拷贝。
type Runner struct {
	src          market.Source
	klines       *store.MemoryKlineStore
	db           *store.SQLiteStore
	symbol       string
	interval     string
	historyLimit int
	strategy     smc.Config
	sink         EventSink

	engine *smc.Engine // 仅 run 协程访问

	mu        sync.RWMutex
	sessionID string
	running   bool
	connected bool
	barsSeen  int
	lastBar   int64
	snapshot  snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// snapshot run 协程每根 bar 后发布的只读拷贝。
type snapshot struct {
	candles []market.Candle
	state   smc.StructureState
	events  []smc.StructureEvent
}

func NewRunner(p Params) (*Runner, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("source 不能为空")
	}
	if p.Klines == nil {
		p.Klines = store.NewMemoryKlineStore()
	}
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 500
	}
	return &Runner{
		src:          p.Source,
		klines:       p.Klines,
		db:           p.DB,
		symbol:       p.Symbol,
		interval:     p.Interval,
		historyLimit: p.HistoryLimit,
		strategy:     p.Strategy,
		sink:         p.Sink,
	}, nil
}

// Start 拉取历史、回放暖启动，然后订阅实时流并串行消费。
// 重复调用返回错误；Stop 之后可以再次 Start（新的会话）。
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner 已在运行")
	}
	r.sessionID = uuid.NewString()
	r.running = true
	r.barsSeen = 0
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	history, err := r.src.FetchHistory(runCtx, r.symbol, r.interval, r.historyLimit)
	if err != nil {
		cancel()
		r.setRunning(false)
		return fmt.Errorf("拉取历史失败: %w", err)
	}
	if err := r.klines.Set(runCtx, r.symbol, r.interval, history); err != nil {
		cancel()
		r.setRunning(false)
		return err
	}

	engine := smc.NewEngine(r.strategy)
	r.mu.Lock()
	r.engine = engine
	r.mu.Unlock()
	warmup := engine.Replay(history)
	logger.Infof("[agent] 会话 %s 暖启动完成：%d 根历史，%d 个结构事件",
		r.shortSession(), len(history), len(warmup))
	r.persistEvents(runCtx, warmup)
	r.publish(history)

	events, err := r.src.Subscribe(runCtx, r.symbol, r.interval, market.SubscribeOptions{
		OnConnect:    func() { r.setConnected(true) },
		OnDisconnect: func(error) { r.setConnected(false) },
	})
	if err != nil {
		cancel()
		r.setRunning(false)
		return fmt.Errorf("订阅实时流失败: %w", err)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer r.setRunning(false)
		r.run(runCtx, events)
	}()
	return nil
}

// run 单一消费者循环：引擎的全部变更都发生在这里。
func (r *Runner) run(ctx context.Context, events <-chan market.CandleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.onCandle(ctx, ev)
		}
	}
}

func (r *Runner) onCandle(ctx context.Context, ev market.CandleEvent) {
	if err := r.klines.Put(ctx, r.symbol, r.interval, []market.Candle{ev.Candle}, r.historyLimit); err != nil {
		logger.Warnf("[agent] 写入 K 线失败: %v", err)
		return
	}
	window, err := r.klines.Get(ctx, r.symbol, r.interval)
	if err != nil || len(window) == 0 {
		return
	}
	if r.db != nil {
		if err := r.db.Put(ctx, r.symbol, r.interval, []market.Candle{ev.Candle}, r.historyLimit); err != nil {
			logger.Warnf("[agent] K 线落盘失败: %v", err)
		}
	}

	newEvents := r.engine.OnBar(window)
	if len(newEvents) > 0 {
		for _, e := range newEvents {
			logger.Infof("[agent] %s %s %s @ %.6f (bar %d)",
				e.Timeframe, e.Direction, e.Kind, e.Price, e.Index)
		}
		r.persistEvents(ctx, newEvents)
		if r.sink != nil {
			r.sink.OnStructureEvents(newEvents)
		}
	}

	r.mu.Lock()
	r.barsSeen++
	r.lastBar = ev.Candle.OpenTime
	r.mu.Unlock()
	r.publish(window)
}

func (r *Runner) persistEvents(ctx context.Context, events []smc.StructureEvent) {
	if r.db == nil || len(events) == 0 {
		return
	}
	r.mu.RLock()
	sessionID := r.sessionID
	r.mu.RUnlock()
	if err := r.db.AppendEvents(ctx, sessionID, r.symbol, r.interval, events); err != nil {
		logger.Warnf("[agent] 事件落盘失败: %v", err)
	}
}

// publish 发布只读快照；window 由调用方保证后续不再改写。
func (r *Runner) publish(window []market.Candle) {
	state := r.engine.State()
	events := r.engine.Events()
	r.mu.Lock()
	r.snapshot = snapshot{candles: window, state: state, events: events}
	r.mu.Unlock()
}

// Stop 结束当前会话并等待消费循环退出。
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warnf("[agent] 等待消费循环退出超时")
		}
	}
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	if !v {
		r.connected = false
	}
	r.mu.Unlock()
}

func (r *Runner) setConnected(v bool) {
	r.mu.Lock()
	r.connected = v
	r.mu.Unlock()
}

func (r *Runner) shortSession() string {
	if len(r.sessionID) >= 8 {
		return r.sessionID[:8]
	}
	return r.sessionID
}

// Status 当前运行状态快照。
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		SessionID:  r.sessionID,
		Running:    r.running,
		Connected:  r.connected,
		Symbol:     r.symbol,
		Interval:   r.interval,
		BarsSeen:   r.barsSeen,
		EventCount: len(r.snapshot.events),
		LastBar:    r.lastBar,
		State:      r.snapshot.state,
	}
}

// Candles 最近 limit 根 K 线快照。
func (r *Runner) Candles(limit int) []market.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur := r.snapshot.candles
	if limit > 0 && limit < len(cur) {
		cur = cur[len(cur)-limit:]
	}
	return market.Clone(cur)
}

// Events 事件日志快照。
func (r *Runner) Events() []smc.StructureEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]smc.StructureEvent, len(r.snapshot.events))
	copy(out, r.snapshot.events)
	return out
}

// OrderBlocks 基于当前快照计算订单块（纯函数，不触碰引擎状态）。
func (r *Runner) OrderBlocks() ([]smc.OrderBlock, error) {
	r.mu.RLock()
	candles := r.snapshot.candles
	events := r.snapshot.events
	r.mu.RUnlock()
	highs, lows, err := smc.Pivots(candles, r.strategyConfig().SwingLength)
	if err != nil {
		return nil, err
	}
	return smc.LocateOrderBlocks(candles, events, highs, lows), nil
}

// FVGs 当前快照上的失衡区间。
func (r *Runner) FVGs() ([]smc.FVG, error) {
	r.mu.RLock()
	candles := r.snapshot.candles
	r.mu.RUnlock()
	return smc.DetectFVG(candles, r.strategyConfig().FVGAutoThreshold)
}

// EqualHighsLows 当前快照上的等高等低。
func (r *Runner) EqualHighsLows() (eqh, eql []smc.Pivot, err error) {
	r.mu.RLock()
	candles := r.snapshot.candles
	r.mu.RUnlock()
	cfg := r.strategyConfig()
	highs, lows, err := smc.Pivots(candles, cfg.SwingLength)
	if err != nil {
		return nil, nil, err
	}
	eqh, eql = smc.DetectEqualHighsLows(candles, highs, lows, cfg.SwingLength, cfg.EqualTolerance)
	return eqh, eql, nil
}

func (r *Runner) strategyConfig() smc.Config {
	// Engine 回填过默认值；未启动时退回装配参数。
	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()
	if engine != nil {
		return engine.Config()
	}
	return r.strategy
}
