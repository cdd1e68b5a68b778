package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"

	"smcbot/internal/logger"
	"smcbot/internal/market"
)

const maxHistoryLimit = 1500

// Source 实现了 market.Source，基于币安合约 REST/WS 接入。
type Source struct {
	cfg    Config
	client *futures.Client

	mu     sync.Mutex
	stopC  chan struct{}
	cancel context.CancelFunc
	stats  market.SourceStats
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.HTTPClient.Timeout = final.HTTPTimeout
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	logger.Debugf("[binance] REST klines %s %s limit=%d", symbol, interval, limit)
	raw, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance history error: %w", err)
	}
	out := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		if k == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Trades:    k.TradeNum,
			Final:     true,
		})
	}
	// 最后一根可能尚未收盘。
	if n := len(out); n > 0 && out[n-1].CloseTime > time.Now().UnixMilli() {
		out[n-1].Final = false
	}
	return out, nil
}

// Subscribe 订阅单一 symbol+interval 的实时 K 线；断线自动重连并退避。
func (s *Source) Subscribe(ctx context.Context, symbol, interval string, opts market.SubscribeOptions) (<-chan market.CandleEvent, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol and interval are required for subscription")
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 512
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	out := make(chan market.CandleEvent, buffer)
	go s.run(subCtx, symbol, interval, opts, out)
	return out, nil
}

func (s *Source) run(ctx context.Context, symbol, interval string, opts market.SubscribeOptions, out chan<- market.CandleEvent) {
	defer close(out)
	retry := &backoff.Backoff{Min: time.Second, Max: s.cfg.ReconnectBackoff, Jitter: true}

	for {
		if ctx.Err() != nil {
			return
		}
		handler := func(ev *futures.WsKlineEvent) {
			if ev == nil {
				return
			}
			c := market.Candle{
				OpenTime:  ev.Kline.StartTime,
				CloseTime: ev.Kline.EndTime,
				Open:      parseFloat(ev.Kline.Open),
				High:      parseFloat(ev.Kline.High),
				Low:       parseFloat(ev.Kline.Low),
				Close:     parseFloat(ev.Kline.Close),
				Volume:    parseFloat(ev.Kline.Volume),
				Trades:    ev.Kline.TradeNum,
				Final:     ev.Kline.IsFinal,
			}
			select {
			case out <- market.CandleEvent{Symbol: symbol, Interval: interval, Candle: c}:
			default:
				logger.Warnf("[binance] 事件通道已满，丢弃 %s %s", symbol, interval)
			}
		}
		errHandler := func(err error) {
			s.mu.Lock()
			s.stats.LastError = err.Error()
			s.mu.Unlock()
			logger.Warnf("[binance] WS 错误: %v", err)
		}

		doneC, stopC, err := futures.WsKlineServe(symbol, interval, handler, errHandler)
		if err != nil {
			s.mu.Lock()
			s.stats.SubscribeErrors++
			s.stats.LastError = err.Error()
			s.mu.Unlock()
			wait := retry.Duration()
			logger.Warnf("[binance] 订阅失败，%s 后重试: %v", wait, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}
		retry.Reset()
		s.mu.Lock()
		s.stopC = stopC
		s.mu.Unlock()
		if opts.OnConnect != nil {
			opts.OnConnect()
		}

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
			s.mu.Lock()
			s.stats.Reconnects++
			s.mu.Unlock()
			if opts.OnDisconnect != nil {
				opts.OnDisconnect(fmt.Errorf("binance kline stream closed"))
			}
			logger.Warnf("[binance] %s %s 连接断开，准备重连", symbol, interval)
		}
	}
}

func (s *Source) Stats() market.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}
