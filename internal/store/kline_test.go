package store

import (
	"context"
	"testing"

	"smcbot/internal/market"
)

func candle(openTime int64, close float64, final bool) market.Candle {
	return market.Candle{
		OpenTime:  openTime,
		CloseTime: openTime + 59_999,
		Open:      close - 1,
		High:      close + 1,
		Low:       close - 2,
		Close:     close,
		Final:     final,
	}
}

func TestMemoryPutOverwritesIntrabarUpdate(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()

	if err := s.Put(ctx, "BTCUSDT", "1m", []market.Candle{candle(0, 100, true), candle(60_000, 101, false)}, 10); err != nil {
		t.Fatal(err)
	}
	// 同一根未收盘 K 线的增量修订：覆盖而非追加。
	if err := s.Put(ctx, "BTCUSDT", "1m", []market.Candle{candle(60_000, 102, true)}, 10); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "BTCUSDT", "1m")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 candles, got %d", len(got))
	}
	if got[1].Close != 102 || !got[1].Final {
		t.Fatalf("last candle must be the revised one, got %+v", got[1])
	}
	if got[0].Close != 100 {
		t.Fatalf("closed candles are immutable, got %+v", got[0])
	}
}

func TestMemoryPutDropsLateCandles(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()
	s.Put(ctx, "BTCUSDT", "1m", []market.Candle{candle(120_000, 100, true)}, 10)
	s.Put(ctx, "BTCUSDT", "1m", []market.Candle{candle(60_000, 99, true)}, 10)

	got, _ := s.Get(ctx, "BTCUSDT", "1m")
	if len(got) != 1 || got[0].OpenTime != 120_000 {
		t.Fatalf("out-of-order candle must be dropped, got %+v", got)
	}
}

func TestMemoryPutTrims(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		s.Put(ctx, "BTCUSDT", "1m", []market.Candle{candle(int64(i)*60_000, float64(100+i), true)}, 5)
	}
	got, _ := s.Get(ctx, "BTCUSDT", "1m")
	if len(got) != 5 || got[0].Close != 103 {
		t.Fatalf("want trimmed window [103..107], got %+v", got)
	}
}

func TestMemoryExport(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Put(ctx, "BTCUSDT", "1m", []market.Candle{candle(int64(i)*60_000, float64(100+i), true)}, 10)
	}
	got, err := s.Export(ctx, "BTCUSDT", "1m", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Close != 102 || got[2].Close != 104 {
		t.Fatalf("want last 3 ascending, got %+v", got)
	}
	// 拷贝语义：改写导出切片不影响存储。
	got[0].Close = -1
	again, _ := s.Export(ctx, "BTCUSDT", "1m", 3)
	if again[0].Close != 102 {
		t.Fatal("export must return a copy")
	}
}

func TestMemoryPutValidation(t *testing.T) {
	s := NewMemoryKlineStore()
	if err := s.Put(context.Background(), "", "1m", []market.Candle{candle(0, 1, true)}, 5); err == nil {
		t.Fatal("empty symbol must be rejected")
	}
}
