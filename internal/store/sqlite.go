package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"smcbot/internal/logger"
	"smcbot/internal/market"
	"smcbot/internal/smc"
)

// SQLiteStore 把 K 线缓存与结构事件落到本地 sqlite，重启后可恢复。
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Infof("[store] sqlite 已打开: %s", path)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS klines (
			symbol     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			open_time  INTEGER NOT NULL,
			close_time INTEGER NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			trades     INTEGER,
			final      INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, interval, open_time)
		)`,
		`CREATE TABLE IF NOT EXISTS structure_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			bar_index  INTEGER NOT NULL,
			price      REAL    NOT NULL,
			kind       TEXT    NOT NULL,
			direction  INTEGER NOT NULL,
			timeframe  TEXT    NOT NULL,
			bar_time   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON structure_events(session_id, bar_index)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Put 批量 upsert K 线；同 open_time 覆盖（盘中增量更新）。max 仅用于过量裁剪。
func (s *SQLiteStore) Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	if len(ks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO klines
		(symbol, interval, open_time, close_time, open, high, low, close, volume, trades, final)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol, interval, open_time) DO UPDATE SET
		close_time=excluded.close_time, open=excluded.open, high=excluded.high,
		low=excluded.low, close=excluded.close, volume=excluded.volume,
		trades=excluded.trades, final=excluded.final`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range ks {
		final := 0
		if c.Final {
			final = 1
		}
		if _, err := stmt.ExecContext(ctx, symbol, interval, c.OpenTime, c.CloseTime,
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades, final); err != nil {
			return err
		}
	}
	if max > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM klines
			WHERE symbol=? AND interval=? AND open_time NOT IN (
				SELECT open_time FROM klines WHERE symbol=? AND interval=?
				ORDER BY open_time DESC LIMIT ?)`,
			symbol, interval, symbol, interval, max); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get 按时间升序取全部 K 线。
func (s *SQLiteStore) Get(ctx context.Context, symbol, interval string) ([]market.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT open_time, close_time, open, high, low, close, volume, trades, final
		FROM klines WHERE symbol=? AND interval=? ORDER BY open_time ASC`, symbol, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		var final int
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades, &final); err != nil {
			return nil, err
		}
		c.Final = final != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendEvents 追加一批结构事件。
func (s *SQLiteStore) AppendEvents(ctx context.Context, sessionID, symbol, interval string, events []smc.StructureEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `INSERT INTO structure_events
			(session_id, symbol, interval, bar_index, price, kind, direction, timeframe, bar_time)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			sessionID, symbol, interval, ev.Index, ev.Price, string(ev.Kind), int(ev.Direction), ev.Timeframe.String(), ev.Time); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Events 按 bar_index 升序取某会话的事件日志。
func (s *SQLiteStore) Events(ctx context.Context, sessionID string) ([]smc.StructureEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bar_index, price, kind, direction, timeframe, bar_time
		FROM structure_events WHERE session_id=? ORDER BY bar_index ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []smc.StructureEvent
	for rows.Next() {
		var ev smc.StructureEvent
		var kind, timeframe string
		var direction int
		if err := rows.Scan(&ev.Index, &ev.Price, &kind, &direction, &timeframe, &ev.Time); err != nil {
			return nil, err
		}
		ev.Kind = smc.StructureKind(kind)
		ev.Direction = smc.Trend(direction)
		if timeframe == "swing" {
			ev.Timeframe = smc.TimeframeSwing
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
