package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hannlab/autotrader/internal/observ"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_open TEXT NOT NULL,
    ts_close TEXT,
    symbol TEXT NOT NULL,
    timeframe TEXT NOT NULL,
    strategy TEXT NOT NULL,
    context_json TEXT,
    direction TEXT NOT NULL,
    lot REAL NOT NULL,
    entry REAL,
    sl REAL,
    tp REAL,
    exit REAL,
    pnl REAL,
    slippage REAL
);
CREATE TABLE IF NOT EXISTS equity_curve (
    ts TEXT PRIMARY KEY,
    balance REAL NOT NULL,
    equity REAL NOT NULL,
    dd_pct REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS bandit_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts TEXT NOT NULL,
    arm TEXT NOT NULL,
    reward REAL NOT NULL,
    context_json TEXT,
    alpha REAL NOT NULL,
    beta REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS wf_registry (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts TEXT NOT NULL,
    window_train TEXT NOT NULL,
    window_test TEXT NOT NULL,
    config_json TEXT,
    metrics_json TEXT,
    status TEXT NOT NULL
);
`

// TradeLog is one executed (or simulated) trade, appended for audit.
type TradeLog struct {
	TSOpen    time.Time
	TSClose   time.Time
	Symbol    string
	Timeframe string
	Strategy  string
	Context   map[string]float64
	Direction string
	Lot       float64
	Entry     float64
	SL        float64
	TP        float64
	Exit      float64
	PnL       float64
	Slippage  float64
}

// EquityLog is a balance/equity snapshot; latest-wins keyed by timestamp.
type EquityLog struct {
	TS      time.Time
	Balance float64
	Equity  float64
	DDPct   float64
}

// BanditStat is one reward observation with the posterior after the update.
type BanditStat struct {
	TS      time.Time
	Arm     string
	Reward  float64
	Context map[string]float64
	Alpha   float64
	Beta    float64
}

// WFEntry is one walk-forward validation run and its lifecycle status:
// candidate -> shadow -> prod, or held in shadow indefinitely.
type WFEntry struct {
	ID          int64
	TS          time.Time
	WindowTrain string
	WindowTest  string
	Config      map[string]float64
	Metrics     map[string]float64
	Status      string
}

// Store is the process-wide persisted log, one SQLite file. Every write is
// its own transaction; a failed write rolls back and surfaces the error.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers a single writer
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	observ.Log("store_opened", map[string]any{"path": path})
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// inTx runs one unit of work in its own transaction, rolling back on error.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) LogTrade(t TradeLog) error {
	ctx, err := json.Marshal(t.Context)
	if err != nil {
		return fmt.Errorf("encode trade context: %w", err)
	}
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO trades (ts_open, ts_close, symbol, timeframe, strategy, context_json,
			     direction, lot, entry, sl, tp, exit, pnl, slippage)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TSOpen.UTC().Format(time.RFC3339), t.TSClose.UTC().Format(time.RFC3339),
			t.Symbol, t.Timeframe, t.Strategy, string(ctx),
			t.Direction, t.Lot, t.Entry, t.SL, t.TP, t.Exit, t.PnL, t.Slippage,
		)
		return err
	})
}

func (s *Store) LogEquity(e EquityLog) error {
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO equity_curve (ts, balance, equity, dd_pct) VALUES (?, ?, ?, ?)`,
			e.TS.UTC().Format(time.RFC3339), e.Balance, e.Equity, e.DDPct,
		)
		return err
	})
}

// RecentTrades returns up to limit trades, newest first.
func (s *Store) RecentTrades(limit int) ([]TradeLog, error) {
	rows, err := s.db.Query(
		`SELECT ts_open, ts_close, symbol, timeframe, strategy, context_json,
		        direction, lot, entry, sl, tp, exit, pnl, slippage
		 FROM trades ORDER BY ts_open DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	defer rows.Close()
	var out []TradeLog
	for rows.Next() {
		var tsOpen, tsClose, ctx string
		var t TradeLog
		if err := rows.Scan(&tsOpen, &tsClose, &t.Symbol, &t.Timeframe, &t.Strategy, &ctx,
			&t.Direction, &t.Lot, &t.Entry, &t.SL, &t.TP, &t.Exit, &t.PnL, &t.Slippage); err != nil {
			return nil, err
		}
		t.TSOpen, _ = time.Parse(time.RFC3339, tsOpen)
		t.TSClose, _ = time.Parse(time.RFC3339, tsClose)
		if ctx != "" {
			_ = json.Unmarshal([]byte(ctx), &t.Context)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestEquity returns the most recent equity snapshot, nil when none exist.
func (s *Store) LatestEquity() (*EquityLog, error) {
	row := s.db.QueryRow(`SELECT ts, balance, equity, dd_pct FROM equity_curve ORDER BY ts DESC LIMIT 1`)
	var ts string
	var e EquityLog
	if err := row.Scan(&ts, &e.Balance, &e.Equity, &e.DDPct); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest equity: %w", err)
	}
	e.TS, _ = time.Parse(time.RFC3339, ts)
	return &e, nil
}

func (s *Store) AppendBanditStat(stat BanditStat) error {
	ctx, err := json.Marshal(stat.Context)
	if err != nil {
		return fmt.Errorf("encode bandit context: %w", err)
	}
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO bandit_stats (ts, arm, reward, context_json, alpha, beta) VALUES (?, ?, ?, ?, ?, ?)`,
			stat.TS.UTC().Format(time.RFC3339), stat.Arm, stat.Reward, string(ctx), stat.Alpha, stat.Beta,
		)
		return err
	})
}

// RecentBanditStats returns up to limit rows, newest first.
func (s *Store) RecentBanditStats(limit int) ([]BanditStat, error) {
	rows, err := s.db.Query(
		`SELECT ts, arm, reward, context_json, alpha, beta FROM bandit_stats ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent bandit stats: %w", err)
	}
	defer rows.Close()
	var out []BanditStat
	for rows.Next() {
		var ts, ctx string
		var stat BanditStat
		if err := rows.Scan(&ts, &stat.Arm, &stat.Reward, &ctx, &stat.Alpha, &stat.Beta); err != nil {
			return nil, err
		}
		stat.TS, _ = time.Parse(time.RFC3339, ts)
		if ctx != "" {
			_ = json.Unmarshal([]byte(ctx), &stat.Context)
		}
		out = append(out, stat)
	}
	return out, rows.Err()
}

// RegisterWF inserts a new walk-forward entry and returns its id.
func (s *Store) RegisterWF(e WFEntry) (int64, error) {
	cfg, err := json.Marshal(e.Config)
	if err != nil {
		return 0, fmt.Errorf("encode wf config: %w", err)
	}
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return 0, fmt.Errorf("encode wf metrics: %w", err)
	}
	var id int64
	err = s.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO wf_registry (ts, window_train, window_test, config_json, metrics_json, status)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.TS.UTC().Format(time.RFC3339), e.WindowTrain, e.WindowTest, string(cfg), string(metrics), e.Status,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	observ.Log("wf_entry_registered", map[string]any{"id": id, "status": e.Status})
	return id, nil
}

func (s *Store) UpdateWFStatus(id int64, status string) error {
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE wf_registry SET status = ? WHERE id = ?`, status, id)
		return err
	})
}

// GetWFEntry fetches one entry by id, nil when absent.
func (s *Store) GetWFEntry(id int64) (*WFEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, ts, window_train, window_test, config_json, metrics_json, status FROM wf_registry WHERE id = ?`, id)
	return scanWFEntry(row)
}

// LatestProd returns the newest entry in prod status, nil when none exist.
// Multiple prod rows can coexist; newest timestamp wins for resolution.
func (s *Store) LatestProd() (*WFEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, ts, window_train, window_test, config_json, metrics_json, status
		 FROM wf_registry WHERE status = 'prod' ORDER BY ts DESC, id DESC LIMIT 1`)
	return scanWFEntry(row)
}

func scanWFEntry(row *sql.Row) (*WFEntry, error) {
	var e WFEntry
	var ts, cfg, metrics string
	if err := row.Scan(&e.ID, &ts, &e.WindowTrain, &e.WindowTest, &cfg, &metrics, &e.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wf entry: %w", err)
	}
	e.TS, _ = time.Parse(time.RFC3339, ts)
	if cfg != "" {
		_ = json.Unmarshal([]byte(cfg), &e.Config)
	}
	if metrics != "" {
		_ = json.Unmarshal([]byte(metrics), &e.Metrics)
	}
	return &e, nil
}
