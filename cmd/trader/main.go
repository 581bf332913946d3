package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hannlab/autotrader/internal/bandit"
	"github.com/hannlab/autotrader/internal/broker"
	"github.com/hannlab/autotrader/internal/calendar"
	"github.com/hannlab/autotrader/internal/config"
	"github.com/hannlab/autotrader/internal/drift"
	"github.com/hannlab/autotrader/internal/features"
	"github.com/hannlab/autotrader/internal/feed"
	"github.com/hannlab/autotrader/internal/observ"
	"github.com/hannlab/autotrader/internal/outbox"
	"github.com/hannlab/autotrader/internal/report"
	"github.com/hannlab/autotrader/internal/risk"
	"github.com/hannlab/autotrader/internal/selector"
	"github.com/hannlab/autotrader/internal/store"
	"github.com/hannlab/autotrader/internal/strategy"
	"github.com/hannlab/autotrader/internal/wf"
)

// openTrade is the position carried between cycles. The next cycle closes
// it, realizes pnl and feeds the bandit before opening a new one.
type openTrade struct {
	ticket     int64
	arm        string
	timeframe  string
	direction  strategy.Direction
	entryPrice float64
	entryATR   float64
	lot        float64
	sl         float64
	tp         float64
	ctx        bandit.Context
	openedAt   time.Time
}

type trader struct {
	cfg    *config.Root
	st     *store.Store
	ob     *outbox.Outbox
	feed   feed.Feed
	brk    broker.Broker
	bnd    *bandit.Bandit
	engine *risk.Engine
	det    *drift.Detector
	runner *wf.Runner
	cal    calendar.Source
	news   calendar.NewsSource
	strats map[string]strategy.Strategy
	notify report.Notifier
	open   *openTrade
	peakEq float64
	lastWF time.Time
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	observ.Init(cfg.Logging.Level, os.Stdout)

	t, err := newTrader(&cfg)
	if err != nil {
		observ.Error("startup_failed", err, nil)
		os.Exit(1)
	}
	defer t.st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observ.Log("trader_started", map[string]any{
		"symbol": cfg.Risk.Symbol,
		"algo":   cfg.Learning.Bandit.Algo,
	})
	t.run(ctx)

	if err := t.bnd.SaveState(cfg.Learning.Bandit.StatePath); err != nil {
		observ.Error("bandit_state_save_failed", err, nil)
	}
	observ.Log("trader_stopped", nil)
}

func newTrader(cfg *config.Root) (*trader, error) {
	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	ob, err := outbox.New(cfg.Storage.OutboxPath, cfg.Storage.DedupeWindowSecs)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	sim := feed.NewSimFeed(cfg.Risk.Symbol, 1950.0, 10000.0, 0)
	var fd feed.Feed = sim
	if !sim.Connect() {
		observ.Warn("feed_offline", nil)
		fd = feed.Offline{}
	}

	refPrice := func(symbol string) float64 {
		bars, err := fd.Bars(symbol, "M1", 2)
		if err != nil || bars.Len() == 0 {
			return 0
		}
		return bars.LastClose()
	}
	venue := broker.NewSimVenue(refPrice, ob, 0)
	brk := broker.NewRetrying(venue, time.Duration(cfg.Broker.BackoffMs)*time.Millisecond)

	bnd := bandit.New(
		cfg.Learning.Bandit.PriorAlpha,
		cfg.Learning.Bandit.PriorBeta,
		bandit.WithPolicy(bandit.PolicyFor(cfg.Learning.Bandit.Algo)),
	)
	if err := bnd.LoadState(cfg.Learning.Bandit.StatePath); err != nil {
		observ.Error("bandit_state_load_failed", err, nil)
	}
	strats := strategy.DefaultSet()
	for name := range strats {
		bnd.RegisterArm(name)
	}

	eval := &wf.BacktestEvaluator{
		Feed:       fd,
		Strategies: strats,
		Symbol:     cfg.Risk.Symbol,
		Timeframe:  "M5",
		Splits:     cfg.Learning.WFSchedule.Splits,
		Embargo:    cfg.Learning.WFSchedule.EmbargoBars,
	}
	runner := wf.NewRunner(cfg.Learning.WFSchedule, cfg.Learning.Shadow, st, eval)

	src := calendar.NewStaticSource(time.Now().UTC())

	var notify report.Notifier = report.NopNotifier{}
	if cfg.Telegram.Token != "" {
		notify = report.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
	}

	return &trader{
		cfg:    cfg,
		st:     st,
		ob:     ob,
		feed:   fd,
		brk:    brk,
		bnd:    bnd,
		engine: risk.NewEngine(&cfg.Risk),
		det:    drift.New(cfg.Learning.Drift.Delta),
		runner: runner,
		cal:    src,
		news:   src,
		strats: strats,
		notify: notify,
	}, nil
}

func (t *trader) run(ctx context.Context) {
	for {
		sleep := t.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// cycle runs one pass of the trading loop and returns how long to sleep
// before the next pass. Gates are checked hardest-stop first.
func (t *trader) cycle(ctx context.Context) time.Duration {
	cfg := t.cfg
	now := time.Now().UTC()

	idle := time.Duration(cfg.Loop.IdleSeconds) * time.Second
	noChoice := time.Duration(cfg.Loop.NoChoiceSeconds) * time.Second

	account := t.feed.AccountInfo()
	ddPct := t.recordEquity(now, account)

	if t.engine.CheckDailyDD(ddPct) {
		t.settleOpen(ctx, now)
		return time.Duration(cfg.Loop.Drawdown) * time.Second
	}

	spread := t.feed.SpreadPoints(cfg.Risk.Symbol)
	if !t.engine.SpreadOK(spread) {
		return time.Duration(cfg.Loop.Spread) * time.Second
	}

	upcoming := t.cal.UpcomingEvents(now, 24*time.Hour)
	if t.engine.NewsBlackout(now, upcoming) {
		return time.Duration(cfg.Loop.Blackout) * time.Second
	}

	t.settleOpen(ctx, now)

	if !t.engine.MaxPositionsOK(t.brk.OpenPositions()) {
		return idle
	}

	headlines := t.news.RecentHeadlines(now, 30*time.Minute)
	newsState := features.FromSources(now, spread, headlines, upcoming)

	candidates, ctxs := t.collectCandidates(now, newsState)
	if len(candidates) == 0 {
		return idle
	}

	chosen, lot := selector.Choose(t.bnd, ctxs, candidates, account.Balance, t.engine)
	if chosen == "" {
		return noChoice
	}
	cand := candidates[chosen]
	levels := cand.Strategy.StopTake(cand.Bars, t.engine.Policy())
	if math.IsNaN(levels.SL) || math.IsNaN(levels.TP) {
		observ.Warn("levels_unavailable", map[string]any{"arm": chosen})
		return noChoice
	}

	if err := t.place(ctx, now, cand, chosen, lot, levels, ctxs[chosen]); err != nil {
		observ.Error("order_failed", err, map[string]any{"arm": chosen})
		return idle
	}

	t.maybeRunWeeklyWF(now)

	return time.Duration(cfg.Loop.PostTrade) * time.Second
}

// recordEquity logs the equity point and returns drawdown percent measured
// from the running peak.
func (t *trader) recordEquity(now time.Time, account feed.Account) float64 {
	if account.Equity > t.peakEq {
		t.peakEq = account.Equity
	}
	var ddPct float64
	if t.peakEq > 0 {
		ddPct = (t.peakEq - account.Equity) / t.peakEq * 100
	}
	if err := t.st.LogEquity(store.EquityLog{
		TS:      now,
		Balance: account.Balance,
		Equity:  account.Equity,
		DDPct:   ddPct,
	}); err != nil {
		observ.Error("equity_log_failed", err, nil)
	}
	observ.SetGauge("account_equity", account.Equity, nil)
	observ.SetGauge("drawdown_pct", ddPct, nil)
	return ddPct
}

func (t *trader) collectCandidates(now time.Time, news features.NewsState) (map[string]selector.Candidate, map[string]bandit.Context) {
	candidates := make(map[string]selector.Candidate)
	ctxs := make(map[string]bandit.Context, len(t.strats))

	for name, strat := range t.strats {
		bars, err := t.feed.Bars(t.cfg.Risk.Symbol, strat.Timeframe(), t.cfg.Loop.BarCount)
		if err != nil {
			observ.Error("bars_fetch_failed", err, map[string]any{"arm": name})
			continue
		}
		if bars.Len() < strat.MinBars() {
			continue
		}
		if err := strat.Prepare(bars); err != nil {
			observ.Error("prepare_failed", err, map[string]any{"arm": name})
			continue
		}
		bctx, err := features.Build(now, bars, news)
		if err != nil {
			observ.Error("context_build_failed", err, map[string]any{"arm": name})
			continue
		}
		ctxs[name] = bctx

		sig := strat.Signal(bars)
		if sig.Direction == strategy.Flat {
			continue
		}
		candidates[name] = selector.Candidate{
			Strategy: strat,
			Signal:   sig,
			Bars:     bars,
		}
	}
	return candidates, ctxs
}

func (t *trader) place(ctx context.Context, now time.Time, cand selector.Candidate, arm string, lot float64, levels strategy.Levels, bctx bandit.Context) error {
	// The key is deterministic per signal bar so a crash-and-restart within
	// the dedupe window cannot submit the same decision twice.
	key := orderKey(t.cfg.Risk.Symbol, arm, string(cand.Signal.Direction), cand.Bars.Time[cand.Bars.Len()-1])
	if seen, err := t.ob.HasRecentKey(key); err != nil {
		observ.Error("outbox_dedupe_check_failed", err, nil)
	} else if seen {
		observ.Warn("order_deduped", map[string]any{"arm": arm, "key": key})
		observ.IncCounter("orders_deduped_total", map[string]string{"arm": arm})
		return nil
	}

	req := broker.OrderRequest{
		Symbol:         t.cfg.Risk.Symbol,
		Direction:      string(cand.Signal.Direction),
		Lot:            lot,
		SL:             levels.SL,
		TP:             levels.TP,
		SlippagePoints: t.cfg.Broker.SlippagePoints,
		MaxRetries:     t.cfg.Broker.MaxRetries,
		IdempotencyKey: key,
	}
	res := t.brk.PlaceOrder(ctx, req)
	if res.Status != broker.StatusSimulated && res.Status != broker.StatusFilled {
		return fmt.Errorf("order not accepted: %s (%s)", res.Status, res.Reason)
	}

	observ.Log("order_placed", map[string]any{
		"arm":    arm,
		"ticket": res.Ticket,
		"lot":    lot,
		"price":  res.Price,
		"sl":     levels.SL,
		"tp":     levels.TP,
	})
	observ.IncCounter("orders_placed_total", map[string]string{"arm": arm})

	t.open = &openTrade{
		ticket:     res.Ticket,
		arm:        arm,
		timeframe:  cand.Strategy.Timeframe(),
		direction:  cand.Signal.Direction,
		entryPrice: res.Price,
		entryATR:   cand.Bars.Last("atr"),
		lot:        lot,
		sl:         levels.SL,
		tp:         levels.TP,
		ctx:        bctx,
		openedAt:   now,
	}
	return nil
}

// settleOpen closes the position carried from the previous cycle, realizes
// its pnl and updates the bandit and the drift detector.
func (t *trader) settleOpen(ctx context.Context, now time.Time) {
	if t.open == nil {
		return
	}
	tr := t.open

	res := t.brk.ClosePosition(ctx, tr.ticket, t.cfg.Broker.SlippagePoints)
	if res.Status == broker.StatusNotFound {
		// the venue no longer knows the ticket; nothing left to settle
		observ.Warn("close_position_orphaned", map[string]any{"ticket": tr.ticket})
		t.open = nil
		return
	}
	if res.Status != broker.StatusClosed {
		// keep the position so the next cycle retries the close
		observ.Warn("close_position_failed", map[string]any{
			"ticket": tr.ticket,
			"status": res.Status,
			"reason": res.Reason,
		})
		return
	}
	t.open = nil

	sign := 1.0
	if tr.direction == strategy.Short {
		sign = -1.0
	}
	pnl := (res.Price - tr.entryPrice) * sign * tr.lot
	reward := pnl
	if tr.entryATR > 0 && !math.IsNaN(tr.entryATR) {
		// normalize to ATR units so reward magnitude is regime-independent
		reward = pnl / (tr.entryATR * tr.lot)
	}
	reward = clamp(reward, -1.0, 1.0)

	t.bnd.Update(tr.arm, reward, tr.ctx)
	if t.det.Update(reward) {
		observ.Warn("drift_detected", map[string]any{"arm": tr.arm, "width": t.det.Width()})
		observ.IncCounter("drift_detections_total", nil)
		t.bnd.ApplyDecay(t.cfg.Learning.Decay.HalfLifeTrades)
	}

	if err := t.st.LogTrade(store.TradeLog{
		TSOpen:    tr.openedAt,
		TSClose:   now,
		Symbol:    t.cfg.Risk.Symbol,
		Timeframe: tr.timeframe,
		Strategy:  tr.arm,
		Context:   tr.ctx,
		Direction: string(tr.direction),
		Lot:       tr.lot,
		Entry:     tr.entryPrice,
		SL:        tr.sl,
		TP:        tr.tp,
		Exit:      res.Price,
		PnL:       pnl,
	}); err != nil {
		observ.Error("trade_log_failed", err, nil)
	}

	arms := t.bnd.Arms()
	state := arms[tr.arm]
	if err := t.st.AppendBanditStat(store.BanditStat{
		TS:      now,
		Arm:     tr.arm,
		Reward:  reward,
		Context: tr.ctx,
		Alpha:   state.Alpha,
		Beta:    state.Beta,
	}); err != nil {
		observ.Error("bandit_stat_failed", err, nil)
	}
	if err := t.bnd.SaveState(t.cfg.Learning.Bandit.StatePath); err != nil {
		observ.Error("bandit_state_save_failed", err, nil)
	}

	observ.Log("trade_settled", map[string]any{
		"arm":    tr.arm,
		"ticket": tr.ticket,
		"pnl":    pnl,
		"reward": reward,
	})
}

// maybeRunWeeklyWF kicks the walk-forward pipeline once per week, Mondays
// in the first hour UTC.
func (t *trader) maybeRunWeeklyWF(now time.Time) {
	if now.Weekday() != time.Monday || now.Hour() != 0 {
		return
	}
	if !t.lastWF.IsZero() && now.Sub(t.lastWF) < 24*time.Hour {
		return
	}
	t.lastWF = now

	candID, err := t.runner.RunWeeklyWF(now)
	if err != nil {
		observ.Error("wf_run_failed", err, nil)
		return
	}
	var prodID int64
	if prod, err := t.st.LatestProd(); err != nil {
		observ.Error("wf_latest_prod_failed", err, nil)
	} else if prod != nil {
		prodID = prod.ID
	}
	decision, err := t.runner.ShadowCompare(candID, prodID)
	if err != nil {
		observ.Error("wf_shadow_compare_failed", err, nil)
		return
	}
	if decision == wf.DecisionPromote {
		if err := t.runner.PromoteToProd(candID); err != nil {
			observ.Error("wf_promote_failed", err, nil)
			return
		}
	}
	t.writeWeeklyReport(now, candID, decision)
}

func (t *trader) writeWeeklyReport(now time.Time, candID int64, decision string) {
	entry, err := t.st.GetWFEntry(candID)
	if err != nil || entry == nil {
		observ.Error("wf_entry_read_failed", err, map[string]any{"id": candID})
		return
	}
	trades, err := t.st.RecentTrades(200)
	if err != nil {
		observ.Error("trades_read_failed", err, nil)
		trades = nil
	}
	path := filepath.Join(t.cfg.Storage.ReportDir, "weekly_"+now.Format("2006-01-02")+".html")
	if err := report.WriteHTML(path, entry.Metrics, trades); err != nil {
		observ.Error("report_write_failed", err, map[string]any{"path": path})
		return
	}
	msg := fmt.Sprintf("weekly walk-forward: candidate %d -> %s (sharpe %.2f, mdd %.1f%%)",
		candID, decision, entry.Metrics["sharpe"], entry.Metrics["mdd"])
	if err := t.notify.Notify(msg); err != nil {
		observ.Error("notify_failed", err, nil)
	}
	observ.Log("weekly_report_written", map[string]any{"path": path, "decision": decision})
}

// orderKey identifies one trading decision: same symbol, arm, direction and
// signal bar always map to the same key.
func orderKey(symbol, arm, direction string, barTS time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", symbol, arm, direction, barTS.UTC().Unix())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
