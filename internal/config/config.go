package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hannlab/autotrader/internal/risk"
	"github.com/hannlab/autotrader/internal/wf"
)

type Logging struct {
	Level string `yaml:"level"`
}

// Broker holds connection and execution settings. Credentials never live in
// the YAML file; they come from the environment (or a .env file next to the
// binary).
type Broker struct {
	Server         string   `yaml:"server"`
	Login          int64    `yaml:"-"`
	Password       string   `yaml:"-"`
	Symbol         string   `yaml:"symbol"`
	Timeframes     []string `yaml:"timeframes"`
	SlippagePoints int      `yaml:"slippage_points" validate:"gte=0"`
	MaxRetries     int      `yaml:"max_retries" validate:"gte=0"`
	BackoffMs      int      `yaml:"backoff_ms" validate:"gte=0"`
}

type Bandit struct {
	Algo       string  `yaml:"algo"` // thompson | ucb1
	PriorAlpha float64 `yaml:"prior_alpha"`
	PriorBeta  float64 `yaml:"prior_beta"`
	StatePath  string  `yaml:"state_path"`
}

type Drift struct {
	Delta float64 `yaml:"delta"`
}

type Decay struct {
	HalfLifeTrades int `yaml:"half_life_trades"`
}

// Learning groups everything the adaptive layer needs.
type Learning struct {
	Bandit     Bandit            `yaml:"bandit"`
	Drift      Drift             `yaml:"drift"`
	Decay      Decay             `yaml:"decay"`
	WFSchedule wf.ScheduleConfig `yaml:"wf_schedule"`
	Shadow     wf.ShadowConfig   `yaml:"shadow"`
}

// Storage paths for the SQLite store and flat-file artifacts.
type Storage struct {
	DBPath           string `yaml:"db_path"`
	OutboxPath       string `yaml:"outbox_path"`
	DedupeWindowSecs int    `yaml:"dedupe_window_seconds"`
	ReportDir        string `yaml:"report_dir"`
}

// Loop sets the per-path sleep durations, in seconds. These are the
// daemon's backpressure: longer waits on unsafe or ambiguous cycles.
type Loop struct {
	IdleSeconds     int `yaml:"idle_seconds"`
	NoChoiceSeconds int `yaml:"no_choice_seconds"`
	PostTrade       int `yaml:"post_trade_seconds"`
	Drawdown        int `yaml:"drawdown_seconds"`
	Spread          int `yaml:"spread_seconds"`
	Blackout        int `yaml:"blackout_seconds"`
	BarCount        int `yaml:"bar_count"`
}

type Telegram struct {
	ChatID string `yaml:"chat_id"`
	Token  string `yaml:"-"`
}

type Root struct {
	Logging  Logging     `yaml:"logging"`
	Risk     risk.Policy `yaml:"risk"`
	Broker   Broker      `yaml:"broker"`
	Learning Learning    `yaml:"learning"`
	Storage  Storage     `yaml:"storage"`
	Loop     Loop        `yaml:"loop"`
	Telegram Telegram    `yaml:"telegram"`
}

// Load reads the YAML config, applies defaults, merges credentials from the
// environment, and fails fast on a malformed risk policy. Configuration is
// read exactly once per process; there is no hot reload.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&c)
	mergeEnv(&c)

	if err := c.Risk.Validate(); err != nil {
		return c, err
	}
	if err := validate.Struct(c.Broker); err != nil {
		return c, fmt.Errorf("broker config: %w", err)
	}
	return c, nil
}

var validate = validator.New()

func applyDefaults(c *Root) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Broker.Timeframes) == 0 {
		c.Broker.Timeframes = []string{"M5", "M15", "M30"}
	}
	if c.Broker.SlippagePoints == 0 {
		c.Broker.SlippagePoints = 30
	}
	if c.Broker.MaxRetries == 0 {
		c.Broker.MaxRetries = 3
	}
	if c.Broker.BackoffMs == 0 {
		c.Broker.BackoffMs = 200
	}
	if c.Learning.Bandit.Algo == "" {
		c.Learning.Bandit.Algo = "thompson"
	}
	if c.Learning.Bandit.PriorAlpha == 0 {
		c.Learning.Bandit.PriorAlpha = 1.0
	}
	if c.Learning.Bandit.PriorBeta == 0 {
		c.Learning.Bandit.PriorBeta = 1.0
	}
	if c.Learning.Bandit.StatePath == "" {
		c.Learning.Bandit.StatePath = "data/registry/bandit_state.json"
	}
	if c.Learning.Drift.Delta == 0 {
		c.Learning.Drift.Delta = 0.002
	}
	if c.Learning.Decay.HalfLifeTrades == 0 {
		c.Learning.Decay.HalfLifeTrades = 200
	}
	if c.Learning.WFSchedule.TrainWindowDays == 0 {
		c.Learning.WFSchedule.TrainWindowDays = 60
	}
	if c.Learning.WFSchedule.TestWindowDays == 0 {
		c.Learning.WFSchedule.TestWindowDays = 14
	}
	if c.Learning.WFSchedule.Splits == 0 {
		c.Learning.WFSchedule.Splits = 5
	}
	if c.Learning.WFSchedule.EmbargoBars == 0 {
		c.Learning.WFSchedule.EmbargoBars = 5
	}
	if c.Learning.Shadow.MaxMDDPct == 0 {
		c.Learning.Shadow.MaxMDDPct = 100
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/autotrader.db"
	}
	if c.Storage.OutboxPath == "" {
		c.Storage.OutboxPath = "data/outbox.jsonl"
	}
	if c.Storage.DedupeWindowSecs == 0 {
		c.Storage.DedupeWindowSecs = 90
	}
	if c.Storage.ReportDir == "" {
		c.Storage.ReportDir = "data/reports"
	}
	if c.Loop.IdleSeconds == 0 {
		c.Loop.IdleSeconds = 10
	}
	if c.Loop.NoChoiceSeconds == 0 {
		c.Loop.NoChoiceSeconds = 5
	}
	if c.Loop.PostTrade == 0 {
		c.Loop.PostTrade = 5
	}
	if c.Loop.Drawdown == 0 {
		c.Loop.Drawdown = 60
	}
	if c.Loop.Spread == 0 {
		c.Loop.Spread = 15
	}
	if c.Loop.Blackout == 0 {
		c.Loop.Blackout = 60
	}
	if c.Loop.BarCount == 0 {
		c.Loop.BarCount = 250
	}
}

// mergeEnv pulls credentials from the environment. A .env file is honored
// when present but never required.
func mergeEnv(c *Root) {
	_ = godotenv.Load()
	if v := os.Getenv("BROKER_LOGIN"); v != "" {
		if login, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Broker.Login = login
		}
	}
	if v := os.Getenv("BROKER_PASSWORD"); v != "" {
		c.Broker.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}
