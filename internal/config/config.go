package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"healthguard/internal/alerting"
	"healthguard/internal/genai"
	"healthguard/internal/logging"
	"healthguard/internal/scoring"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	GenAI     genai.Config    `mapstructure:"genai"`
	Coach     CoachConfig     `mapstructure:"coach"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Overrides OverridesConfig `mapstructure:"overrides"`
	Report    ReportConfig    `mapstructure:"report"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ScoringConfig selects the status message catalog.
type ScoringConfig struct {
	Locale string `mapstructure:"locale"`
}

// SimulatorConfig governs the simulated device sync.
type SimulatorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	Seed         uint64        `mapstructure:"seed"`
	AnomalyRate  float64       `mapstructure:"anomaly_rate"`
	StepsPerTick int           `mapstructure:"steps_per_tick"`
	// ManualHold pauses device syncs after an api, mqtt or overrides edit.
	ManualHold   time.Duration `mapstructure:"manual_hold"`
}

// HTTPConfig covers the dashboard API listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StreamInterval  time.Duration `mapstructure:"stream_interval"`
}

// CoachConfig bounds in-memory coach sessions.
type CoachConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	MaxHistory int           `mapstructure:"max_history"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool                     `mapstructure:"enabled"`
	Cooldown time.Duration            `mapstructure:"cooldown"`
	Timeout  time.Duration            `mapstructure:"timeout"`
	Channels []string                 `mapstructure:"channels"`
	Telegram TelegramConfig           `mapstructure:"telegram"`
	Webhooks []alerting.WebhookConfig `mapstructure:"webhooks"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MQTTConfig describes the device metrics subscription.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Topic          string        `mapstructure:"topic"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// OverridesConfig points at the demo-mode overrides file.
type OverridesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ReportConfig sets the averaging window of the weekly report.
type ReportConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	ChartWidth  int    `mapstructure:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("HEALTHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// API_KEY is the variable the hosted model's own tooling reads.
	_ = v.BindEnv("genai.api_key", "HEALTHGUARD_GENAI_API_KEY", "API_KEY")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "healthguard")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scoring.locale", scoring.DefaultLocale)

	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.interval", "5s")
	v.SetDefault("simulator.align_to_start", true)
	v.SetDefault("simulator.startup_delay", "0s")
	v.SetDefault("simulator.seed", 0)
	v.SetDefault("simulator.anomaly_rate", 0.05)
	v.SetDefault("simulator.steps_per_tick", 120)
	v.SetDefault("simulator.manual_hold", "5m")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.stream_interval", "15s")

	v.SetDefault("genai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("genai.model", "gemini-2.5-flash")
	v.SetDefault("genai.speech_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("genai.voice", "Kore")
	v.SetDefault("genai.language", "German")
	v.SetDefault("genai.timeout", "30s")
	v.SetDefault("genai.retries", 2)

	v.SetDefault("coach.session_ttl", "1h")
	v.SetDefault("coach.max_history", genai.DefaultHistory)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "healthguard")
	v.SetDefault("mqtt.topic", "healthguard/+/metrics")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connect_timeout", "10s")

	v.SetDefault("overrides.enabled", false)
	v.SetDefault("overrides.path", "overrides.yaml")

	v.SetDefault("report.window", "168h")

	v.SetDefault("export.dir", ".")
	v.SetDefault("export.chart_width", 1024)
	v.SetDefault("export.chart_height", 400)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if _, err := scoring.LookupCatalog(c.Scoring.Locale); err != nil {
		return fmt.Errorf("scoring.locale: %w", err)
	}
	if c.Simulator.Enabled && c.Simulator.Interval <= 0 {
		return fmt.Errorf("simulator.interval must be greater than zero")
	}
	if c.Simulator.AnomalyRate < 0 || c.Simulator.AnomalyRate > 1 {
		return fmt.Errorf("simulator.anomaly_rate must be within [0,1]")
	}
	if c.Simulator.ManualHold < 0 {
		return fmt.Errorf("simulator.manual_hold must not be negative")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr must be set")
	}
	if c.GenAI.Retries < 0 {
		return fmt.Errorf("genai.retries cannot be negative")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	for i, wh := range c.Alerting.Webhooks {
		switch wh.Type {
		case alerting.WebhookSlack, alerting.WebhookTeams, alerting.WebhookHTTP:
		default:
			return fmt.Errorf("alerting.webhooks[%d].type %q is not one of slack, teams, http", i, wh.Type)
		}
		if wh.URL == "" {
			return fmt.Errorf("alerting.webhooks[%d].url must be set", i)
		}
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.broker and mqtt.topic must be set when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	if c.Overrides.Enabled && c.Overrides.Path == "" {
		return fmt.Errorf("overrides.path must be set when overrides are enabled")
	}
	if c.Export.ChartWidth <= 0 || c.Export.ChartHeight <= 0 {
		return fmt.Errorf("export chart dimensions must be greater than zero")
	}
	return nil
}
