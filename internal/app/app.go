package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"healthguard/internal/alerting"
	"healthguard/internal/config"
	"healthguard/internal/genai"
	"healthguard/internal/httpapi"
	"healthguard/internal/ingest"
	"healthguard/internal/logging"
	"healthguard/internal/monitor"
	"healthguard/internal/overrides"
	"healthguard/internal/report"
	"healthguard/internal/scheduler"
	"healthguard/internal/scoring"
	"healthguard/internal/series"
	"healthguard/internal/service"
	"healthguard/internal/simulator"
	"healthguard/internal/stream"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

func (a *App) newEngine(locale string) (*scoring.Engine, error) {
	if locale == "" {
		locale = a.Config.Scoring.Locale
	}
	return scoring.New(locale)
}

func (a *App) newMonitor() (*monitor.Monitor, error) {
	engine, err := a.newEngine("")
	if err != nil {
		return nil, err
	}
	return monitor.New(engine, monitor.Seed(), a.Logger), nil
}

// newAssistant returns an assistant without a model when no API key is
// configured; every call then answers with genai.UnavailableText.
func (a *App) newAssistant() *genai.Assistant {
	var gen genai.Generator
	client, err := genai.NewClient(a.Config.GenAI, a.Logger)
	switch {
	case err == nil:
		gen = client
	case errors.Is(err, genai.ErrMissingAPIKey):
		a.Logger.Warn().Msg("genai.api_key not configured; assistant disabled")
	default:
		a.Logger.Error().Err(err).Msg("genai client not created; assistant disabled")
	}
	return genai.NewAssistant(gen, a.Config.GenAI.Language, a.Config.Scoring.Locale, a.Logger)
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	cfg := a.Config.Alerting
	var notifiers alerting.Multi
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, a.Logger))
	}
	for _, wh := range cfg.Webhooks {
		n, err := alerting.NewWebhookNotifier(wh, cfg.Timeout, a.Logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	switch len(notifiers) {
	case 0:
		return nil, nil
	case 1:
		return notifiers[0], nil
	default:
		return notifiers, nil
	}
}

// Run executes the long-running dashboard service: device simulation,
// alerting, MQTT ingest, the overrides watcher and the HTTP API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mon, err := a.newMonitor()
	if err != nil {
		return err
	}

	var (
		sched  *scheduler.Scheduler
		device *simulator.Device
	)
	if a.Config.Simulator.Enabled {
		sched, err = scheduler.New(scheduler.Options{
			Interval:     a.Config.Simulator.Interval,
			AlignToStart: a.Config.Simulator.AlignToStart,
			StartupDelay: a.Config.Simulator.StartupDelay,
			SyncTimeout:  a.Config.Simulator.Interval,
		}, a.Logger)
		if err != nil {
			return err
		}
		current, _ := mon.Current()
		device = simulator.NewDevice(current, simulator.Options{
			Seed:         a.Config.Simulator.Seed,
			AnomalyRate:  a.Config.Simulator.AnomalyRate,
			StepsPerTick: a.Config.Simulator.StepsPerTick,
		})
	} else {
		a.Logger.Info().Msg("simulator disabled; waiting for api, mqtt or overrides updates")
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured")
	}

	window := report.NewWindow(a.Config.Report.Window)
	svc := service.New(a.Config, sched, mon, device, notifier, window, a.Logger)

	hub := stream.New(mon, a.Config.HTTP.StreamInterval, a.Config.HTTP.AllowedOrigins, a.Logger)
	mon.Subscribe(hub.Publish)

	server := httpapi.New(a.Config.HTTP, httpapi.Deps{
		Monitor:   mon,
		Series:    series.NewRandom(),
		Assistant: a.newAssistant(),
		Sessions:  genai.NewSessions(a.Config.Coach.SessionTTL, a.Config.Coach.MaxHistory),
		Hub:       hub,
		Window:    window,
		Locale:    a.Config.Scoring.Locale,
	}, a.Logger)

	tasks := map[string]func(context.Context) error{
		"service": svc.Run,
		"http":    server.Run,
		"stream": func(ctx context.Context) error {
			hub.Run(ctx)
			return nil
		},
	}
	if a.Config.MQTT.Enabled {
		tasks["mqtt"] = ingest.NewSubscriber(a.Config.MQTT, mon, a.Logger).Run
	}
	if a.Config.Overrides.Enabled {
		tasks["overrides"] = overrides.NewWatcher(a.Config.Overrides.Path, mon, a.Logger).Run
	}

	a.Logger.Info().Int("tasks", len(tasks)).Msg("starting healthguard")
	err = runAll(ctx, tasks)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("healthguard stopped")
	return nil
}

// runAll runs every task until ctx is done or one of them fails; the first
// failure cancels the rest.
func runAll(ctx context.Context, tasks map[string]func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for name, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
				once.Do(func() {
					firstErr = fmt.Errorf("%s: %w", name, err)
					cancel()
				})
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// ExportOptions select what Export writes.
type ExportOptions struct {
	Dir     string
	Metrics []string
	CSV     bool
	PNG     bool
	XLSX    bool
	Seed    uint64
}

// ShowOptions configure the show command.
type ShowOptions struct {
	JSON bool
}

// ScoreOptions configure a one-off evaluation.
type ScoreOptions struct {
	Metrics scoring.Metrics
	Locale  string
	Explain bool
	JSON    bool
}
