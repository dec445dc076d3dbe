package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthguard/internal/monitor"
	"healthguard/internal/scoring"
)

// Notification 封装告警上下文。
type Notification struct {
	At             time.Time          `json:"at"`
	Source         string             `json:"source"`
	PreviousStatus scoring.RiskStatus `json:"previous_status"`
	Status         scoring.RiskStatus `json:"status"`
	PreviousScore  int                `json:"previous_score"`
	Score          int                `json:"score"`
	Message        string             `json:"message"`
	Metrics        scoring.Metrics    `json:"metrics"`
	Channels       []string           `json:"channels,omitempty"`
	AdditionalMsg  string             `json:"additional_message,omitempty"`
}

// FromChange builds the notification for a monitor change.
func FromChange(c monitor.Change, channels []string) Notification {
	return Notification{
		At:             c.AppliedAt,
		Source:         c.Source,
		PreviousStatus: c.Previous.RiskStatus,
		Status:         c.Current.RiskStatus,
		PreviousScore:  c.Previous.Score,
		Score:          c.Current.Score,
		Message:        c.Current.StatusMessage,
		Metrics:        c.Current.Metrics,
		Channels:       channels,
	}
}

// Severity maps the risk tier onto webhook severities.
func (n Notification) Severity() string {
	switch n.Status {
	case scoring.RiskHigh:
		return "critical"
	case scoring.RiskMedium:
		return "warning"
	default:
		return "info"
	}
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers to all notifiers even when some fail.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[HealthGuard Alert]\n")
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.At.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Risk: %s -> %s\n", note.PreviousStatus, note.Status))
	builder.WriteString(fmt.Sprintf("Score: %d -> %d\n", note.PreviousScore, note.Score))
	builder.WriteString(fmt.Sprintf("Status: %s\n", note.Message))
	m := note.Metrics
	builder.WriteString(fmt.Sprintf("HR %d BPM, SpO2 %d%%, stress %d/100, sleep %.1fh, steps %d\n",
		m.HeartRate, m.BloodOxygen, m.StressLevel, m.SleepHours, m.StepCount))
	if note.Source != "" {
		builder.WriteString(fmt.Sprintf("Source: %s\n", note.Source))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*WebhookNotifier)(nil)
	_ Notifier = Multi(nil)
)
