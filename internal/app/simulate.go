package app

import (
	"context"
	"errors"
	"fmt"

	"healthguard/internal/alerting"
	"healthguard/internal/monitor"
)

// SimulateAlert 将给定补丁应用到初始面板上，并走一遍告警流程。
func (a *App) SimulateAlert(ctx context.Context, patch monitor.Patch) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	mon, err := a.newMonitor()
	if err != nil {
		return err
	}
	change, err := mon.Apply("simulate", patch)
	if err != nil {
		return err
	}
	if !change.Escalated() {
		return fmt.Errorf("patch does not raise the risk status (%s -> %s)", change.Previous.RiskStatus, change.Current.RiskStatus)
	}

	note := alerting.FromChange(change, a.Config.Alerting.Channels)
	if a.Config.Alerting.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.Alerting.Timeout)
		defer cancel()
	}
	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("dispatch alert: %w", err)
	}
	fmt.Fprintf(a.Out, "alert dispatched: %s -> %s, score %d\n", change.Previous.RiskStatus, change.Current.RiskStatus, change.Current.Score)
	return nil
}
