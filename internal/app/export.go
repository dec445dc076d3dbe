package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"healthguard/internal/export"
	"healthguard/internal/monitor"
	"healthguard/internal/overrides"
	"healthguard/internal/report"
	"healthguard/internal/series"
)

// Export renders the current dashboard's day series as CSV, PNG charts
// and/or an XLSX workbook into opts.Dir.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if !opts.CSV && !opts.PNG && !opts.XLSX {
		return errors.New("at least one of --csv, --png or --xlsx must be set")
	}
	if opts.Dir == "" {
		opts.Dir = a.Config.Export.Dir
	}

	mon, err := a.loadMonitor()
	if err != nil {
		return err
	}
	d, _ := mon.Current()

	gen := series.NewRandom()
	if opts.Seed != 0 {
		gen = series.New(opts.Seed)
	}
	tables, err := export.Tables(gen, d, opts.Metrics)
	if err != nil {
		return err
	}

	stamp := time.Now().Format("20060102-150405")
	path := func(name string) string {
		return filepath.Join(opts.Dir, "healthguard-"+stamp+"-"+name)
	}
	written := make([]string, 0, len(tables)+3)

	if opts.CSV {
		p := path("series.csv")
		if err := export.WriteFile(p, func(w io.Writer) error { return export.WriteCSV(w, tables) }); err != nil {
			return err
		}
		written = append(written, p)
	}

	if opts.PNG {
		width, height := a.Config.Export.ChartWidth, a.Config.Export.ChartHeight
		for _, t := range tables {
			p := path(t.Spec.Name + ".png")
			if err := export.WriteFile(p, func(w io.Writer) error { return export.RenderSeries(w, t, width, height) }); err != nil {
				return err
			}
			written = append(written, p)
		}
		p := path("profile.png")
		if err := export.WriteFile(p, func(w io.Writer) error { return export.RenderRadar(w, d, width, height) }); err != nil {
			return err
		}
		written = append(written, p)
	}

	if opts.XLSX {
		p := path("report.xlsx")
		weekly := report.FromDashboard(d)
		if err := export.WriteFile(p, func(w io.Writer) error { return export.WriteWorkbook(w, d, tables, weekly) }); err != nil {
			return err
		}
		written = append(written, p)
	}

	a.Logger.Info().Int("metrics", len(tables)).Strs("files", written).Msg("export finished")
	return nil
}

// loadMonitor returns a monitor holding the scored seed. With overrides
// enabled the file is applied first, so one-shot commands see what the
// service would start with.
func (a *App) loadMonitor() (*monitor.Monitor, error) {
	mon, err := a.newMonitor()
	if err != nil {
		return nil, err
	}
	if a.Config.Overrides.Enabled {
		if err := overrides.NewWatcher(a.Config.Overrides.Path, mon, a.Logger).ApplyFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("overrides not applied")
		}
	}
	return mon, nil
}
