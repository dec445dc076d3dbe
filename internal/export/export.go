// Package export writes the dashboard and its day series to CSV, PNG charts
// and an XLSX workbook.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"healthguard/internal/monitor"
	"healthguard/internal/series"
)

// ErrNoMetrics is returned when an export selects no series.
var ErrNoMetrics = errors.New("no metrics selected")

// Table is one metric's day series together with its chart spec.
type Table struct {
	Spec   series.Spec
	Points series.Points
}

// Tables draws the series for names, or for every known metric when names
// is empty.
func Tables(gen *series.Generator, d monitor.Dashboard, names []string) ([]Table, error) {
	if len(names) == 0 {
		for _, s := range series.Specs() {
			names = append(names, s.Name)
		}
	}
	out := make([]Table, 0, len(names))
	for _, name := range names {
		pts, spec, err := gen.Metric(strings.TrimSpace(name), d)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		out = append(out, Table{Spec: spec, Points: pts})
	}
	if len(out) == 0 {
		return nil, ErrNoMetrics
	}
	return out, nil
}

// WriteCSV writes the tables in long form: one row per metric and hour.
func WriteCSV(w io.Writer, tables []Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"metric", "time", "value", "unit"}); err != nil {
		return err
	}
	for _, t := range tables {
		for _, p := range t.Points {
			record := []string{
				t.Spec.Name,
				p.Time.Format(time.RFC3339),
				decimal.NewFromFloat(p.Value).StringFixed(2),
				t.Spec.Unit,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// RenderSeries draws one table as a time-series line chart.
func RenderSeries(w io.Writer, t Table, width, height int) error {
	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	yAxis := chart.YAxis{
		Name:           axisName(t.Spec),
		ValueFormatter: valueFormatter,
	}
	if t.Spec.YMax > t.Spec.YMin {
		yAxis.Range = &chart.ContinuousRange{Min: t.Spec.YMin, Max: t.Spec.YMax}
	}

	graph := chart.Chart{
		Title:  t.Spec.Title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeHourValueFormatter,
		},
		YAxis: yAxis,
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    t.Spec.Title,
				XValues: t.Points.Times(),
				YValues: t.Points.Values(),
				Style: chart.Style{
					StrokeColor: hexColor(t.Spec.Color),
					StrokeWidth: 2,
				},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}

// RenderRadar draws the radar profile as a bar chart scaled to 0-100.
func RenderRadar(w io.Writer, d monitor.Dashboard, width, height int) error {
	bars := make([]chart.Value, 0, len(d.Radar))
	for _, p := range d.Radar {
		bars = append(bars, chart.Value{
			Label: p.Label,
			Value: p.Value * 100,
			Style: chart.Style{FillColor: hexColor("#a855f7"), StrokeColor: hexColor("#7e22ce")},
		})
	}

	graph := chart.BarChart{
		Title:      fmt.Sprintf("Health profile (score %d, %s)", d.Score, d.RiskStatus),
		Width:      width,
		Height:     height,
		BarWidth:   width / (2 * len(bars)),
		BarSpacing: width / (4 * len(bars)),
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Bars:       bars,
	}
	return graph.Render(chart.PNG, w)
}

func axisName(s series.Spec) string {
	if s.Unit == "" {
		return s.Title
	}
	return fmt.Sprintf("%s (%s)", s.Title, s.Unit)
}

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

// WriteFile creates path, including missing parent directories, and hands
// the file to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func roundValue(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
