package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"healthguard/internal/monitor"
	"healthguard/internal/report"
)

const (
	sheetSnapshot = "Snapshot"
	sheetSeries   = "Series"
	sheetWeekly   = "Weekly"
)

// WriteWorkbook writes a workbook with the snapshot, the hourly series side
// by side and the weekly averages.
func WriteWorkbook(w io.Writer, d monitor.Dashboard, tables []Table, weekly report.Weekly) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{sheetSnapshot, snapshotRows(d)},
		{sheetSeries, seriesRows(tables)},
		{sheetWeekly, weeklyRows(weekly)},
	}
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		if err := writeRows(f, sh.name, sh.rows, headerStyle); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, r+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func snapshotRows(d monitor.Dashboard) [][]any {
	rows := [][]any{
		{"Field", "Value"},
		{"Score", d.Score},
		{"Risk status", string(d.RiskStatus)},
		{"Status message", d.StatusMessage},
		{"Heart rate (BPM)", d.HeartRate},
		{"Heart rate min (BPM)", d.HeartRateMin},
		{"Heart rate max (BPM)", d.HeartRateMax},
		{"Blood pressure", d.BloodPressure},
		{"Blood oxygen (%)", d.BloodOxygen},
		{"Temperature (°C)", d.Temperature},
		{"Stress level", d.StressLevel},
		{"Steps", d.StepCount},
		{"Steps goal", d.StepsGoal},
		{"Calories (kcal)", d.Calories},
		{"Active minutes", d.ActiveMinutes},
		{"Distance (km)", d.DistanceKm},
		{"Sleep (h)", d.SleepHours},
		{"Sleep quality", d.SleepQuality},
	}
	for _, p := range d.Radar {
		rows = append(rows, []any{"Radar: " + p.Label, p.Value})
	}
	return rows
}

// seriesRows lays the tables out as one column per metric. All day series
// share the same hourly timestamps.
func seriesRows(tables []Table) [][]any {
	header := []any{"Time"}
	for _, t := range tables {
		header = append(header, axisName(t.Spec))
	}
	rows := [][]any{header}
	if len(tables) == 0 {
		return rows
	}
	for i, p := range tables[0].Points {
		row := []any{p.Time.Format("2006-01-02 15:04")}
		for _, t := range tables {
			if i < len(t.Points) {
				row = append(row, roundValue(t.Points[i].Value))
			} else {
				row = append(row, nil)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func weeklyRows(w report.Weekly) [][]any {
	sleep, _ := w.SleepHours.Float64()
	return [][]any{
		{"Field", "Value"},
		{"Average score", w.Score},
		{"Average steps", w.Steps},
		{"Average sleep (h)", sleep},
		{"Samples", w.Samples},
	}
}
