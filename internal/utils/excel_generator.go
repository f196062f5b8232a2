package utils

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"groundstation/internal/models"
)

const telemetrySheet = "Telemetry"

// CreateExcelFile writes records to an xlsx workbook: one data sheet with a
// temperature chart, plus an Info sheet. Absent values are left blank.
func CreateExcelFile(filepath string, records []models.TelemetryRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", telemetrySheet); err != nil {
		return err
	}

	headers := append([]string{"ID", "Timestamp", "Source"}, fieldHeaders()...)
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(telemetrySheet, cell, header); err != nil {
			return err
		}
	}

	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}

	for rowIdx, record := range records {
		row := rowIdx + 2

		f.SetCellValue(telemetrySheet, fmt.Sprintf("A%d", row), record.ID)
		f.SetCellValue(telemetrySheet, fmt.Sprintf("B%d", row), record.RecordedAt.Format(time.RFC3339))
		f.SetCellValue(telemetrySheet, fmt.Sprintf("C%d", row), record.Source)

		for i, field := range models.AllFields {
			v := record.Get(field)
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+4, row)
			f.SetCellValue(telemetrySheet, cell, *v)
			f.SetCellStyle(telemetrySheet, cell, cell, numberStyle)
		}
	}

	for i := 1; i <= len(headers); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(telemetrySheet, colName, colName, 14)
	}
	f.SetColWidth(telemetrySheet, "B", "B", 26)

	highTemp := conditionalFill(f, "#FFCCCC")
	lowTemp := conditionalFill(f, "#CCE5FF")
	if highTemp != nil && lowTemp != nil {
		tempRange := fmt.Sprintf("D2:D%d", len(records)+1)
		if err := f.SetConditionalFormat(telemetrySheet, tempRange, []excelize.ConditionalFormatOptions{
			{Type: "cell", Criteria: ">", Value: "60", Format: highTemp},
			{Type: "cell", Criteria: "<", Value: "-20", Format: lowTemp},
		}); err != nil {
			return err
		}
	}

	if len(records) > 1 {
		if err := addTemperatureChart(f, len(records)); err != nil {
			return err
		}
	}

	if err := writeInfoSheet(f, records); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.SaveAs(filepath)
}

func addTemperatureChart(f *excelize.File, rows int) error {
	last := rows + 1
	return f.AddChart(telemetrySheet, "S2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       "Temperature",
				Categories: fmt.Sprintf("%s!$B$2:$B$%d", telemetrySheet, last),
				Values:     fmt.Sprintf("%s!$D$2:$D$%d", telemetrySheet, last),
			},
		},
		Title:     []excelize.RichTextRun{{Text: "Temperature Over Time"}},
		XAxis:     excelize.ChartAxis{MajorGridLines: true},
		YAxis:     excelize.ChartAxis{MajorGridLines: true},
		Dimension: excelize.ChartDimension{Width: 640, Height: 400},
	})
}

func writeInfoSheet(f *excelize.File, records []models.TelemetryRecord) error {
	if _, err := f.NewSheet("Info"); err != nil {
		return err
	}

	rows := [][2]interface{}{
		{"Report Generated", time.Now().UTC().Format(time.RFC3339)},
		{"Total Records", len(records)},
	}
	if len(records) > 0 {
		// records arrive newest first
		rows = append(rows, [2]interface{}{"Time Range", fmt.Sprintf("%s to %s",
			records[len(records)-1].RecordedAt.Format(time.RFC3339),
			records[0].RecordedAt.Format(time.RFC3339))})
	}
	for _, field := range []models.Field{models.FieldTemperature, models.FieldHumidity, models.FieldPressure} {
		if lo, hi, ok := fieldRange(records, field); ok {
			rows = append(rows, [2]interface{}{
				fmt.Sprintf("%s range", field),
				fmt.Sprintf("%.2f - %.2f", lo, hi),
			})
		}
	}

	for i, row := range rows {
		if err := f.SetCellValue("Info", fmt.Sprintf("A%d", i+1), row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue("Info", fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return err
		}
	}
	return nil
}

// fieldRange returns min and max of field over the records that report it.
func fieldRange(records []models.TelemetryRecord, field models.Field) (float64, float64, bool) {
	var lo, hi float64
	found := false
	for _, r := range records {
		v := r.Get(field)
		if v == nil {
			continue
		}
		if !found || *v < lo {
			lo = *v
		}
		if !found || *v > hi {
			hi = *v
		}
		found = true
	}
	return lo, hi, found
}

func conditionalFill(f *excelize.File, color string) *int {
	style, err := f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
	if err != nil {
		return nil
	}
	return &style
}
