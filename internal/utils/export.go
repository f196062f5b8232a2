package utils

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"groundstation/internal/models"
)

func fieldHeaders() []string {
	headers := make([]string, 0, len(models.AllFields))
	for _, f := range models.AllFields {
		headers = append(headers, string(f))
	}
	return headers
}

// SaveAsCSV writes records with one column per schema field. Absent values
// are written as empty cells.
func SaveAsCSV(filepath string, records []models.TelemetryRecord) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := append([]string{"id", "recorded_at", "source"}, fieldHeaders()...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			strconv.FormatUint(uint64(record.ID), 10),
			record.RecordedAt.Format(time.RFC3339Nano),
			record.Source,
		}
		for _, f := range models.AllFields {
			if v := record.Get(f); v != nil {
				row = append(row, strconv.FormatFloat(*v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveAsJSON writes data as an indented JSON document.
func SaveAsJSON(filepath string, data interface{}) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, raw, 0644)
}
