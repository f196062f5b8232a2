package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"groundstation/internal/models"
)

var structuredKeys = []models.Field{
	models.FieldTemperature,
	models.FieldHumidity,
	models.FieldLatitude,
	models.FieldLongitude,
}

// ParseStructured parses a flat JSON object carrying any of temperature,
// humidity, latitude and longitude. Temperature and humidity fall back to 0
// when the device leaves the key out. An explicit null, and any missing
// location key, leaves the field absent.
func ParseStructured(raw []byte) (models.Reading, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return models.Reading{}, malformed("", "not a JSON object: %v", err)
	}
	if obj == nil {
		return models.Reading{}, malformed("", "not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.Reading{}, malformed("", "trailing data after object")
	}

	var reading models.Reading
	for _, key := range structuredKeys {
		value, ok := obj[string(key)]
		if !ok {
			if key == models.FieldTemperature || key == models.FieldHumidity {
				reading.Set(key, 0)
			}
			continue
		}
		if value == nil {
			continue
		}
		f, err := coerceNumber(value)
		if err != nil {
			return models.Reading{}, invalidNumeric(string(key), "%v", err)
		}
		reading.Set(key, f)
	}

	return reading, nil
}

func coerceNumber(value interface{}) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v := value.(type) {
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, errors.New("expected a number")
	}
	if err != nil {
		return 0, errors.New("expected a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("value is not finite")
	}
	return f, nil
}
