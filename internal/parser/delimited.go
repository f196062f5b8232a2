package parser

import (
	"math"
	"strconv"
	"strings"

	"groundstation/internal/models"
)

// Mode selects how a delimited line is matched against the token grammar.
type Mode int

const (
	// ModeStrict requires the full IMU+environment sequence, in order.
	ModeStrict Mode = iota
	// ModeLenient extracts every recognised token and skips the rest.
	ModeLenient
)

func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}
	return "strict"
}

type tokenSpec struct {
	field models.Field
	unit  string
}

var tokenSpecs = map[string]tokenSpec{
	"T":   {models.FieldTemperature, "C"},
	"H":   {models.FieldHumidity, "%"},
	"P":   {models.FieldPressure, "hPa"},
	"LAT": {models.FieldLatitude, ""},
	"LON": {models.FieldLongitude, ""},
	"AX":  {models.FieldAX, ""},
	"AY":  {models.FieldAY, ""},
	"AZ":  {models.FieldAZ, ""},
	"GX":  {models.FieldGX, ""},
	"GY":  {models.FieldGY, ""},
	"GZ":  {models.FieldGZ, ""},
	"MX":  {models.FieldMX, ""},
	"MY":  {models.FieldMY, ""},
	"MZ":  {models.FieldMZ, ""},
}

// StrictSequence is the token order the combined sensor line always carries.
var StrictSequence = []string{"T", "P", "AX", "AY", "AZ", "GX", "GY", "GZ", "MX", "MY", "MZ"}

type token struct {
	key   string
	value string
	raw   string
}

// splitTokens breaks a line on commas. Blank pieces are dropped so that a
// trailing comma does not count as a token.
func splitTokens(line string) []token {
	pieces := strings.Split(line, ",")
	tokens := make([]token, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		key, value, found := strings.Cut(piece, ":")
		if !found {
			tokens = append(tokens, token{raw: piece})
			continue
		}
		tokens = append(tokens, token{
			key:   strings.TrimSpace(key),
			value: strings.TrimSpace(value),
			raw:   piece,
		})
	}
	return tokens
}

// decodeValue parses "23.50C" for a token whose unit is "C". The unit suffix
// is optional.
func decodeValue(value, unit string) (float64, bool) {
	if unit != "" {
		value = strings.TrimSpace(strings.TrimSuffix(value, unit))
	}
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDelimited parses a line of comma separated KEY:value[unit] tokens.
func ParseDelimited(line string, mode Mode) (models.Reading, error) {
	tokens := splitTokens(line)
	if len(tokens) == 0 {
		return models.Reading{}, malformed("", "empty line")
	}
	if mode == ModeLenient {
		return parseLenient(tokens)
	}
	return parseStrict(tokens)
}

func parseStrict(tokens []token) (models.Reading, error) {
	var reading models.Reading

	for i, key := range StrictSequence {
		if i >= len(tokens) {
			return models.Reading{}, malformed(key, "missing")
		}
		tok := tokens[i]
		if tok.key != key {
			return models.Reading{}, malformed(key, "expected at position %d, got %q", i+1, tok.raw)
		}
		spec := tokenSpecs[key]
		v, ok := decodeValue(tok.value, spec.unit)
		if !ok {
			return models.Reading{}, malformed(key, "value %q is not numeric", tok.value)
		}
		reading.Set(spec.field, v)
	}

	if len(tokens) > len(StrictSequence) {
		extra := tokens[len(StrictSequence)]
		return models.Reading{}, malformed(extra.raw, "unexpected trailing token")
	}

	return reading, nil
}

func parseLenient(tokens []token) (models.Reading, error) {
	var reading models.Reading
	seen := make(map[string]bool, len(tokens))

	for _, tok := range tokens {
		spec, known := tokenSpecs[tok.key]
		if !known || seen[tok.key] {
			continue
		}
		v, ok := decodeValue(tok.value, spec.unit)
		if !ok {
			continue
		}
		seen[tok.key] = true
		reading.Set(spec.field, v)
	}

	if reading.IsEmpty() {
		return models.Reading{}, malformed("", "no recognised tokens")
	}
	return reading, nil
}

// FormatDelimited renders the fields of r that belong to the token grammar,
// strict sequence first. precision < 0 uses the shortest exact representation.
func FormatDelimited(r models.Reading, precision int) string {
	parts := make([]string, 0, len(tokenSpecs))
	emit := func(key string) {
		spec := tokenSpecs[key]
		v := r.Get(spec.field)
		if v == nil {
			return
		}
		parts = append(parts, key+":"+strconv.FormatFloat(*v, 'f', precision, 64)+spec.unit)
	}

	for _, key := range StrictSequence {
		emit(key)
	}
	for _, key := range []string{"H", "LAT", "LON"} {
		emit(key)
	}
	return strings.Join(parts, ", ")
}
