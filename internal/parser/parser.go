// Package parser turns raw device payloads into telemetry readings.
//
// Two wire formats exist: a comma separated KEY:value[unit] line sent by the
// LoRa receiver, and a flat JSON object sent by the GPS uplink. Parsers are
// pure functions and never touch storage.
package parser

import (
	"fmt"

	"groundstation/internal/models"
)

// Source tags the upstream a record came from.
type Source string

const (
	SourceLoRa      Source = "lora"
	SourceGPS       Source = "gps"
	SourceSimulator Source = "simulator"
)

type Format int

const (
	WireDelimited Format = iota
	WireStructured
)

// Format reports the wire format a source speaks.
func (s Source) Format() (Format, error) {
	switch s {
	case SourceLoRa, SourceSimulator:
		return WireDelimited, nil
	case SourceGPS:
		return WireStructured, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSource, string(s))
}

// Parse dispatches raw to the parser for source. mode only applies to
// delimited sources.
func Parse(source Source, raw []byte, mode Mode) (models.Reading, error) {
	format, err := source.Format()
	if err != nil {
		return models.Reading{}, err
	}
	if format == WireStructured {
		return ParseStructured(raw)
	}
	return ParseDelimited(string(raw), mode)
}
