package models

import (
	"time"

	"gorm.io/datatypes"
)

// Field names one column of the unified telemetry schema.
type Field string

const (
	FieldTemperature Field = "temperature"
	FieldHumidity    Field = "humidity"
	FieldPressure    Field = "pressure"
	FieldLatitude    Field = "latitude"
	FieldLongitude   Field = "longitude"
	FieldGX          Field = "gx"
	FieldGY          Field = "gy"
	FieldGZ          Field = "gz"
	FieldAX          Field = "ax"
	FieldAY          Field = "ay"
	FieldAZ          Field = "az"
	FieldMX          Field = "mx"
	FieldMY          Field = "my"
	FieldMZ          Field = "mz"
)

// AllFields lists the schema columns in display order.
var AllFields = []Field{
	FieldTemperature, FieldHumidity, FieldPressure,
	FieldLatitude, FieldLongitude,
	FieldGX, FieldGY, FieldGZ,
	FieldAX, FieldAY, FieldAZ,
	FieldMX, FieldMY, FieldMZ,
}

// OrientationFields are the columns that together make up one orientation sample.
var OrientationFields = []Field{FieldGX, FieldGY, FieldGZ}

// Reading is the set of sensor values one source reported. Every value is
// independently nullable: nil means "not reported", never zero.
type Reading struct {
	Temperature *float64 `gorm:"column:temperature" json:"temperature"`
	Humidity    *float64 `gorm:"column:humidity" json:"humidity"`
	Pressure    *float64 `gorm:"column:pressure" json:"pressure"`
	Latitude    *float64 `gorm:"column:latitude" json:"latitude"`
	Longitude   *float64 `gorm:"column:longitude" json:"longitude"`
	GX          *float64 `gorm:"column:gx" json:"gx"`
	GY          *float64 `gorm:"column:gy" json:"gy"`
	GZ          *float64 `gorm:"column:gz" json:"gz"`
	AX          *float64 `gorm:"column:ax" json:"ax"`
	AY          *float64 `gorm:"column:ay" json:"ay"`
	AZ          *float64 `gorm:"column:az" json:"az"`
	MX          *float64 `gorm:"column:mx" json:"mx"`
	MY          *float64 `gorm:"column:my" json:"my"`
	MZ          *float64 `gorm:"column:mz" json:"mz"`
}

func (r *Reading) slot(f Field) **float64 {
	switch f {
	case FieldTemperature:
		return &r.Temperature
	case FieldHumidity:
		return &r.Humidity
	case FieldPressure:
		return &r.Pressure
	case FieldLatitude:
		return &r.Latitude
	case FieldLongitude:
		return &r.Longitude
	case FieldGX:
		return &r.GX
	case FieldGY:
		return &r.GY
	case FieldGZ:
		return &r.GZ
	case FieldAX:
		return &r.AX
	case FieldAY:
		return &r.AY
	case FieldAZ:
		return &r.AZ
	case FieldMX:
		return &r.MX
	case FieldMY:
		return &r.MY
	case FieldMZ:
		return &r.MZ
	}
	return nil
}

// Get returns the value of f, or nil when it was not reported or f is unknown.
func (r Reading) Get(f Field) *float64 {
	if p := r.slot(f); p != nil && *p != nil {
		v := **p
		return &v
	}
	return nil
}

// Set stores v for f. Unknown fields are ignored.
func (r *Reading) Set(f Field, v float64) {
	if p := r.slot(f); p != nil {
		*p = &v
	}
}

// Present returns the fields that carry a value, in schema order.
func (r Reading) Present() []Field {
	var out []Field
	for _, f := range AllFields {
		if r.Get(f) != nil {
			out = append(out, f)
		}
	}
	return out
}

func (r Reading) IsEmpty() bool {
	return len(r.Present()) == 0
}

// TelemetryRecord is one row of the append-only telemetry log.
type TelemetryRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RecordedAt time.Time      `gorm:"not null;index:idx_telemetry_recorded_at,sort:desc" json:"timestamp"`
	Source     string         `gorm:"type:varchar(64);not null;index" json:"source"`
	Reading    `gorm:"embedded"`
	RawPayload datatypes.JSON `json:"raw,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"-"`
}

func (TelemetryRecord) TableName() string { return "telemetry_records" }
