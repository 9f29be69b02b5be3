package mqtmodels

import "fmt"

// Metric names one measured quantity of a meteo station
type Metric string

const (
	MetricTemperature           Metric = "temperature"
	MetricHumidity              Metric = "humidity"
	MetricWindSpeed             Metric = "wind_speed"
	MetricRainfall              Metric = "rainfall"
	MetricWindDirectionDegrees  Metric = "wind_direction_degrees"
	MetricWindDirectionVoltages Metric = "wind_direction_voltages"
	MetricDust                  Metric = "dust"
	MetricPressure              Metric = "pressure"
	MetricAltitude              Metric = "altitude"
)

// AllMetrics is the series set created for every registered chip.
var AllMetrics = []Metric{
	MetricTemperature,
	MetricHumidity,
	MetricWindSpeed,
	MetricRainfall,
	MetricWindDirectionDegrees,
	MetricWindDirectionVoltages,
	MetricDust,
	MetricPressure,
	MetricAltitude,
}

// inboundFields maps reading body fields to series metrics. Firmware sends
// the voltage under the singular name; the series is created plural.
var inboundFields = map[string]Metric{
	"temperature":             MetricTemperature,
	"humidity":                MetricHumidity,
	"wind_speed":              MetricWindSpeed,
	"rainfall":                MetricRainfall,
	"wind_direction_degrees":  MetricWindDirectionDegrees,
	"wind_direction_voltage":  MetricWindDirectionVoltages,
	"wind_direction_voltages": MetricWindDirectionVoltages,
	"dust":                    MetricDust,
	"pressure":                MetricPressure,
	"altitude":                MetricAltitude,
}

// MetricForField returns the metric a reading field is stored under
func MetricForField(field string) (Metric, bool) {
	m, ok := inboundFields[field]
	return m, ok
}

// SeriesKey returns the colon-delimited series key for a chip metric
func SeriesKey(chipID string, metric Metric) string {
	return fmt.Sprintf("sensor:%s:%s", chipID, metric)
}
