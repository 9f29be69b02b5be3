package implementation

import (
	"sort"
	"strconv"
	"strings"

	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

// Dialect selects the placeholder style of the registry database
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// rebind rewrites ? placeholders into $n for postgres
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sortedMetrics returns the keys of values in a stable order
func sortedMetrics(values map[mqtmodels.Metric]float64) []mqtmodels.Metric {
	metrics := make([]mqtmodels.Metric, 0, len(values))
	for m := range values {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })
	return metrics
}
