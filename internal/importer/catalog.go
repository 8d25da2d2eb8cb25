package importer

import (
	"fmt"
	"slices"
	"strings"
)

// Metric describes a measurable test and the range of plausible values.
// Values outside [Min, Max] are almost always typos or unit mix-ups.
type Metric struct {
	Name        string
	Label       string
	Units       string
	Min         float64
	Max         float64
	AllowsFlyIn bool
}

// Metrics is the catalog of accepted metrics.
var Metrics = []Metric{
	{Name: "FLY10_TIME", Label: "10-Yard Fly Time", Units: "s", Min: 1.00, Max: 1.70, AllowsFlyIn: true},
	{Name: "VERTICAL_JUMP", Label: "Vertical Jump", Units: "in", Min: 12, Max: 32},
	{Name: "AGILITY_505", Label: "5-0-5 Agility", Units: "s", Min: 2.1, Max: 3.5},
	{Name: "RSI", Label: "Reactive Strength Index", Units: "", Min: 1.0, Max: 4.5},
	{Name: "T_TEST", Label: "T-Test", Units: "s", Min: 7.5, Max: 13.5},
}

// LookupMetric finds a metric by name. "vertical jump", "Vertical-Jump" and
// "VERTICAL_JUMP" are the same metric.
func LookupMetric(name string) (Metric, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	i := slices.IndexFunc(Metrics, func(m Metric) bool { return m.Name == key })
	if i < 0 {
		return Metric{}, false
	}
	return Metrics[i], true
}

// CheckRange returns an error when v is outside the metric's plausible range.
func (m Metric) CheckRange(v float64) error {
	if v < m.Min || v > m.Max {
		return fmt.Errorf("value %g is outside the plausible range for %s (%g to %g%s)",
			v, m.Name, m.Min, m.Max, m.unitSuffix())
	}
	return nil
}

func (m Metric) unitSuffix() string {
	if m.Units == "" {
		return ""
	}
	return " " + m.Units
}

// MetricNames lists the accepted metric names.
func MetricNames() []string {
	names := make([]string, len(Metrics))
	for i, m := range Metrics {
		names[i] = m.Name
	}
	return names
}
