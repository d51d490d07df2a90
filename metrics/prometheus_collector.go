package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryCollector adapts a Registry to prometheus.Collector, letting a
// standard prometheus.Registerer (and promhttp.Handler) expose every
// counter, gauge, and histogram tracked by the registry without each one
// needing its own prometheus.* declaration.
type RegistryCollector struct {
	registry  *Registry
	namespace string
}

// NewRegistryCollector wraps registry for export under the given namespace
// prefix (may be empty).
func NewRegistryCollector(registry *Registry, namespace string) *RegistryCollector {
	return &RegistryCollector{registry: registry, namespace: namespace}
}

// Describe implements prometheus.Collector. Metric names are dynamic, so no
// descriptors are sent up front; Collect sends unchecked metrics instead.
func (c *RegistryCollector) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector by snapshotting the registry and
// emitting one gauge per scalar value (histograms expand into count/sum/
// min/max/mean gauges).
func (c *RegistryCollector) Collect(ch chan<- prometheus.Metric) {
	for name, v := range c.registry.Snapshot() {
		switch val := v.(type) {
		case int64:
			c.emit(ch, name, float64(val))
		case map[string]interface{}:
			for field, fv := range val {
				var f float64
				switch x := fv.(type) {
				case float64:
					f = x
				case int64:
					f = float64(x)
				default:
					continue
				}
				c.emit(ch, name+"_"+field, f)
			}
		}
	}
}

func (c *RegistryCollector) emit(ch chan<- prometheus.Metric, name string, value float64) {
	fqName := sanitizeMetricName(name)
	if c.namespace != "" {
		fqName = c.namespace + "_" + fqName
	}
	desc := prometheus.NewDesc(fqName, name, nil, nil)
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value)
}

// sanitizeMetricName replaces characters prometheus metric names disallow.
func sanitizeMetricName(name string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(name)
}
