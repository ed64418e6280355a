// Package adapter provides adapters for plugin-shmdata integration with external systems.
package adapter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/plugin-shmdata/pkg/shm"
)

const namespace = "plugin_shm"

// Collector exports the regions of a Table as Prometheus gauges.
type Collector struct {
	table    *shm.Table
	open     *prometheus.Desc
	size     *prometheus.Desc
	reserved *prometheus.Desc
	clears   *prometheus.Desc
	cursor   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading t on every scrape.
func NewCollector(t *shm.Table) *Collector {
	labels := []string{"handle", "name"}
	return &Collector{
		table: t,
		open: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "regions_open"),
			"Number of shared memory regions mapped by the table.", nil, nil),
		size: prometheus.NewDesc(prometheus.BuildFQName(namespace, "region", "size_bytes"),
			"Mapped region size including the header.", labels, nil),
		reserved: prometheus.NewDesc(prometheus.BuildFQName(namespace, "region", "reserved_bytes"),
			"Size of the region data buffer.", labels, nil),
		clears: prometheus.NewDesc(prometheus.BuildFQName(namespace, "region", "clear_count"),
			"Clear counter stored in the region header.", labels, nil),
		cursor: prometheus.NewDesc(prometheus.BuildFQName(namespace, "region", "current_pointer"),
			"Write cursor stored in the region header.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.size
	ch <- c.reserved
	ch <- c.clears
	ch <- c.cursor
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.table.Stats()
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(len(stats)))
	for _, s := range stats {
		h := s.Handle.String()
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.TotalSize), h, s.Name)
		ch <- prometheus.MustNewConstMetric(c.reserved, prometheus.GaugeValue, float64(s.ReservedSize), h, s.Name)
		ch <- prometheus.MustNewConstMetric(c.clears, prometheus.GaugeValue, float64(s.ClearCount), h, s.Name)
		ch <- prometheus.MustNewConstMetric(c.cursor, prometheus.GaugeValue, float64(s.CurrentPointer), h, s.Name)
	}
}
