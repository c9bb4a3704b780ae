package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"stockledger/internal/infrastructure/storage/postgres"
)

// PoolCollector reports pgx pool statistics at scrape time.
type PoolCollector struct {
	pool *postgres.Pool

	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	max      *prometheus.Desc
}

// NewPoolCollector creates a collector for the pool.
func NewPoolCollector(pool *postgres.Pool) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, nil)
	}
	return &PoolCollector{
		pool:     pool,
		total:    desc("conns_total", "Open connections."),
		idle:     desc("conns_idle", "Idle connections."),
		acquired: desc("conns_acquired", "Connections in use."),
		max:      desc("conns_max", "Configured connection limit."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.max
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns))
}
