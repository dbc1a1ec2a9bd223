package metrics

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleSource exposes the internal metrics of a Pebble database.
type PebbleSource interface {
	Metrics() *pebble.Metrics
}

// PebbleCollector exports storage engine metrics of one Pebble-backed
// database, labeled with the database address.
type PebbleCollector struct {
	src PebbleSource

	compactions   *prometheus.Desc
	compactDebt   *prometheus.Desc
	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc
	walFiles      *prometheus.Desc
	walSize       *prometheus.Desc
	walBytesIn    *prometheus.Desc
	diskUsage     *prometheus.Desc
}

// NewPebbleCollector creates a collector for src.
func NewPebbleCollector(address string, src PebbleSource) *PebbleCollector {
	labels := prometheus.Labels{"db": address}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pebble", name), help, nil, labels)
	}
	return &PebbleCollector{
		src:           src,
		compactions:   desc("compactions_total", "Compactions performed by the storage engine."),
		compactDebt:   desc("compaction_debt_bytes", "Estimated bytes still to be compacted."),
		memtableSize:  desc("memtable_size_bytes", "Bytes allocated by memtables."),
		memtableCount: desc("memtables", "Number of memtables."),
		walFiles:      desc("wal_files", "Live WAL files."),
		walSize:       desc("wal_size_bytes", "Size of live WAL data."),
		walBytesIn:    desc("wal_bytes_in_total", "Logical bytes written to the WAL."),
		diskUsage:     desc("disk_usage_bytes", "Disk space used by the database."),
	}
}

// Describe implements prometheus.Collector.
func (c *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.compactions
	ch <- c.compactDebt
	ch <- c.memtableSize
	ch <- c.memtableCount
	ch <- c.walFiles
	ch <- c.walSize
	ch <- c.walBytesIn
	ch <- c.diskUsage
}

// Collect implements prometheus.Collector.
func (c *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()
	if m == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.compactions, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(c.compactDebt, prometheus.GaugeValue, float64(m.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(c.memtableSize, prometheus.GaugeValue, float64(m.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(c.memtableCount, prometheus.GaugeValue, float64(m.MemTable.Count))
	ch <- prometheus.MustNewConstMetric(c.walFiles, prometheus.GaugeValue, float64(m.WAL.Files))
	ch <- prometheus.MustNewConstMetric(c.walSize, prometheus.GaugeValue, float64(m.WAL.Size))
	ch <- prometheus.MustNewConstMetric(c.walBytesIn, prometheus.CounterValue, float64(m.WAL.BytesIn))
	ch <- prometheus.MustNewConstMetric(c.diskUsage, prometheus.GaugeValue, float64(m.DiskSpaceUsage()))
}
