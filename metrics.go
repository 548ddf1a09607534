package storegate

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by storegate APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricDeviceAllowed is an exported constant or variable used by the storefront gate engine.
	MetricDeviceAllowed MetricID = iota
	// MetricDeviceDenied is an exported constant or variable used by the storefront gate engine.
	MetricDeviceDenied
	// MetricDeviceBound is an exported constant or variable used by the storefront gate engine.
	MetricDeviceBound
	// MetricAccountProvisioned is an exported constant or variable used by the storefront gate engine.
	MetricAccountProvisioned
	// MetricCodeIssued is an exported constant or variable used by the storefront gate engine.
	MetricCodeIssued
	// MetricCodeReissued is an exported constant or variable used by the storefront gate engine.
	MetricCodeReissued
	// MetricCodeIssueThrottled is an exported constant or variable used by the storefront gate engine.
	MetricCodeIssueThrottled
	// MetricCodeSendFailure is an exported constant or variable used by the storefront gate engine.
	MetricCodeSendFailure
	// MetricVerifySuccess is an exported constant or variable used by the storefront gate engine.
	MetricVerifySuccess
	// MetricVerifyInvalid is an exported constant or variable used by the storefront gate engine.
	MetricVerifyInvalid
	// MetricVerifyExpired is an exported constant or variable used by the storefront gate engine.
	MetricVerifyExpired
	// MetricVerifyNotFound is an exported constant or variable used by the storefront gate engine.
	MetricVerifyNotFound
	// MetricTagMutationFailure is an exported constant or variable used by the storefront gate engine.
	MetricTagMutationFailure
	// MetricStorageFailure is an exported constant or variable used by the storefront gate engine.
	MetricStorageFailure
	// MetricCheckDeviceLatency is an exported constant or variable used by the storefront gate engine.
	MetricCheckDeviceLatency
	// MetricVerifyLatency is an exported constant or variable used by the storefront gate engine.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by storegate APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by storegate APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricCheckDeviceLatency && id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricCheckDeviceLatency, MetricVerifyLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
