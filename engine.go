package storegate

import (
	"github.com/kaelgrist/storegate/mailer"
	"github.com/kaelgrist/storegate/tags"
)

// Engine defines a public type used by storegate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// Construct one through [Builder.Build]; a zero Engine is not usable.
type Engine struct {
	config       Config
	accountStore *accountStore
	deviceStore  *deviceStore
	otpStore     *otpStore
	issueLimiter *issueLimiter
	audit        *auditDispatcher
	metrics      *Metrics
	sender       mailer.Sender
	tagMutator   tags.Mutator
}

// Close flushes and stops the audit dispatcher. It does not close the Redis
// client, which the engine does not own.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
