package main

import (
	"github.com/prometheus/client_golang/prometheus"

	storegate "github.com/kaelgrist/storegate"
)

var metricNames = map[storegate.MetricID]string{
	storegate.MetricDeviceAllowed: "storegate_device_allowed_total",
	storegate.MetricDeviceDenied: "storegate_device_denied_total",
	storegate.MetricDeviceBound: "storegate_device_bound_total",
	storegate.MetricAccountProvisioned: "storegate_account_provisioned_total",
	storegate.MetricCodeIssued: "storegate_code_issued_total",
	storegate.MetricCodeReissued: "storegate_code_reissued_total",
	storegate.MetricCodeIssueThrottled: "storegate_code_issue_throttled_total",
	storegate.MetricCodeSendFailure: "storegate_code_send_failure_total",
	storegate.MetricVerifySuccess: "storegate_verify_success_total",
	storegate.MetricVerifyInvalid: "storegate_verify_invalid_total",
	storegate.MetricVerifyExpired: "storegate_verify_expired_total",
	storegate.MetricVerifyNotFound: "storegate_verify_not_found_total",
	storegate.MetricTagMutationFailure: "storegate_tag_mutation_failure_total",
	storegate.MetricStorageFailure: "storegate_storage_failure_total",
}

// engineCollector bridges the engine's in-process counters into the
// prometheus registry so /metrics reflects a live snapshot on every scrape.
type engineCollector struct {
	engine *storegate.Engine
	descs  map[storegate.MetricID]*prometheus.Desc
}

func newEngineCollector(engine *storegate.Engine) *engineCollector {
	descs := make(map[storegate.MetricID]*prometheus.Desc, len(metricNames))
	for id, name := range metricNames {
		descs[id] = prometheus.NewDesc(name, "storegate engine counter", nil, nil)
	}
	return &engineCollector{
		engine: engine,
		descs:  descs,
	}
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.engine.MetricsSnapshot()
	for id, desc := range c.descs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snapshot.Counters[id]))
	}
}
