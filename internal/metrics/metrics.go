package metrics

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the counters of one adapter run. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	records      *prometheus.CounterVec
	sinkFailures *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	heartbeats   *prometheus.CounterVec
	faults       *prometheus.CounterVec
	runSuccess   prometheus.Gauge
}

// New creates run metrics on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_records_total",
				Help: "Diagnostic records submitted, by level",
			},
			[]string{"level"},
		),
		sinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_sink_failures_total",
				Help: "Records a sink failed to deliver",
			},
			[]string{"sink"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_task_duration_seconds",
				Help:    "Wall time of each task invocation",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"task"},
		),
		heartbeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_heartbeat_outcomes_total",
				Help: "Liveness pings by outcome",
			},
			[]string{"outcome"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_faults_total",
				Help: "Faults seen by the interceptor, by trigger",
			},
			[]string{"trigger"},
		),
		runSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adapter_run_success",
				Help: "1 if the last run completed successfully, 0 otherwise",
			},
		),
	}

	m.registry.MustRegister(m.records, m.sinkFailures, m.taskDuration, m.heartbeats, m.faults, m.runSuccess)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordSubmitted(level string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(level).Inc()
}

func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) ObserveTask(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *Metrics) Heartbeat(outcome string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Fault(trigger string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(trigger).Inc()
}

func (m *Metrics) RunFinished(success bool) {
	if m == nil {
		return
	}
	if success {
		m.runSuccess.Set(1)
	} else {
		m.runSuccess.Set(0)
	}
}

// Push sends the registry to a Pushgateway under job with the given
// grouping labels.
func (m *Metrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if m == nil || url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(m.registry)
	for name, value := range grouping {
		if value != "" {
			pusher = pusher.Grouping(name, value)
		}
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// WriteTextfile writes the registry in text exposition format, replacing
// path atomically so a node exporter never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create textfile: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write textfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close textfile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to install textfile: %w", err)
	}
	return nil
}
