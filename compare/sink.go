package compare

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Sink receives the outcome of every configuration of a run.
type Sink interface {
	Record(ctx context.Context, report Report) error
	PopulateFailed(ctx context.Context, configuration string, err error) error
}

type nopSink struct{}

// NopSink discards everything.
func NopSink() Sink { return nopSink{} }

func (nopSink) Record(context.Context, Report) error                 { return nil }
func (nopSink) PopulateFailed(context.Context, string, error) error { return nil }

const pushJob = "loracache_compare"

// PrometheusSink pushes gauges to a Pushgateway, grouped by configuration.
type PrometheusSink struct {
	url string

	equivalent     *prometheus.GaugeVec
	divergentKeys  *prometheus.GaugeVec
	corrections    *prometheus.GaugeVec
	populateFailed prometheus.Gauge
	lastRun        prometheus.Gauge
	registry       *prometheus.Registry
}

func NewPrometheusSink(url string) *PrometheusSink {
	s := &PrometheusSink{
		url: url,
		equivalent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "loracache",
			Name:      "kind_equivalent",
			Help:      "1 when the legacy and new engine agree on the kind",
		}, []string{"kind"}),
		divergentKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "loracache",
			Name:      "kind_divergent_keys",
			Help:      "Keys with unmatched rows after corrections",
		}, []string{"kind"}),
		corrections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "loracache",
			Name:      "kind_corrections",
			Help:      "Known legacy divergences corrected before comparing",
		}, []string{"kind", "correction"}),
		populateFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loracache",
			Name:      "populate_failed",
			Help:      "1 when populating either engine failed",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loracache",
			Name:      "compare_last_run_timestamp_seconds",
			Help:      "Unix time of the last comparison",
		}),
		registry: prometheus.NewRegistry(),
	}

	s.registry.MustRegister(s.equivalent, s.divergentKeys, s.corrections, s.populateFailed, s.lastRun)

	return s
}

func (s *PrometheusSink) Record(ctx context.Context, report Report) error {
	s.reset()
	s.populateFailed.Set(0)

	for _, k := range report.Kinds {
		kind := k.Kind.String()
		if k.Equivalent {
			s.equivalent.WithLabelValues(kind).Set(1)
		} else {
			s.equivalent.WithLabelValues(kind).Set(0)
		}
		s.divergentKeys.WithLabelValues(kind).Set(float64(len(k.Divergences)))
		s.corrections.WithLabelValues(kind, "never_ending_dropped").Set(float64(k.Corrections.NeverEndingDropped))
		s.corrections.WithLabelValues(kind, "never_ending_closed").Set(float64(k.Corrections.NeverEndingClosed))
		s.corrections.WithLabelValues(kind, "reopened_collapsed").Set(float64(k.Corrections.ReopenedCollapsed))
		s.corrections.WithLabelValues(kind, "dar_backfilled").Set(float64(k.Corrections.DARBackfilled))
	}

	return s.push(ctx, report.Configuration)
}

func (s *PrometheusSink) PopulateFailed(ctx context.Context, configuration string, _ error) error {
	s.reset()
	s.populateFailed.Set(1)

	return s.push(ctx, configuration)
}

func (s *PrometheusSink) reset() {
	s.equivalent.Reset()
	s.divergentKeys.Reset()
	s.corrections.Reset()
}

func (s *PrometheusSink) push(ctx context.Context, configuration string) error {
	s.lastRun.Set(float64(time.Now().Unix()))

	err := push.New(s.url, pushJob).
		Gatherer(s.registry).
		Grouping("configuration", configuration).
		PushContext(ctx)

	return errors.Wrap(err, "push metrics")
}

var (
	_ Sink = (*PrometheusSink)(nil)
	_ Sink = nopSink{}
)
