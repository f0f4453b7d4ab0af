package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/saiset-co/estate-client/types"
	"github.com/saiset-co/estate-client/utils"
)

type PrometheusConfig struct {
	Namespace       string `yaml:"namespace" json:"namespace"`
	Subsystem       string `yaml:"subsystem" json:"subsystem"`
	EnableGoMetrics bool   `yaml:"enable_go_metrics" json:"enable_go_metrics"`
}

// PrometheusMetrics keeps one labelled vector per metric name in a private
// registry. Label names are fixed by the first call for a name.
type PrometheusMetrics struct {
	logger   types.Logger
	config   *PrometheusConfig
	labels   map[string]string
	registry *prometheus.Registry
	mu       sync.Mutex
	vecs     map[string]any
}

func NewPrometheusMetrics(logger types.Logger, config *types.MetricsConfig) (*PrometheusMetrics, error) {
	promConfig := &PrometheusConfig{Namespace: "estate_client"}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, promConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal prometheus config")
		}
	}

	registry := prometheus.NewRegistry()
	if promConfig.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	logger.Debug("Prometheus metrics initialized",
		zap.String("namespace", promConfig.Namespace),
		zap.Bool("go_metrics", promConfig.EnableGoMetrics))

	return &PrometheusMetrics{
		logger:   logger,
		config:   promConfig,
		labels:   config.Labels,
		registry: registry,
		vecs:     make(map[string]any),
	}, nil
}

func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetrics) Counter(name string, labels map[string]string) types.Counter {
	vec := p.vec(name, func() prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts(p.opts(name, "Counter")), labelNames(labels))
	}).(*prometheus.CounterVec)

	return vec.With(labels)
}

func (p *PrometheusMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	vec := p.vec(name, func() prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts(p.opts(name, "Gauge")), labelNames(labels))
	}).(*prometheus.GaugeVec)

	return vec.With(labels)
}

func (p *PrometheusMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	vec := p.vec(name, func() prometheus.Collector {
		opts := p.opts(name, "Histogram")
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        opts.Name,
			Help:        opts.Help,
			ConstLabels: opts.ConstLabels,
			Buckets:     buckets,
		}, labelNames(labels))
	}).(*prometheus.HistogramVec)

	return vec.With(labels)
}

// GetMetrics flattens the registry into one value per labelled series.
// Histograms report their sample sum.
func (p *PrometheusMetrics) GetMetrics() ([]types.MetricValue, error) {
	families, err := p.registry.Gather()
	if err != nil {
		p.logger.Error("Failed to gather prometheus metrics", zap.Error(err))
		return nil, err
	}

	now := time.Now()
	var values []types.MetricValue
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, label := range m.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}

			values = append(values, types.MetricValue{
				Name:      mf.GetName(),
				Type:      mf.GetType().String(),
				Value:     sampleValue(m),
				Labels:    labels,
				Timestamp: now,
				Help:      mf.GetHelp(),
			})
		}
	}

	return values, nil
}

func (p *PrometheusMetrics) vec(name string, build func() prometheus.Collector) any {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vec, ok := p.vecs[name]; ok {
		return vec
	}

	collector := build()
	p.registry.MustRegister(collector)
	p.vecs[name] = collector

	p.logger.Debug("Prometheus metric registered", zap.String("name", name))
	return collector
}

func (p *PrometheusMetrics) opts(name, kind string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Help:        kind + " metric " + name,
		ConstLabels: p.labels,
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Histogram != nil:
		return m.Histogram.GetSampleSum()
	}
	return 0
}
