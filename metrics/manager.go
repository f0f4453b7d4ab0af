package metrics

import (
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/estate-client/types"
)

var customMetricsCreators = sync.Map{}

func RegisterMetricsManager(metricsManagerName string, creator types.MetricsManagerCreator) {
	customMetricsCreators.Store(metricsManagerName, creator)
}

// NewManager returns the configured metrics backend, or a no-op manager when
// metrics are disabled or not configured.
func NewManager(metricsConfig *types.MetricsConfig, logger types.Logger) (types.MetricsManager, error) {
	if metricsConfig == nil || !metricsConfig.Enabled {
		return NewNoopMetrics(), nil
	}

	var manager types.MetricsManager
	var err error

	switch metricsConfig.Type {
	case "prometheus":
		manager, err = NewPrometheusMetrics(logger, metricsConfig)
	case "noop":
		manager = NewNoopMetrics()
	default:
		if creator, exists := customMetricsCreators.Load(metricsConfig.Type); exists {
			manager, err = creator.(types.MetricsManagerCreator)(metricsConfig.Config)
		} else {
			return nil, types.Errorf(types.ErrMetricsTypeUnknown, "type: %s", metricsConfig.Type)
		}
	}

	if err != nil {
		return nil, types.WrapError(err, "failed to initialize metrics manager")
	}

	logger.Debug("Metrics manager initialized", zap.String("type", metricsConfig.Type))
	return manager, nil
}

type NoopMetrics struct{}

func NewNoopMetrics() types.MetricsManager {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Counter(_ string, _ map[string]string) types.Counter {
	return &emptyCounter{}
}

func (n *NoopMetrics) Gauge(_ string, _ map[string]string) types.Gauge {
	return &emptyGauge{}
}

func (n *NoopMetrics) Histogram(_ string, _ []float64, _ map[string]string) types.Histogram {
	return &emptyHistogram{}
}

func (n *NoopMetrics) GetMetrics() ([]types.MetricValue, error) {
	return nil, types.ErrMetricsIsDisabled
}

type emptyCounter struct{}

func (c *emptyCounter) Inc() {}

type emptyGauge struct{}

func (g *emptyGauge) Set(_ float64) {}

type emptyHistogram struct{}

func (h *emptyHistogram) Observe(_ float64) {}
