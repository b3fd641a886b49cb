package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const namespace = "oftbridge"

// Register registers the runtime collectors and the metrics of the given
// services ("http", "tracking", "send", "upstream").
func Register(services []string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	for _, service := range services {
		switch service {
		case "http":
			registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
			registerIfNotExists(httpRequestDuration, "http_request_duration", logger)
			registerIfNotExists(httpErrorsTotal, "http_errors_total", logger)
		case "tracking":
			registerIfNotExists(pollFetchesTotal, "poll_fetches_total", logger)
			registerIfNotExists(pollFetchDuration, "poll_fetch_duration", logger)
			registerIfNotExists(publishedStageTotal, "published_stage_total", logger)
			registerIfNotExists(activeTrackers, "active_trackers", logger)
		case "send":
			registerIfNotExists(sendAttemptsTotal, "send_attempts_total", logger)
			registerIfNotExists(sendFallbacksTotal, "send_fallbacks_total", logger)
		case "upstream":
			registerIfNotExists(upstreamRequestsTotal, "upstream_requests_total", logger)
		default:
			logger.Warn("unknown service type for metrics registration", zap.String("service", service))
		}
	}
}

func registerIfNotExists(collector prometheus.Collector, name string, logger *zap.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debug("metric already registered", zap.String("metric", name))
			return
		}
		logger.Error("failed to register metric", zap.String("metric", name), zap.Error(err))
	}
}
