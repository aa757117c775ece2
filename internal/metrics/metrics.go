package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kefctl/internal/core"
)

const (
	metricPrefix = "kefctl_"

	resultSuccess = "success"
	resultError   = "error"

	unknownCommand = "unknown"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	speakerOnline     prometheus.Gauge
	statusQueriesLast prometheus.Gauge
)

// Init регистрирует метрики диспетчера. Повторные вызовы безопасны.
func Init() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		operationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Dispatcher operations by op, command and result",
			},
			[]string{"op", "command", "result"},
		)
		operationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_duration_seconds",
				Help:    "Dispatcher operation latency including queueing on the device loop",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		)
		speakerOnline = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "speaker_online",
				Help: "1 if the last online check or status query reached the speaker",
			},
		)
		statusQueriesLast = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "status_last_success_timestamp_seconds",
				Help: "Unix time of the last successful full status query",
			},
		)

		registry.MustRegister(
			operationsTotal,
			operationLatency,
			speakerOnline,
			statusQueriesLast,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Middleware считает операции диспетчера. Метка command берется из реестра:
// синонимы сводятся к каноническому имени, прочие имена к "unknown".
func Middleware(reg *core.Registry) core.Middleware {
	Init()
	if reg == nil {
		reg = core.NewRegistry()
	}
	return func(op string, next core.Endpoint) core.Endpoint {
		return func(ctx context.Context, req core.Request) core.Result {
			start := time.Now()
			res := next(ctx, req)
			operationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

			result := resultSuccess
			if !res.Success {
				result = resultError
			}
			operationsTotal.WithLabelValues(op, commandLabel(reg, req.Command), result).Inc()

			switch op {
			case core.OpCheckOnline:
				if online, _ := res.Payload.(bool); online {
					speakerOnline.Set(1)
				} else {
					speakerOnline.Set(0)
				}
			case core.OpStatus:
				switch {
				case res.Success:
					speakerOnline.Set(1)
					statusQueriesLast.SetToCurrentTime()
				case errors.Is(res.Err, core.ErrOffline):
					speakerOnline.Set(0)
				}
			}
			return res
		}
	}
}

func commandLabel(reg *core.Registry, name string) string {
	if name == "" {
		return ""
	}
	cmd, ok := reg.Lookup(name)
	if !ok {
		return unknownCommand
	}
	return cmd.Name
}

// Handler отдает метрики в формате Prometheus.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
