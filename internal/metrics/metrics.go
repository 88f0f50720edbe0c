// Package metrics provides Prometheus instrumentation for the external calls
// and transfer outcomes of the wallet connector.
package metrics

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// External call labels.
const (
	CallRequestAccounts = "request_accounts"
	CallBalance         = "balance"
	CallGasPrice        = "gas_price"
	CallSendTransaction = "send_transaction"
	CallPrice           = "price"
	CallAdminAddress    = "admin_address"
	CallStoreData       = "store_data"
)

var (
	externalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walletconnector",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to the wallet provider, chain node, price oracle and backend",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call", "result"},
	)

	transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletconnector",
			Name:      "transfers_total",
			Help:      "Transfer attempts by terminal outcome",
		},
		[]string{"outcome"},
	)
)

// Register adds the collectors to the default registry. Registering twice is harmless.
func Register(logger *slog.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)
	registerIfNotExists(externalCallDuration, "external_call_duration", logger)
	registerIfNotExists(transfersTotal, "transfers_total", logger)
}

func registerIfNotExists(collector prometheus.Collector, name string, logger *slog.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debug("collector already registered", "name", name)
			return
		}
		logger.Error("failed to register collector", "name", name, "error", err)
	}
}

// ObserveCall times fn under the given call label and returns its error.
func ObserveCall(call string, fn func() error) error {
	start := time.Now()
	err := fn()
	result := "ok"
	if err != nil {
		result = "error"
	}
	externalCallDuration.WithLabelValues(call, result).Observe(time.Since(start).Seconds())
	return err
}

// ObserveTransfer counts a finished transfer attempt.
func ObserveTransfer(outcome string) {
	transfersTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
