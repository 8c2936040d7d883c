package observability

import (
	"context"
	"log/slog"

	"github.com/patrimonio/patrimonio-webapi/internal/config"
	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/observability"
)

// Setup initialises logs and traces for the service. Metrics collectors are
// registered at package init and exposed on the /metrics route.
func Setup(serviceName string, cfg *config.Config) (*slog.Logger, func(context.Context) error) {
	logger := observability.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	tracerShutdown := observability.InitTracing(serviceName, cfg.OTLPEndpoint)
	return logger, tracerShutdown
}
