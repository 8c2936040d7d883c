package api

import (
	"log/slog"
	"net/http"

	"github.com/patrimonio/patrimonio-webapi/docs"
	"github.com/patrimonio/patrimonio-webapi/internal/config"
	"github.com/patrimonio/patrimonio-webapi/internal/handler"
	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/auth"
	"github.com/patrimonio/patrimonio-webapi/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ImagesPrefix is the URL prefix under which the images root is served.
const ImagesPrefix = "/img"

// SetupPipeline builds the request pipeline. Stage order matters: routing
// only selects an endpoint, CORS answers preflights before anything checks
// credentials, static files are served only when no endpoint matched, and
// dispatch runs last.
func SetupPipeline(cfg *config.Config, logger *slog.Logger, h *handler.Handler, tokens auth.Validator) *pipeline.Pipeline {
	table := pipeline.NewRouteTable()
	h.RegisterRoutes(table)
	table.Handle(http.MethodGet, "/metrics", promhttp.Handler(), pipeline.Anonymous)

	stages := []pipeline.Stage{
		{Name: "request-id", Middleware: pipeline.RequestID()},
		{Name: "request-logger", Middleware: pipeline.Logger(logger)},
	}
	if cfg.IsDevelopment() {
		stages = append(stages, pipeline.Stage{Name: "developer-exception-page", Middleware: pipeline.DeveloperExceptionPage(logger)})
	} else {
		stages = append(stages, pipeline.Stage{Name: "exception-handler", Middleware: pipeline.Recover(logger)})
	}
	stages = append(stages,
		pipeline.Stage{Name: "swagger", Middleware: pipeline.Docs(docs.SwaggerInfo.InstanceName())},
		pipeline.Stage{Name: "routing", Middleware: pipeline.Routing(table)},
		pipeline.Stage{Name: "cors", Middleware: pipeline.CORS()},
		pipeline.Stage{Name: "static-files", Middleware: pipeline.StaticFiles("", http.Dir(cfg.StaticRoot))},
		pipeline.Stage{Name: "static-images", Middleware: pipeline.StaticFiles(ImagesPrefix, http.Dir(cfg.ImagesDir))},
		pipeline.Stage{Name: "authentication", Middleware: auth.Authenticate(tokens)},
		pipeline.Stage{Name: "authorization", Middleware: auth.Authorize()},
	)

	p := pipeline.New(pipeline.Dispatch(), stages...)
	logger.Info("request pipeline built", "stages", p.Names())
	return p
}
