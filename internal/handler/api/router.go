package api

import (
	"strings"

	"AgriCast/internal/services/analytics"
	xhttp "AgriCast/pkg/http"

	"github.com/labstack/echo/v4"
)

// Router mounts every endpoint: service routes at the root and the
// prediction and training APIs under basePath.
type Router struct {
	basePath    string
	predictions *PredictionHandler
	training    *TrainingHandler
	system      *SystemHandler
}

var _ xhttp.Handler = (*Router)(nil)

func NewRouter(basePath string, p *PredictionHandler, t *TrainingHandler, s *SystemHandler) *Router {
	return &Router{basePath: strings.TrimSuffix(basePath, "/"), predictions: p, training: t, system: s}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	e.GET("/", r.system.Root)
	e.GET("/health", r.system.Health)
	e.GET("/models/info", r.system.ModelsInfo)
	e.POST("/models/reload", r.system.Reload)

	g := e.Group(r.basePath)

	y := g.Group("/yield")
	y.POST("/predict", r.predictions.PredictYield)
	y.GET("/model/info", r.system.ModelInfo(analytics.YieldModelName))

	p := g.Group("/prices")
	p.POST("/forecast", r.predictions.ForecastPrice)
	p.GET("/model/info", r.system.ModelInfo(analytics.PriceModelName))

	a := g.Group("/anomaly")
	a.POST("/detect", r.predictions.DetectAnomalies)
	a.GET("/model/info", r.system.ModelInfo(analytics.AnomalyModelName))

	t := g.Group("/training")
	t.POST("/train", r.training.Train)
	t.GET("", r.training.List)
	t.GET("/", r.training.List)
	t.GET("/:job_id", r.training.Status)
	t.GET("/:job_id/stream", r.training.Stream)
}
