package routes

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagedetect/internal/config"
	"imagedetect/internal/handlers"
	"imagedetect/internal/logger"
	"imagedetect/internal/middleware"
	"imagedetect/internal/services/detection"
	"imagedetect/internal/services/websocket"
)

// CORSConfig allows any origin without credentials and exposes every
// response header.
var CORSConfig = echomw.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	},
	AllowHeaders:     []string{"*"},
	ExposeHeaders:    []string{"*"},
	AllowCredentials: false,
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Detection *detection.Service
	Hub       *websocket.HubService
	Gatherer  prometheus.Gatherer
}

// SetupRoutes builds the echo instance with middleware and every endpoint.
func SetupRoutes(deps Deps, cfg *config.Config, log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler(log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(CORSConfig))
	e.Use(echomw.BodyLimit(cfg.MaxUploadSize))

	e.GET("/", handlers.RootHandler())
	e.GET("/health", handlers.HealthHandler(deps.Detection))
	e.POST("/detect", handlers.DetectHandler(deps.Detection, log))
	e.GET("/detections", handlers.ListDetectionsHandler(deps.Detection, log))

	if deps.Hub != nil {
		e.GET("/ws", handlers.ViewWebsocketHandler(deps.Hub, log))
	}
	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return e
}
