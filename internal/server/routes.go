package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(NewRequestID())
	e.Use(otelecho.Middleware(s.cfg.OTelServiceName, otelecho.WithSkipper(skipper)))
	e.Use(NewEchoLogger(s.logger))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"https://*", "http://*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Accept", "Content-Type", echo.HeaderXRequestID},
		MaxAge:       300,
	}))

	if s.cfg.RateLimit > 0 {
		e.Use(NewRateLimiter(s.cfg.RateLimit, s.cfg.RateLimitBurst))
	}

	e.GET("/api/health", s.healthHandler)

	var assetGroup = e.Group("/api/v1/assets")
	assetGroup.GET("", s.ListAssets)
	assetGroup.POST("", s.CreateAsset)
	assetGroup.GET("/:id", s.GetAssetByID)
	assetGroup.PUT("/:id", s.UpdateAsset)
	assetGroup.DELETE("/:id", s.DeleteAsset)

	var groupGroup = e.Group("/api/v1/groups")
	groupGroup.GET("", s.ListGroups)
	groupGroup.POST("", s.CreateGroup)
	groupGroup.GET("/:id", s.GetGroupByID)
	groupGroup.DELETE("/:id", s.DeleteGroup)
	groupGroup.GET("/:id/assets", s.ListGroupAssets)
	groupGroup.POST("/:id/assets/:asset_id", s.AddAssetToGroup)
	groupGroup.DELETE("/:id/assets/:asset_id", s.RemoveAssetFromGroup)

	return e
}
