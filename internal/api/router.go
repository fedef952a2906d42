package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"novelist-server/internal/config"
)

// RequestLogger - middleware структурированного логирования запросов
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("clientIP", c.ClientIP()).
			Msg("HTTP request")
	}
}

// NewRouter собирает HTTP-маршрутизатор со всеми middleware и маршрутами
func NewRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	novelHandler *NovelHandler,
	userHandler *UserHandler,
	referenceHandler *ReferenceHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	apiGroup := router.Group(cfg.ServerBasePath)
	novelHandler.RegisterRoutes(apiGroup)
	userHandler.RegisterRoutes(apiGroup)
	referenceHandler.RegisterRoutes(apiGroup)

	// Prometheus middleware применяется после регистрации маршрутов,
	// чтобы метрики увидели все обработчики. Регистрирует /metrics.
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	return router
}
