package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/coinsora/server/internal/app"
	iauth "github.com/coinsora/server/internal/auth"
	"github.com/coinsora/server/internal/catalog"
	"github.com/coinsora/server/internal/handlers"
	"github.com/coinsora/server/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, otpSvc *iauth.OTPService, catalogSvc *catalog.Service, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if otpSvc == nil {
		return nil, fmt.Errorf("otp service must be provided")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(otpSvc)
	if err != nil {
		return nil, err
	}

	catalogHandler, err := handlers.NewCatalogHandler(catalogSvc)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	registerAuthRoutes(api, authHandler)
	registerCatalogRoutes(api, catalogHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
