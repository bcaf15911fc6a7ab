package routes

import (
	"crypto/ed25519"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Wikid82/proxybot/internal/api/handlers"
	"github.com/Wikid82/proxybot/internal/api/middleware"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/metrics"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Interactions handlers.Interactor
	// PublicKey verifies interaction signatures; nil disables the check.
	PublicKey ed25519.PublicKey
	Ledger    handlers.LedgerProbe
	// Metrics is served on /metrics when set.
	Metrics *prometheus.Registry
	// Verbose logs stacktraces for recovered panics.
	Verbose bool
}

// Register wires up middleware and routes.
func Register(router *gin.Engine, deps Deps) {
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(healthPath, metricsPath))
	router.Use(middleware.Recovery(deps.Verbose))

	handlers.NewHealthHandler(deps.Ledger).RegisterRoutes(router.Group("/api/v1"))

	if deps.Metrics != nil {
		router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	if deps.Interactions != nil {
		handlers.NewInteractionsHandler(deps.Interactions, deps.PublicKey).RegisterRoutes(router)
	}
}
