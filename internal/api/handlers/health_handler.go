package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/proxybot/internal/api/middleware"
	"github.com/Wikid82/proxybot/internal/version"
)

const ledgerProbeTimeout = 2 * time.Second

// LedgerProbe is the read the health check performs against the ledger.
type LedgerProbe interface {
	Users(ctx context.Context) ([]string, error)
}

// HealthHandler reports build metadata and whether the ledger is readable.
type HealthHandler struct {
	ledger LedgerProbe
}

func NewHealthHandler(ledger LedgerProbe) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.Get)
}

// Get responds with basic service metadata for uptime checks.
func (h *HealthHandler) Get(c *gin.Context) {
	status, code, ledgerState := "ok", http.StatusOK, "ok"
	if h.ledger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), ledgerProbeTimeout)
		defer cancel()
		if _, err := h.ledger.Users(ctx); err != nil {
			middleware.GetRequestLogger(c).WithError(err).Warn("Ledger health probe failed")
			status, code, ledgerState = "degraded", http.StatusServiceUnavailable, "unavailable"
		}
	}

	c.JSON(code, gin.H{
		"status":     status,
		"service":    version.Name,
		"version":    version.Version,
		"git_commit": version.GitCommit,
		"build_time": version.BuildTime,
		"ledger":     ledgerState,
	})
}
