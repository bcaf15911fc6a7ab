package handlers

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/proxybot/internal/api/middleware"
	"github.com/Wikid82/proxybot/internal/discord"
)

const maxInteractionBody = 1 << 20

const (
	signatureHeader = "X-Signature-Ed25519"
	timestampHeader = "X-Signature-Timestamp"
)

// Interactor answers a decoded interaction.
type Interactor interface {
	Handle(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error)
}

// InteractionsHandler is the HTTP endpoint Discord posts interactions to.
type InteractionsHandler struct {
	interactor Interactor
	publicKey  ed25519.PublicKey
}

// NewInteractionsHandler creates the endpoint. A nil publicKey disables
// signature checks, which is only useful behind a trusted gateway or in tests.
func NewInteractionsHandler(interactor Interactor, publicKey ed25519.PublicKey) *InteractionsHandler {
	return &InteractionsHandler{interactor: interactor, publicKey: publicKey}
}

// RegisterRoutes registers the interactions route.
func (h *InteractionsHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/interactions", h.Handle)
}

// Handle verifies, decodes and answers one interaction.
func (h *InteractionsHandler) Handle(c *gin.Context) {
	log := middleware.GetRequestLogger(c)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxInteractionBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if h.publicKey != nil {
		if err := discord.Verify(h.publicKey, c.GetHeader(signatureHeader), c.GetHeader(timestampHeader), body); err != nil {
			log.Warn("Rejected interaction with invalid signature")
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	var in discord.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interaction payload"})
		return
	}

	resp, err := h.interactor.Handle(c.Request.Context(), in)
	if err != nil {
		log.WithError(err).WithField("interaction_id", in.ID).Warn("Failed to handle interaction")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
