package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/interfaces/http/response"
)

// RegistryHandler lists the networks, tokens and pairs loaded at startup.
type RegistryHandler struct {
	registry *entities.Registry
}

func NewRegistryHandler(registry *entities.Registry) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// ListNetworks
// GET /api/v1/networks
func (h *RegistryHandler) ListNetworks(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"networks": h.registry.Networks()})
}

// ListTokens lists tokens, optionally only those usable on ?network=.
// GET /api/v1/tokens
func (h *RegistryHandler) ListTokens(c *gin.Context) {
	network := strings.TrimSpace(c.Query("network"))
	tokens := h.registry.Tokens()
	if network == "" {
		response.Success(c, http.StatusOK, gin.H{"tokens": tokens})
		return
	}
	if _, ok := h.registry.Network(network); !ok {
		response.Error(c, domainerrors.Validation("unknown network "+network))
		return
	}

	usable := make([]entities.TokenDescriptor, 0, len(tokens))
	for _, t := range tokens {
		if t.UsableOn(network) {
			usable = append(usable, t)
		}
	}
	response.Success(c, http.StatusOK, gin.H{"tokens": usable})
}

// ListPairs
// GET /api/v1/pairs
func (h *RegistryHandler) ListPairs(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"pairs": h.registry.Pairs()})
}
