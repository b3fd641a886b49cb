package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/interfaces/http/response"
	"oft-bridge.backend/internal/usecases"
)

type statusQueryService interface {
	AggregatorStatus(ctx context.Context, txHash string) (json.RawMessage, error)
	ScannerStatus(ctx context.Context, txHash, network string) (*usecases.ScanSummary, error)
	OnchainStatus(ctx context.Context, req usecases.CorrelateRequest) (*usecases.CorrelationResult, error)
}

type StatusHandler struct {
	service statusQueryService
}

func NewStatusHandler(service *usecases.StatusQueryUsecase) *StatusHandler {
	return &StatusHandler{service: service}
}

type txHashRequest struct {
	TxHash string `json:"txHash" binding:"required"`
}

type scanStatusRequest struct {
	TxHash  string `json:"txHash" binding:"required"`
	Network string `json:"network"`
}

// AggregatorStatus proxies the status aggregator.
// POST /api/v1/agg-status
func (h *StatusHandler) AggregatorStatus(c *gin.Context) {
	var req txHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("txHash is required"))
		return
	}

	body, err := h.service.AggregatorStatus(c.Request.Context(), req.TxHash)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// OnchainStatus correlates the source packet with destination endpoint logs.
// POST /api/v1/lz-status-onchain
func (h *StatusHandler) OnchainStatus(c *gin.Context) {
	var req usecases.CorrelateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("txHash, sourceNetwork and destNetwork are required"))
		return
	}

	result, err := h.service.OnchainStatus(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ScannerStatus looks the transaction up on the protocol scanner.
// POST /api/v1/lz-status
func (h *StatusHandler) ScannerStatus(c *gin.Context) {
	var req scanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("txHash is required"))
		return
	}
	network := strings.ToLower(strings.TrimSpace(req.Network))
	if network != "" && network != "testnet" && network != "mainnet" {
		response.Error(c, domainerrors.Validation("network must be testnet or mainnet"))
		return
	}

	summary, err := h.service.ScannerStatus(c.Request.Context(), req.TxHash, network)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}
