package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/interfaces/http/response"
	"oft-bridge.backend/internal/usecases"
)

type feeService interface {
	EstimateFee(ctx context.Context, req usecases.FeeEstimateRequest) (*usecases.FeeEstimate, error)
}

type FeeHandler struct {
	service feeService
}

func NewFeeHandler(service *usecases.FeeUsecase) *FeeHandler {
	return &FeeHandler{service: service}
}

// EstimateFee quotes the messaging fee for a transfer.
// POST /api/v1/estimate-fee
func (h *FeeHandler) EstimateFee(c *gin.Context) {
	var req usecases.FeeEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid request: "+err.Error()))
		return
	}

	estimate, err := h.service.EstimateFee(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, estimate)
}
