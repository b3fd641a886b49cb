package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/interfaces/http/response"
	"oft-bridge.backend/internal/usecases"
)

type sendService interface {
	Send(ctx context.Context, req usecases.SendRequest) (*usecases.SendAttempt, error)
}

type trackingService interface {
	Track(ctx context.Context, req usecases.TrackRequest) (*entities.TransferStatus, error)
	Status(ctx context.Context, txHash string) (*entities.TransferStatus, error)
}

type historyService interface {
	List(ctx context.Context, clientID string) ([]*entities.TransferRecord, error)
}

// TransferHandler serves transfer submission, tracking and history.
type TransferHandler struct {
	send     sendService
	tracking trackingService
	history  historyService
}

func NewTransferHandler(send *usecases.SendUsecase, tracking *usecases.TrackingUsecase, history *usecases.HistoryUsecase) *TransferHandler {
	return &TransferHandler{send: send, tracking: tracking, history: history}
}

// CreateTransfer quotes and submits a transfer with the server signer.
// POST /api/v1/transfers
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req usecases.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid request: "+err.Error()))
		return
	}

	attempt, err := h.send.Send(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"transfer": attempt})
}

// Track starts or replaces the client's tracked transfer.
// POST /api/v1/transfers/track
func (h *TransferHandler) Track(c *gin.Context) {
	var req usecases.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid request: "+err.Error()))
		return
	}

	status, err := h.tracking.Track(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": status})
}

// GetStatus returns the published status of a source transaction.
// GET /api/v1/transfers/:txHash/status
func (h *TransferHandler) GetStatus(c *gin.Context) {
	status, err := h.tracking.Status(c.Request.Context(), c.Param("txHash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": status})
}

// ListHistory returns the client's most recent transfers.
// GET /api/v1/transfers/history?clientId=
func (h *TransferHandler) ListHistory(c *gin.Context) {
	records, err := h.history.List(c.Request.Context(), c.Query("clientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transfers": records})
}
