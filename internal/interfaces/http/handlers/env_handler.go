package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"oft-bridge.backend/internal/interfaces/http/response"
	"oft-bridge.backend/internal/usecases"
)

type envChecker interface {
	Check() usecases.EnvReport
}

type EnvHandler struct {
	checker envChecker
}

func NewEnvHandler(checker *usecases.EnvCheckUsecase) *EnvHandler {
	return &EnvHandler{checker: checker}
}

// Check reports which settings are present, never their values.
// GET /api/v1/env-check
func (h *EnvHandler) Check(c *gin.Context) {
	response.Success(c, http.StatusOK, h.checker.Check())
}
