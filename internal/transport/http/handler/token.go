package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/court-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

// Bootstrapper is satisfied by *auth.Manager.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, newRefreshSecret string) error
}

type TokenHandler struct {
	tokens Bootstrapper
	status *usecase.StatusUsecase
	logger *slog.Logger
}

func NewTokenHandler(tokens Bootstrapper, status *usecase.StatusUsecase, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, status: status, logger: logger.With("component", "token_handler")}
}

type bootstrapRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Bootstrap installs an operator-supplied refresh secret. The secret is
// exchanged immediately so a bad paste is rejected here, not at the next
// booking attempt.
func (h *TokenHandler) Bootstrap(ctx *gin.Context) {
	var req bootstrapRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokens.Bootstrap(ctx.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Error("token bootstrap", "error", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "Token exchange failed; check the refresh token"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "credential installed"})
}

func (h *TokenHandler) Status(ctx *gin.Context) {
	status, err := h.status.CredentialStatus(ctx.Request.Context())
	if err != nil {
		h.logger.Error("token status", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, status)
}
