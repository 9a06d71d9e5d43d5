package http

import (
	"net/http"

	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type TokenRequest = core.TokenRequest

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Channels int    `json:"channels"`
}

type handlers struct {
	orch *orch.Orchestrator
}

// issueTokens mints a media/signaling token pair for one join attempt.
func (h *handlers) issueTokens(c *gin.Context) {
	displayID := c.Param("displayId")
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if displayID == "" || req.UserID == "" || len(req.UserID) > domain.MaxUserIDLen {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid uid"})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "role must be client or expert"})
		return
	}

	tokens, err := h.orch.Tokens.Issue(domain.ChannelID(displayID), req.UserID, req.Role)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("display_id", displayID).Msg("issue tokens")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "token issuance failed"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("display_id", displayID).Str("uid", string(req.UserID)).Str("role", string(req.Role)).Msg("tokens issued")
	c.JSON(http.StatusOK, tokens)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Channels: len(h.orch.Channels.List())})
}

func (h *handlers) listChannels(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Channels.List())
}
