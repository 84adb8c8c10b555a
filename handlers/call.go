package handlers

import (
	"errors"
	"net/http"
	"time"

	"clinicvoice/models"
	"clinicvoice/services/intelligence"
	"clinicvoice/services/orchestrator"
	"clinicvoice/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallHandler serves the dialogue engine surface: one session per phone
// call, one request per caller turn.
type CallHandler struct {
	Sessions  orchestrator.SessionService
	Extractor intelligence.IntentExtractor
	TokenTTL  time.Duration
}

// NewCallHandler builds the call endpoints.
func NewCallHandler(sessions orchestrator.SessionService, extractor intelligence.IntentExtractor, tokenTTL time.Duration) *CallHandler {
	return &CallHandler{Sessions: sessions, Extractor: extractor, TokenTTL: tokenTTL}
}

// StartSession opens a call session and returns its id, a bearer token scoped
// to that session, and the opening line to speak.
func (h *CallHandler) StartSession(c *gin.Context) {
	sess, directive, err := h.Sessions.StartSession(c.Request.Context())
	if err != nil {
		utils.GetLogger().Error("failed to start call session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	token, err := utils.GenerateCallToken(sess.CallID, h.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"sessionId": sess.CallID,
		"token":     token,
		"directive": directive,
	})
}

// HandleIntent advances the session with an already-structured intent.
func (h *CallHandler) HandleIntent(c *gin.Context) {
	sessionID := c.Param("sessionID")

	var req models.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid intent payload", "details": err.Error()})
		return
	}

	directive, err := h.Sessions.HandleIntent(c.Request.Context(), sessionID, req)
	if err != nil {
		h.respondIntentError(c, sessionID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"directive": directive})
}

// HandleUtterance accepts a raw transcription, extracts the intent and
// advances the session with it.
func (h *CallHandler) HandleUtterance(c *gin.Context) {
	sessionID := c.Param("sessionID")

	var input struct {
		Text      string `json:"text" binding:"required"`
		StateHint string `json:"stateHint"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid utterance payload", "details": err.Error()})
		return
	}

	req, err := h.Extractor.Extract(c.Request.Context(), input.Text, input.StateHint)
	if err != nil {
		utils.GetLogger().Error("intent extraction failed",
			zap.String("sessionID", sessionID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to understand utterance"})
		return
	}

	directive, err := h.Sessions.HandleIntent(c.Request.Context(), sessionID, *req)
	if err != nil {
		h.respondIntentError(c, sessionID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intent": req, "directive": directive})
}

// EndSession tears the session down, releasing any held slot.
func (h *CallHandler) EndSession(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if err := h.Sessions.EndSession(c.Request.Context(), sessionID); err != nil {
		utils.GetLogger().Error("failed to end call session",
			zap.String("sessionID", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *CallHandler) respondIntentError(c *gin.Context, sessionID string, err error) {
	if errors.Is(err, orchestrator.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
		return
	}
	utils.GetLogger().Error("failed to handle intent",
		zap.String("sessionID", sessionID), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process intent"})
}
