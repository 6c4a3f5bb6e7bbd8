package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
	"github.com/lanternroom/lantern-backend/internal/services"
)

type ConversationHandler struct {
	log          *logger.Logger
	coachService services.CoachService
	unitCreation services.UnitCreationService
}

func NewConversationHandler(log *logger.Logger, coachService services.CoachService, unitCreation services.UnitCreationService) *ConversationHandler {
	return &ConversationHandler{
		log:          log.With("handler", "ConversationHandler"),
		coachService: coachService,
		unitCreation: unitCreation,
	}
}

// POST /api/conversations
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	conv, err := h.coachService.CreateConversation(dbctx.Context{Ctx: c.Request.Context()}, userID, body.Title)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// GET /api/conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	conv, turns, err := h.coachService.GetConversation(dbctx.Context{Ctx: c.Request.Context()}, convID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if conv.UserID != userID {
		RespondError(c, http.StatusNotFound, "not_found", errs.NotFoundf("conversation %s", convID))
		return
	}
	RespondOK(c, gin.H{"conversation": conv, "turns": turns})
}

// POST /api/conversations/:id/messages
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	if _, ok := userIDFrom(c); !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	turn, err := h.coachService.SendMessage(dbctx.Context{Ctx: c.Request.Context()}, convID, body.Content)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"turn": turn})
}

// POST /api/conversations/:id/resources
func (h *ConversationHandler) AttachResources(c *gin.Context) {
	if _, ok := userIDFrom(c); !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		ResourceIDs []uuid.UUID `json:"resource_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.coachService.AttachResources(dbctx.Context{Ctx: c.Request.Context()}, convID, body.ResourceIDs); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attached": len(body.ResourceIDs)})
}

// POST /api/conversations/:id/accept-brief
func (h *ConversationHandler) AcceptBrief(c *gin.Context) {
	if _, ok := userIDFrom(c); !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Brief map[string]any `json:"brief"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.coachService.AcceptBrief(dbctx.Context{Ctx: c.Request.Context()}, convID, body.Brief); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "brief_accepted"})
}

// POST /api/conversations/:id/create-unit
func (h *ConversationHandler) CreateUnit(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	unit, run, err := h.unitCreation.EnqueueFromConversation(dbctx.Context{Ctx: c.Request.Context()}, userID, convID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"unit": unit, "run": run})
}
