package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
	"github.com/lanternroom/lantern-backend/internal/services"
)

type ResourceHandler struct {
	log             *logger.Logger
	resourceService services.ResourceService
}

func NewResourceHandler(log *logger.Logger, resourceService services.ResourceService) *ResourceHandler {
	return &ResourceHandler{
		log:             log.With("handler", "ResourceHandler"),
		resourceService: resourceService,
	}
}

// POST /api/resources
// Text extraction happens upstream; this endpoint receives the already
// extracted text alongside the resource descriptor.
func (h *ResourceHandler) CreateResource(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	var body struct {
		Type          string         `json:"type"`
		Filename      string         `json:"filename"`
		SourceURL     string         `json:"source_url"`
		ExtractedText string         `json:"extracted_text"`
		Extraction    map[string]any `json:"extraction_metadata"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	res, err := h.resourceService.CreateLearnerResource(dbctx.Context{Ctx: c.Request.Context()}, services.CreateResourceInput{
		UserID:        userID,
		Type:          body.Type,
		Filename:      body.Filename,
		SourceURL:     body.SourceURL,
		ExtractedText: body.ExtractedText,
		Extraction:    body.Extraction,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"resource": res})
}
