package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
	"github.com/lanternroom/lantern-backend/internal/services"
)

type UnitHandler struct {
	log          *logger.Logger
	unitCreation services.UnitCreationService
}

func NewUnitHandler(log *logger.Logger, unitCreation services.UnitCreationService) *UnitHandler {
	return &UnitHandler{
		log:          log.With("handler", "UnitHandler"),
		unitCreation: unitCreation,
	}
}

// GET /api/units/:id
// Returns the unit and its latest generation run so clients can poll
// assembly progress.
func (h *UnitHandler) GetUnit(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	unitID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	unit, run, err := h.unitCreation.GetUnit(dbctx.Context{Ctx: c.Request.Context()}, unitID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if unit.UserID != userID {
		RespondError(c, http.StatusNotFound, "not_found", errs.NotFoundf("unit %s", unitID))
		return
	}
	RespondOK(c, gin.H{"unit": unit, "run": run})
}
