package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service-layer sentinel errors onto statuses.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errs.Is(err, errs.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errs.Is(err, errs.ErrValidation):
		RespondError(c, http.StatusBadRequest, "validation", err)
	case errs.Is(err, errs.ErrGeneration):
		RespondError(c, http.StatusBadGateway, "generation", err)
	case errs.Is(err, errs.ErrLink):
		RespondError(c, http.StatusConflict, "link", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

// userIDFrom reads the caller identity from the X-User-ID header. Auth proper
// sits in front of this service; the header is what the gateway forwards.
func userIDFrom(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "missing_user", err)
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}
