package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suduli/AI-ASIL-Analyser/internal/catalog"
	"github.com/suduli/AI-ASIL-Analyser/internal/core"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, RequestID: c.GetString("request_id")})
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var (
		validation    *core.ValidationError
		notAutomotive *core.NotAutomotiveError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, schema.ErrInvalidRatingRange):
		return http.StatusBadRequest
	case errors.As(err, &notAutomotive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrComponentNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrComponentExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error(), RequestID: c.GetString("request_id")}
	var validation *core.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err, "request_id", resp.RequestID)
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}
