package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"novelist-server/internal/model"
)

// handleServiceError отображает ошибки сервисного слоя в HTTP-статусы
func handleServiceError(c *gin.Context, err error) {
	var statusCode int

	switch {
	case errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrNovelNotFound),
		errors.Is(err, model.ErrChapterNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTextLength),
		errors.Is(err, model.ErrInvalidGenre),
		errors.Is(err, model.ErrInvalidMood),
		errors.Is(err, model.ErrInvalidInput):
		statusCode = http.StatusBadRequest
	case errors.Is(err, model.ErrNovelNotFailed),
		errors.Is(err, model.ErrNoFailedChapter),
		errors.Is(err, model.ErrPreviousChapterNotReady),
		errors.Is(err, model.ErrPlanMissing),
		errors.Is(err, model.ErrGenerationInProgress):
		statusCode = http.StatusConflict
	default:
		log.Error().Err(err).Msg("Unhandled internal error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.AbortWithStatusJSON(statusCode, ErrorResponse{Error: err.Error()})
}
