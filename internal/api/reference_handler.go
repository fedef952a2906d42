package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"novelist-server/internal/service"
)

// ReferenceHandler отдает справочники жанров и настроений
type ReferenceHandler struct {
	refs *service.ReferenceService
}

// NewReferenceHandler создает новый экземпляр обработчика справочников
func NewReferenceHandler(refs *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{refs: refs}
}

// RegisterRoutes регистрирует маршруты справочников в группе
func (h *ReferenceHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/genres", h.listGenres)
	group.GET("/moods", h.listMoods)
}

func (h *ReferenceHandler) listGenres(c *gin.Context) {
	genres, err := h.refs.ListGenres(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, genres)
}

func (h *ReferenceHandler) listMoods(c *gin.Context) {
	moods, err := h.refs.ListMoods(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, moods)
}
