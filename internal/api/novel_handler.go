package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"novelist-server/internal/model"
	"novelist-server/internal/service"
)

// NovelHandler обслуживает маршруты генерации новелл
type NovelHandler struct {
	novels *service.NovelService
}

// NewNovelHandler создает новый экземпляр обработчика новелл
func NewNovelHandler(novels *service.NovelService) *NovelHandler {
	return &NovelHandler{novels: novels}
}

// RegisterRoutes регистрирует маршруты новелл в группе
func (h *NovelHandler) RegisterRoutes(group *gin.RouterGroup) {
	novels := group.Group("/novels")
	{
		novels.POST("/init", h.initNovel)
		novels.GET("", h.listNovels)
		novels.GET("/:novel_id", h.getNovel)
		novels.GET("/:novel_id/progress", h.getProgress)
		novels.POST("/:novel_id/retry", h.retryGeneration)
		novels.GET("/:novel_id/chapters", h.getChapters)
		novels.GET("/:novel_id/contents", h.getContents)
	}
}

// initNovel запускает генерацию новой новеллы
func (h *NovelHandler) initNovel(c *gin.Context) {
	var req InitNovelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.novels.InitNovel(c.Request.Context(), service.InitNovelParams{
		UserID:     req.UserID,
		UserPrompt: req.UserPrompt,
		TextLength: req.TextLength,
		Settings:   req.Settings,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InitNovelResponse{
		NovelID:            result.Novel.ID,
		Title:              result.Novel.Title,
		TotalChapterNumber: result.TotalChapters,
		FirstChapterText:   result.FirstChapterText,
	})
}

// listNovels возвращает список новелл, опционально по пользователю
func (h *NovelHandler) listNovels(c *gin.Context) {
	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
			return
		}
		userID = &id
	}

	novels, err := h.novels.ListNovels(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, novels)
}

// getNovel возвращает новеллу по ID
func (h *NovelHandler) getNovel(c *gin.Context) {
	novelID, ok := parseNovelID(c)
	if !ok {
		return
	}

	novel, err := h.novels.GetNovel(c.Request.Context(), novelID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, novel)
}

// getProgress возвращает снимок прогресса генерации
func (h *NovelHandler) getProgress(c *gin.Context) {
	novelID, ok := parseNovelID(c)
	if !ok {
		return
	}

	lastSeen := 0
	if raw := c.Query("last_seen"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid last_seen"})
			return
		}
		lastSeen = parsed
	}

	progress, err := h.novels.GetProgress(c.Request.Context(), novelID, lastSeen)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// retryGeneration возобновляет генерацию упавшей новеллы
func (h *NovelHandler) retryGeneration(c *gin.Context) {
	novelID, ok := parseNovelID(c)
	if !ok {
		return
	}

	novel, err := h.novels.RetryGeneration(c.Request.Context(), novelID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, novel)
}

// getChapters возвращает главы новеллы
func (h *NovelHandler) getChapters(c *gin.Context) {
	novelID, ok := parseNovelID(c)
	if !ok {
		return
	}

	chapters, err := h.novels.GetChapters(c.Request.Context(), novelID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, chapters)
}

// getContents возвращает собранный текст новеллы
func (h *NovelHandler) getContents(c *gin.Context) {
	novelID, ok := parseNovelID(c)
	if !ok {
		return
	}

	contents, err := h.novels.GetContents(c.Request.Context(), novelID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ContentsResponse{NovelID: novelID, Contents: contents})
}

// parseNovelID разбирает novel_id из пути; при ошибке сам пишет ответ
func parseNovelID(c *gin.Context) (uuid.UUID, bool) {
	novelID, err := uuid.Parse(c.Param("novel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: model.ErrInvalidInput.Error() + ": novel_id"})
		return uuid.UUID{}, false
	}
	return novelID, true
}
