package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"novelist-server/internal/model"
	"novelist-server/internal/service"
)

// UserHandler обслуживает маршруты пользователей
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler создает новый экземпляр обработчика пользователей
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes регистрирует маршруты пользователей в группе
func (h *UserHandler) RegisterRoutes(group *gin.RouterGroup) {
	users := group.Group("/users")
	{
		users.POST("", h.createUser)
		users.GET("", h.listUsers)
		users.GET("/:user_id", h.getUser)
		users.PUT("/:user_id", h.updateUser)
	}
}

// createUser создает пользователя
func (h *UserHandler) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), model.User{
		UserName: req.UserName,
		Email:    req.Email,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// listUsers возвращает всех пользователей
func (h *UserHandler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// getUser возвращает пользователя по ID
func (h *UserHandler) getUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// updateUser обновляет имя и почту пользователя
func (h *UserHandler) updateUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	user, err := h.users.Update(c.Request.Context(), model.User{
		ID:       userID,
		UserName: req.UserName,
		Email:    req.Email,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// parseUserID разбирает user_id из пути; при ошибке сам пишет ответ
func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: model.ErrInvalidInput.Error() + ": user_id"})
		return uuid.UUID{}, false
	}
	return userID, true
}
