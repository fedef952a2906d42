package api

import (
	"github.com/google/uuid"

	"novelist-server/internal/model"
)

// ErrorResponse - стандартный формат ошибки API
type ErrorResponse struct {
	Error string `json:"error"`
}

// InitNovelRequest - тело запроса на запуск генерации новеллы
type InitNovelRequest struct {
	UserID     uuid.UUID                `json:"user_id" binding:"required"`
	UserPrompt string                   `json:"user_prompt" binding:"required"`
	TextLength int                      `json:"text_length" binding:"required"`
	Settings   model.GenerationSettings `json:"settings"`
}

// InitNovelResponse - результат запуска генерации: первая глава уже
// сгенерирована, остальные появляются через опрос прогресса
type InitNovelResponse struct {
	NovelID            uuid.UUID `json:"novel_id"`
	Title              string    `json:"title"`
	TotalChapterNumber int       `json:"total_chapter_number"`
	FirstChapterText   string    `json:"first_chapter_text"`
}

// CreateUserRequest - тело запроса на создание пользователя
type CreateUserRequest struct {
	UserName string `json:"user_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// UpdateUserRequest - тело запроса на обновление пользователя
type UpdateUserRequest struct {
	UserName string `json:"user_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// ContentsResponse - собранный текст новеллы
type ContentsResponse struct {
	NovelID  uuid.UUID `json:"novel_id"`
	Contents string    `json:"contents"`
}
