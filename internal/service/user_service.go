package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"novelist-server/internal/model"
	"novelist-server/internal/repository"
)

// UserService реализует логику работы с пользователями.
// Аутентификации нет: сервис - тонкая обертка над репозиторием с валидацией.
type UserService struct {
	repo repository.UserRepository
}

// NewUserService создает новый экземпляр сервиса пользователей
func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Create создает пользователя
func (s *UserService) Create(ctx context.Context, user model.User) (model.User, error) {
	if strings.TrimSpace(user.UserName) == "" || strings.TrimSpace(user.Email) == "" {
		return model.User{}, model.ErrInvalidInput
	}
	return s.repo.Create(ctx, user)
}

// GetByID возвращает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// List возвращает всех пользователей
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// Update обновляет имя и почту пользователя
func (s *UserService) Update(ctx context.Context, user model.User) (model.User, error) {
	if strings.TrimSpace(user.UserName) == "" || strings.TrimSpace(user.Email) == "" {
		return model.User{}, model.ErrInvalidInput
	}
	return s.repo.Update(ctx, user)
}
