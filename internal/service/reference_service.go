package service

import (
	"context"

	"novelist-server/internal/model"
	"novelist-server/internal/repository"
)

// ReferenceService отдает справочники жанров и настроений
type ReferenceService struct {
	repo repository.ReferenceRepository
}

// NewReferenceService создает новый экземпляр сервиса справочников
func NewReferenceService(repo repository.ReferenceRepository) *ReferenceService {
	return &ReferenceService{repo: repo}
}

// ListGenres возвращает справочник жанров
func (s *ReferenceService) ListGenres(ctx context.Context) ([]model.Genre, error) {
	return s.repo.ListGenres(ctx)
}

// ListMoods возвращает справочник настроений
func (s *ReferenceService) ListMoods(ctx context.Context) ([]model.Mood, error) {
	return s.repo.ListMoods(ctx)
}
