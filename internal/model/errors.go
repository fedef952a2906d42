package model

import "errors"

// Стандартные ошибки приложения
var (
	// Ресурсы
	ErrUserNotFound    = errors.New("user not found")
	ErrNovelNotFound   = errors.New("novel not found")
	ErrChapterNotFound = errors.New("chapter not found")

	// Валидация входных данных
	ErrInvalidTextLength = errors.New("text length must be positive")
	ErrInvalidGenre      = errors.New("invalid genre code")
	ErrInvalidMood       = errors.New("invalid mood code")
	ErrInvalidInput      = errors.New("invalid input data")

	// Жизненный цикл генерации
	ErrNovelNotFailed          = errors.New("novel is not in FAILED state")
	ErrPlanMissing             = errors.New("novel has no persisted plan payload")
	ErrNoFailedChapter         = errors.New("novel has no failed chapter to retry")
	ErrPreviousChapterRequired = errors.New("previous chapter content is required for chapters after the first")
	ErrPreviousChapterNotReady = errors.New("previous chapter is not completed")
	ErrGenerationInProgress    = errors.New("generation is already in progress for this novel")
)
