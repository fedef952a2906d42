package model

import "fmt"

// NovelStatus представляет статус генерации новеллы или главы.
// Закрытое перечисление: любые другие значения считаются ошибкой данных.
type NovelStatus string

// Возможные статусы генерации
const (
	StatusPending    NovelStatus = "PENDING"
	StatusGenerating NovelStatus = "GENERATING"
	StatusCompleted  NovelStatus = "COMPLETED"
	StatusFailed     NovelStatus = "FAILED"
)

// Valid проверяет, что статус входит в закрытое множество значений.
func (s NovelStatus) Valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal возвращает true для конечных статусов (COMPLETED, FAILED).
func (s NovelStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseNovelStatus преобразует строку из БД в NovelStatus.
func ParseNovelStatus(raw string) (NovelStatus, error) {
	s := NovelStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown novel status: %q", raw)
	}
	return s, nil
}
