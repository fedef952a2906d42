package service

import (
	"context"

	"novelist-server/internal/model"
	"novelist-server/pkg/ai"
)

// Generator - интерфейс к генеративному API, который нужен оркестратору.
// Реализуется ai.Client; в тестах подменяется моком.
type Generator interface {
	GeneratePlot(ctx context.Context, userPrompt string, settings model.GenerationSettings) (string, error)
	GenerateInit(ctx context.Context, overallPlot string, settings model.GenerationSettings, textLength, expectedChapters int) (*model.NovelPlan, string, error)
	GenerateChapter(ctx context.Context, req ai.ChapterRequest) (string, error)
}
