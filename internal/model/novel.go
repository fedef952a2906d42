package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlaceholderContent - содержимое главы до того, как она сгенерирована.
const PlaceholderContent = "NO CONTENT"

// Novel представляет запись о новелле (работе генерации).
type Novel struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	Title          string          `db:"title" json:"title"`
	ShortSummary   string          `db:"short_summary" json:"short_summary"`
	OverallPlot    string          `db:"overall_plot" json:"overall_plot"`
	PlanData       json.RawMessage `db:"plan_data" json:"-"` // исходный JSON плана, нужен для возобновления
	GenreCode      string          `db:"genre_code" json:"genre"`
	Style          string          `db:"style" json:"style"`
	Mood           string          `db:"mood" json:"mood"`
	TextLength     int             `db:"text_length" json:"text_length"`
	TrueTextLength int             `db:"true_text_length" json:"true_text_length"`
	Status         NovelStatus     `db:"status" json:"status"`
	ErrorMessage   string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Chapter представляет одну главу новеллы.
// Номера глав образуют непрерывный диапазон [1..N] без пропусков.
type Chapter struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	NovelID       uuid.UUID   `db:"novel_id" json:"novel_id"`
	ChapterNumber int         `db:"chapter_number" json:"chapter_number"`
	Content       string      `db:"content" json:"content"`
	Plot          string      `db:"plot" json:"plot"`
	Status        NovelStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// GenerationSettings содержит настройки генерации, передаваемые пользователем.
// Раньше это был произвольный словарь; теперь - явная структура с
// опциональными типизированными полями.
type GenerationSettings struct {
	Genre string `json:"genre,omitempty"`
	Style string `json:"style,omitempty"`
	Mood  string `json:"mood,omitempty"`
}

// PlanCharacter - персонаж из начального плана.
type PlanCharacter struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ChapterPlan - план одной главы из начального плана.
type ChapterPlan struct {
	Plot string `json:"plot"`
}

// NovelPlan - структурированный начальный план новеллы, полученный от AI
// одним запросом. Количество элементов ChapterPlots фиксирует число глав
// на весь срок жизни новеллы.
type NovelPlan struct {
	Title        string          `json:"title"`
	Summary      string          `json:"summary"`
	Plot         string          `json:"plot"`
	Characters   []PlanCharacter `json:"characters"`
	ChapterPlots []ChapterPlan   `json:"chapter_plots"`
}
