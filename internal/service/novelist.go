package service

import (
	"context"
	"encoding/json"
	"fmt"

	"novelist-server/internal/model"
	"novelist-server/pkg/ai"
)

// Пороговые значения расчета числа глав. Тексты короче minMultiChapterLength
// умещаются в одну главу; дальше - по одной главе на каждые charsPerChapter
// символов.
const (
	minMultiChapterLength = 4000
	charsPerChapter       = 2000
)

// CalcChapterCount вычисляет число глав по запрошенной длине текста.
// Результат фиксируется при планировании и не меняется до конца жизни новеллы.
func CalcChapterCount(textLength int) int {
	if textLength < minMultiChapterLength {
		return 1
	}
	return textLength / charsPerChapter
}

// Novelist - оркестратор пошаговой генерации одной новеллы.
// Держит курсор генерации: номер следующей главы, текст предыдущей главы
// и накопленную длину. Не обращается к базе; персистентность - забота
// вызывающего, что позволяет восстановить курсор из сохраненного плана.
type Novelist struct {
	gen Generator

	userPrompt string
	settings   model.GenerationSettings
	textLength int

	plan          *model.NovelPlan
	planJSON      json.RawMessage
	totalChapters int

	nextChapterNum  int
	previousChapter string
	totalTextLength int
}

// NewNovelist создает оркестратор генерации
func NewNovelist(gen Generator) *Novelist {
	return &Novelist{gen: gen}
}

// SetFirstParams задает исходные параметры до планирования
func (n *Novelist) SetFirstParams(userPrompt string, settings model.GenerationSettings, textLength int) {
	n.userPrompt = userPrompt
	n.settings = settings
	n.textLength = textLength
}

// Prepare выполняет планирование: генерирует общий сюжет, затем запрашивает
// структурированный план с фиксированным числом глав. После успешного
// Prepare курсор стоит на первой главе.
func (n *Novelist) Prepare(ctx context.Context) error {
	if n.textLength <= 0 {
		return model.ErrInvalidTextLength
	}

	expectedChapters := CalcChapterCount(n.textLength)

	overallPlot, err := n.gen.GeneratePlot(ctx, n.userPrompt, n.settings)
	if err != nil {
		return fmt.Errorf("ошибка генерации сюжета: %w", err)
	}

	plan, rawJSON, err := n.gen.GenerateInit(ctx, overallPlot, n.settings, n.textLength, expectedChapters)
	if err != nil {
		return fmt.Errorf("ошибка генерации плана: %w", err)
	}

	n.plan = plan
	n.planJSON = json.RawMessage(rawJSON)
	n.totalChapters = len(plan.ChapterPlots)
	n.nextChapterNum = 1
	n.previousChapter = ""
	n.totalTextLength = 0

	return nil
}

// ResumeFrom восстанавливает курсор из сохраненного плана для продолжения
// прерванной генерации. Для глав после первой обязателен текст предыдущей
// главы: без него не обеспечить связность.
func (n *Novelist) ResumeFrom(planJSON json.RawMessage, nextChapter int, previousChapter string, totalTextLength int) error {
	if len(planJSON) == 0 {
		return model.ErrPlanMissing
	}

	var plan model.NovelPlan
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		return fmt.Errorf("не удалось разобрать сохраненный план: %w", err)
	}
	if len(plan.ChapterPlots) == 0 {
		return model.ErrPlanMissing
	}

	if nextChapter < 1 || nextChapter > len(plan.ChapterPlots) {
		return fmt.Errorf("номер главы %d вне диапазона [1..%d]", nextChapter, len(plan.ChapterPlots))
	}
	if nextChapter > 1 && previousChapter == "" {
		return model.ErrPreviousChapterRequired
	}

	n.plan = &plan
	n.planJSON = planJSON
	n.totalChapters = len(plan.ChapterPlots)
	n.nextChapterNum = nextChapter
	n.previousChapter = previousChapter
	n.totalTextLength = totalTextLength

	return nil
}

// WriteNextChapter генерирует главу, на которой стоит курсор, и сдвигает
// курсор вперед. Возвращает номер и текст сгенерированной главы.
func (n *Novelist) WriteNextChapter(ctx context.Context) (int, string, error) {
	if n.plan == nil {
		return 0, "", model.ErrPlanMissing
	}
	if n.IsCompleted() {
		return 0, "", fmt.Errorf("все %d глав уже сгенерированы", n.totalChapters)
	}

	num := n.nextChapterNum
	content, err := n.gen.GenerateChapter(ctx, ai.ChapterRequest{
		Plan:            n.plan,
		ChapterNumber:   num,
		TotalChapters:   n.totalChapters,
		ChapterPlot:     n.plan.ChapterPlots[num-1].Plot,
		PreviousChapter: n.previousChapter,
		Settings:        n.settings,
		TargetLength:    n.chapterTargetLength(),
	})
	if err != nil {
		return num, "", err
	}

	n.nextChapterNum++
	n.previousChapter = content
	n.totalTextLength += len([]rune(content))

	return num, content, nil
}

// chapterTargetLength - желаемая длина одной главы в символах.
func (n *Novelist) chapterTargetLength() int {
	if n.totalChapters == 0 {
		return 0
	}
	if n.textLength > 0 {
		return n.textLength / n.totalChapters
	}
	return charsPerChapter
}

// IsCompleted сообщает, сгенерированы ли все главы
func (n *Novelist) IsCompleted() bool {
	return n.plan != nil && n.nextChapterNum > n.totalChapters
}

// Plan возвращает план новеллы (nil до Prepare/ResumeFrom)
func (n *Novelist) Plan() *model.NovelPlan {
	return n.plan
}

// PlanJSON возвращает сырой JSON плана для сохранения
func (n *Novelist) PlanJSON() json.RawMessage {
	return n.planJSON
}

// TotalChapters возвращает зафиксированное число глав
func (n *Novelist) TotalChapters() int {
	return n.totalChapters
}

// NextChapterNumber возвращает номер главы, на которой стоит курсор
func (n *Novelist) NextChapterNumber() int {
	return n.nextChapterNum
}

// TotalTextLength возвращает накопленную длину сгенерированного текста
func (n *Novelist) TotalTextLength() int {
	return n.totalTextLength
}
