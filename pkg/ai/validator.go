package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"novelist-server/internal/model"

	"github.com/sashabaranov/go-openai"
)

// ValidateResponse проверяет сырой ответ chat completion и возвращает текст.
// Причина завершения отображается в вид ошибки: обрыв по лимиту токенов,
// фильтру безопасности и рецитации - это разные классы проблем с разной
// политикой повторов.
func ValidateResponse(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", newError(KindEmptyResponse, "ответ не содержит ни одного варианта")
	}

	choice := resp.Choices[0]
	finishReason := string(choice.FinishReason)

	switch choice.FinishReason {
	case openai.FinishReasonStop, "":
		// нормальное завершение
	case openai.FinishReasonLength:
		err := newError(KindMaxTokens, "генерация оборвана по лимиту токенов")
		err.FinishReason = finishReason
		return "", err.withExcerpt(choice.Message.Content)
	case openai.FinishReasonContentFilter:
		err := newError(KindSafetyFilter, "генерация заблокирована фильтром безопасности")
		err.FinishReason = finishReason
		return "", err
	default:
		if strings.EqualFold(finishReason, "recitation") {
			err := newError(KindRecitation, "генерация оборвана из-за рецитации")
			err.FinishReason = finishReason
			return "", err.withExcerpt(choice.Message.Content)
		}
		err := newError(KindUnexpectedTermination, "генерация завершилась с неизвестной причиной")
		err.FinishReason = finishReason
		return "", err.withExcerpt(choice.Message.Content)
	}

	content := choice.Message.Content
	if strings.TrimSpace(content) == "" {
		return "", newError(KindEmptyResponse, "вариант ответа содержит пустой текст")
	}

	return content, nil
}

// ExtractJSON вырезает JSON-объект из текстового ответа модели.
// Модели любят заворачивать JSON в markdown-ограждения и пояснения,
// поэтому берем подстроку от первой '{' до последней '}'. Переводы строк
// убираются до поиска: незакавыченные переносы внутри строковых значений
// встречаются достаточно часто, чтобы ломать последующий Unmarshal.
func ExtractJSON(raw string) (string, error) {
	flat := strings.ReplaceAll(raw, "\n", " ")
	flat = strings.ReplaceAll(flat, "\r", " ")

	start := strings.Index(flat, "{")
	end := strings.LastIndex(flat, "}")
	if start == -1 || end == -1 || end < start {
		return "", newError(KindInvalidStructure, "в ответе не найден JSON-объект").withExcerpt(raw)
	}

	return flat[start : end+1], nil
}

// planKeys - обязательные ключи верхнего уровня начального плана.
var planKeys = []string{"title", "summary", "plot", "characters", "chapter_plots"}

// ValidatePlan разбирает и проверяет начальный план новеллы.
// expectedChapters фиксируется вычислением до запроса; план, в котором
// модель вернула другое число глав, непригоден целиком, поскольку
// нумерация глав неизменна на весь срок жизни новеллы.
func ValidatePlan(jsonStr string, expectedChapters int) (*model.NovelPlan, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &probe); err != nil {
		return nil, wrapError(KindInvalidStructure, "план не является валидным JSON", err).withExcerpt(jsonStr)
	}

	var missing []string
	for _, key := range planKeys {
		if _, ok := probe[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		err := newError(KindInvalidStructure, "в плане отсутствуют обязательные ключи")
		err.MissingKeys = missing
		return nil, err.withExcerpt(jsonStr)
	}

	var plan model.NovelPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return nil, wrapError(KindInvalidStructure, "план не соответствует ожидаемой схеме", err).withExcerpt(jsonStr)
	}

	if strings.TrimSpace(plan.Title) == "" {
		return nil, newError(KindInvalidStructure, "план содержит пустой заголовок").withExcerpt(jsonStr)
	}
	if len(plan.Characters) == 0 {
		return nil, newError(KindInvalidStructure, "план не содержит ни одного персонажа").withExcerpt(jsonStr)
	}
	for i, ch := range plan.Characters {
		if strings.TrimSpace(ch.Name) == "" {
			return nil, newError(KindInvalidStructure, fmt.Sprintf("персонаж %d не имеет имени", i+1)).withExcerpt(jsonStr)
		}
	}
	for i, cp := range plan.ChapterPlots {
		if strings.TrimSpace(cp.Plot) == "" {
			return nil, newError(KindInvalidStructure, fmt.Sprintf("план главы %d пуст", i+1)).withExcerpt(jsonStr)
		}
	}

	if len(plan.ChapterPlots) != expectedChapters {
		err := newError(KindChapterCountMismatch, fmt.Sprintf(
			"модель вернула %d планов глав вместо %d", len(plan.ChapterPlots), expectedChapters))
		return nil, err.withExcerpt(jsonStr)
	}

	return &plan, nil
}
