package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"novelist-server/internal/model"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "deepseek/deepseek-chat-v3-0324:free"

	// previousChapterWindow - сколько последних символов предыдущей главы
	// попадает в промпт следующей. Полный текст не нужен: модель держит
	// связность по хвосту, а промпт не разрастается с номером главы.
	previousChapterWindow = 2000
)

const plotSystemPrompt = `Ты опытный писатель. На основе пожеланий пользователя придумай общий сюжет новеллы: завязку, развитие и развязку одним связным текстом. Отвечай только текстом сюжета, без заголовков и пояснений.`

const initSystemPrompt = `Ты опытный писатель, который планирует новеллу целиком до начала работы над текстом. На основе общего сюжета и настроек составь план и верни его строго одним JSON-объектом без пояснений и markdown-ограждений, со следующими ключами:
"title" - название новеллы,
"summary" - краткое описание в два-три предложения,
"plot" - развернутый общий сюжет,
"characters" - массив объектов {"name", "role"} с основными персонажами (минимум один),
"chapter_plots" - массив объектов {"plot"} с планом каждой главы по порядку. Количество элементов должно быть ровно таким, как указано в запросе.`

const chapterSystemPrompt = `Ты опытный писатель, который пишет новеллу по заранее составленному плану. Напиши полный текст указанной главы: связную художественную прозу, согласованную с общим сюжетом, персонажами и концовкой предыдущей главы, если она приведена. Отвечай только текстом главы, без названия и служебных пометок.`

// completer - минимальный интерфейс к chat completion API.
// Выделен ради подмены транспорта в тестах.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client предоставляет интерфейс для работы с API нейросети
type Client struct {
	api       completer
	modelName string
	timeout   time.Duration

	plotPolicy    RetryPolicy
	initPolicy    RetryPolicy
	chapterPolicy RetryPolicy
}

// Config содержит конфигурацию для клиента нейросети
type Config struct {
	APIKey    string
	ModelName string
	BaseURL   string
	Timeout   int // секунды на один запрос к API
}

// New создает новый экземпляр клиента нейросети
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ для OpenRouter")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 600
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL

	return &Client{
		api:           openai.NewClientWithConfig(config),
		modelName:     cfg.ModelName,
		timeout:       time.Duration(cfg.Timeout) * time.Second,
		plotPolicy:    QuickRequestPolicy(),
		initPolicy:    JSONGenerationPolicy(),
		chapterPolicy: NovelGenerationPolicy(),
	}, nil
}

// GeneratePlot генерирует общий сюжет новеллы по пожеланиям пользователя.
func (c *Client) GeneratePlot(ctx context.Context, userPrompt string, settings model.GenerationSettings) (string, error) {
	req := c.request(plotSystemPrompt, buildPlotPrompt(userPrompt, settings), 0.8, 4000)
	return c.complete(ctx, "generate_plot", c.plotPolicy, req)
}

// GenerateInit генерирует начальный план новеллы одним структурированным
// запросом. Возвращает разобранный план и его сырой JSON для сохранения.
// Ответ с неверной структурой или неверным числом глав повторяется по
// политике JSON-генерации, каждый раз новым запросом к модели.
func (c *Client) GenerateInit(ctx context.Context, overallPlot string, settings model.GenerationSettings, textLength, expectedChapters int) (*model.NovelPlan, string, error) {
	userPrompt := buildInitPrompt(overallPlot, settings, textLength, expectedChapters)
	req := c.request(initSystemPrompt, userPrompt, 0.7, 8000)

	start := time.Now()
	var plan *model.NovelPlan
	var rawJSON string
	var completion string

	err := c.initPolicy.Do(ctx, "generate_init", func() error {
		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}

		text, err := ValidateResponse(resp)
		if err != nil {
			return err
		}
		completion = text

		jsonStr, err := ExtractJSON(text)
		if err != nil {
			return err
		}

		p, err := ValidatePlan(jsonStr, expectedChapters)
		if err != nil {
			return err
		}

		plan = p
		rawJSON = jsonStr
		return nil
	})
	observeRequest("generate_init", start, userPrompt, completion, err)
	if err != nil {
		return nil, "", err
	}

	log.Info().
		Str("model", c.modelName).
		Str("title", plan.Title).
		Int("chapters", len(plan.ChapterPlots)).
		Msg("Получен план новеллы")

	return plan, rawJSON, nil
}

// ChapterRequest описывает один запрос на генерацию текста главы.
type ChapterRequest struct {
	Plan            *model.NovelPlan
	ChapterNumber   int
	TotalChapters   int
	ChapterPlot     string
	PreviousChapter string // полный текст предыдущей главы; пусто для первой
	Settings        model.GenerationSettings
	TargetLength    int // желаемая длина главы в символах
}

// GenerateChapter генерирует полный текст одной главы.
func (c *Client) GenerateChapter(ctx context.Context, chReq ChapterRequest) (string, error) {
	userPrompt := buildChapterPrompt(chReq)
	req := c.request(chapterSystemPrompt, userPrompt, 0.7, 15000)

	content, err := c.complete(ctx, "generate_chapter", c.chapterPolicy, req)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("model", c.modelName).
		Int("chapter", chReq.ChapterNumber).
		Int("length", len(content)).
		Msg("Получен текст главы")

	return content, nil
}

// request собирает типовой chat completion запрос.
func (c *Client) request(systemPrompt, userPrompt string, temperature float32, maxTokens int) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        0.95,
	}
}

// complete выполняет запрос с повторами и возвращает валидированный текст.
func (c *Client) complete(ctx context.Context, op string, policy RetryPolicy, req openai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	var content string

	err := policy.Do(ctx, op, func() error {
		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}

		text, err := ValidateResponse(resp)
		if err != nil {
			return err
		}

		content = text
		return nil
	})
	observeRequest(op, start, promptText(req), content, err)
	if err != nil {
		return "", err
	}

	return content, nil
}

// send выполняет один сетевой вызов с таймаутом и классифицирует его ошибку.
func (c *Client) send(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(reqCtx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, classifyRequestError(err)
	}
	return resp, nil
}

// classifyRequestError отображает транспортные ошибки и ошибки API
// в таксономию пакета.
func classifyRequestError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindTimeout, "запрос к API превысил таймаут", err)
	}
	if errors.Is(err, context.Canceled) {
		return wrapError(KindTimeout, "запрос к API отменен", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return wrapError(KindAuthentication, "API отклонил учетные данные", err)
		case apiErr.HTTPStatusCode == 429:
			// go-openai не отдает заголовки ответа, так что подсказку
			// Retry-After взять неоткуда; пауза берется из политики повторов
			return wrapError(KindRateLimit, "API ограничил частоту запросов", err)
		case apiErr.HTTPStatusCode >= 500:
			return wrapError(KindNetwork, "ошибка на стороне провайдера", err)
		default:
			return wrapError(KindUnexpectedTermination,
				fmt.Sprintf("API вернул неожиданный статус %d", apiErr.HTTPStatusCode), err)
		}
	}

	return wrapError(KindNetwork, "сетевая ошибка при запросе к API", err)
}

func buildPlotPrompt(userPrompt string, settings model.GenerationSettings) string {
	var b strings.Builder
	writeSettings(&b, settings)
	b.WriteString("Пожелания пользователя: ")
	b.WriteString(userPrompt)
	return b.String()
}

func buildInitPrompt(overallPlot string, settings model.GenerationSettings, textLength, expectedChapters int) string {
	var b strings.Builder
	writeSettings(&b, settings)
	fmt.Fprintf(&b, "Общая длина новеллы: примерно %d символов.\n", textLength)
	fmt.Fprintf(&b, "Количество глав: ровно %d. Массив chapter_plots должен содержать ровно %d элементов.\n\n", expectedChapters, expectedChapters)
	b.WriteString("Общий сюжет:\n")
	b.WriteString(overallPlot)
	return b.String()
}

func buildChapterPrompt(chReq ChapterRequest) string {
	var b strings.Builder
	writeSettings(&b, chReq.Settings)

	if chReq.Plan != nil {
		fmt.Fprintf(&b, "Новелла: %s\n", chReq.Plan.Title)
		fmt.Fprintf(&b, "Общий сюжет: %s\n", chReq.Plan.Plot)
		if len(chReq.Plan.Characters) > 0 {
			b.WriteString("Персонажи:\n")
			for _, ch := range chReq.Plan.Characters {
				fmt.Fprintf(&b, "- %s (%s)\n", ch.Name, ch.Role)
			}
		}
	}

	fmt.Fprintf(&b, "\nГлава %d из %d.\n", chReq.ChapterNumber, chReq.TotalChapters)
	fmt.Fprintf(&b, "План главы: %s\n", chReq.ChapterPlot)
	if chReq.TargetLength > 0 {
		fmt.Fprintf(&b, "Желаемая длина главы: примерно %d символов.\n", chReq.TargetLength)
	}

	if chReq.ChapterNumber > 1 && chReq.PreviousChapter != "" {
		b.WriteString("\nКонцовка предыдущей главы (продолжай связно с этого места):\n")
		b.WriteString(tailRunes(chReq.PreviousChapter, previousChapterWindow))
		b.WriteString("\n")
	}

	return b.String()
}

func writeSettings(b *strings.Builder, settings model.GenerationSettings) {
	if settings.Genre != "" {
		fmt.Fprintf(b, "Жанр: %s\n", settings.Genre)
	}
	if settings.Style != "" {
		fmt.Fprintf(b, "Стиль: %s\n", settings.Style)
	}
	if settings.Mood != "" {
		fmt.Fprintf(b, "Настроение: %s\n", settings.Mood)
	}
}

// tailRunes возвращает последние n символов строки, не разрывая UTF-8.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// promptText склеивает текст сообщений запроса для оценки размера промпта.
func promptText(req openai.ChatCompletionRequest) string {
	var b strings.Builder
	for _, m := range req.Messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
