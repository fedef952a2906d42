package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"novelist-server/internal/messaging"
	"novelist-server/internal/model"
	"novelist-server/internal/repository"
	"novelist-server/pkg/taskmanager"
)

// InitNovelParams - параметры запуска генерации новой новеллы
type InitNovelParams struct {
	UserID     uuid.UUID
	UserPrompt string
	TextLength int
	Settings   model.GenerationSettings
}

// ChapterUpdate - одна готовая глава в ответе прогресса
type ChapterUpdate struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Progress - снимок хода генерации для опроса клиентом
type Progress struct {
	Status               model.NovelStatus `json:"status"`
	CurrentChapterNumber int               `json:"current_chapter_number"`
	TotalChapterNumber   int               `json:"total_chapter_number"`
	NewChapters          []ChapterUpdate   `json:"new_chapters"`
}

// InitNovelResult - результат запуска генерации: созданная новелла и
// синхронно сгенерированная первая глава
type InitNovelResult struct {
	Novel            model.Novel
	TotalChapters    int
	FirstChapterText string
}

// NovelService реализует логику работы с новеллами
type NovelService struct {
	repo        repository.NovelRepository
	userRepo    repository.UserRepository
	refRepo     repository.ReferenceRepository
	gen         Generator
	taskManager *taskmanager.Manager
	lock        repository.RunnerLock
	notifier    messaging.Notifier
}

// NewNovelService создает новый экземпляр сервиса новелл
func NewNovelService(
	repo repository.NovelRepository,
	userRepo repository.UserRepository,
	refRepo repository.ReferenceRepository,
	gen Generator,
	tm *taskmanager.Manager,
	lock repository.RunnerLock,
	notifier messaging.Notifier,
) *NovelService {
	return &NovelService{
		repo:        repo,
		userRepo:    userRepo,
		refRepo:     refRepo,
		gen:         gen,
		taskManager: tm,
		lock:        lock,
		notifier:    notifier,
	}
}

// InitNovel создает новеллу и запускает генерацию.
// Синхронно в контексте запроса выполняются планирование и первая глава:
// клиент сразу получает число глав и текст первой главы. Остальные главы
// уходят в фон. Любая ошибка синхронной части переводит уже созданную
// запись в FAILED, чтобы неудачный запуск был виден и диагностируем.
func (s *NovelService) InitNovel(ctx context.Context, params InitNovelParams) (InitNovelResult, error) {
	if params.TextLength <= 0 {
		return InitNovelResult{}, model.ErrInvalidTextLength
	}
	if strings.TrimSpace(params.UserPrompt) == "" {
		return InitNovelResult{}, model.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, params.UserID); err != nil {
		return InitNovelResult{}, err
	}
	if err := s.validateSettings(ctx, params.Settings); err != nil {
		return InitNovelResult{}, err
	}

	novel, err := s.repo.CreateNovel(ctx, model.Novel{
		UserID:     params.UserID,
		GenreCode:  params.Settings.Genre,
		Style:      params.Settings.Style,
		Mood:       params.Settings.Mood,
		TextLength: params.TextLength,
		Status:     model.StatusPending,
	})
	if err != nil {
		return InitNovelResult{}, err
	}

	novelist := NewNovelist(s.gen)
	novelist.SetFirstParams(params.UserPrompt, params.Settings, params.TextLength)

	if err := novelist.Prepare(ctx); err != nil {
		s.failNovel(ctx, novel.ID, params.UserID, err)
		return InitNovelResult{}, err
	}

	trueTextLength := novelist.TotalChapters() * charsPerChapter
	if novelist.TotalChapters() == 1 {
		trueTextLength = params.TextLength
	}

	if err := s.repo.UpdateNovelPlan(ctx, novel.ID, novelist.Plan(), novelist.PlanJSON(), trueTextLength); err != nil {
		s.failNovel(ctx, novel.ID, params.UserID, err)
		return InitNovelResult{}, err
	}

	plots := make([]string, 0, novelist.TotalChapters())
	for _, cp := range novelist.Plan().ChapterPlots {
		plots = append(plots, cp.Plot)
	}
	if err := s.repo.CreateChapterPlaceholders(ctx, novel.ID, plots); err != nil {
		s.failNovel(ctx, novel.ID, params.UserID, err)
		return InitNovelResult{}, err
	}

	if err := s.acquireRunner(ctx, novel.ID); err != nil {
		s.failNovel(ctx, novel.ID, params.UserID, err)
		return InitNovelResult{}, err
	}
	if err := s.beginGeneration(ctx, novel.ID, params.UserID, novelist.TotalChapters()); err != nil {
		s.releaseRunner(ctx, novel.ID)
		s.failNovel(ctx, novel.ID, params.UserID, err)
		return InitNovelResult{}, err
	}

	// Первая глава генерируется здесь же; шаг сам фиксирует FAILED при ошибке
	firstChapter, err := s.generateChapterStep(ctx, novel.ID, params.UserID, novelist)
	if err != nil {
		s.releaseRunner(ctx, novel.ID)
		return InitNovelResult{}, err
	}

	if err := s.submitRunner(ctx, novel.ID, params.UserID, novelist); err != nil {
		s.failNovel(ctx, novel.ID, params.UserID, err)
		return InitNovelResult{}, err
	}

	updated, err := s.repo.GetNovel(ctx, novel.ID)
	if err != nil {
		return InitNovelResult{}, err
	}

	return InitNovelResult{
		Novel:            updated,
		TotalChapters:    novelist.TotalChapters(),
		FirstChapterText: firstChapter,
	}, nil
}

// validateSettings проверяет коды жанра и настроения по справочникам.
// Стиль - свободный текст, не проверяется.
func (s *NovelService) validateSettings(ctx context.Context, settings model.GenerationSettings) error {
	if settings.Genre != "" {
		ok, err := s.refRepo.GenreExists(ctx, settings.Genre)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrInvalidGenre
		}
	}
	if settings.Mood != "" {
		ok, err := s.refRepo.MoodExists(ctx, settings.Mood)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrInvalidMood
		}
	}
	return nil
}

// acquireRunner захватывает право генерировать новеллу: сначала проверка
// активной задачи в процессе, затем межпроцессная блокировка.
func (s *NovelService) acquireRunner(ctx context.Context, novelID uuid.UUID) error {
	if s.taskManager.HasActiveTask(novelID) {
		return model.ErrGenerationInProgress
	}

	acquired, err := s.lock.Acquire(ctx, novelID)
	if err != nil {
		return err
	}
	if !acquired {
		return model.ErrGenerationInProgress
	}
	return nil
}

func (s *NovelService) releaseRunner(ctx context.Context, novelID uuid.UUID) {
	if err := s.lock.Release(ctx, novelID); err != nil {
		log.Error().Err(err).Str("novelID", novelID.String()).Msg("Не удалось снять блокировку исполнителя")
	}
}

// beginGeneration переводит новеллу в GENERATING и объявляет старт
func (s *NovelService) beginGeneration(ctx context.Context, novelID, userID uuid.UUID, totalChapters int) error {
	if err := s.repo.UpdateNovelStatus(ctx, novelID, model.StatusGenerating); err != nil {
		return err
	}
	s.notifier.NotifyNovelEvent(ctx, messaging.NovelEvent{
		Event:         messaging.EventGenerationStarted,
		NovelID:       novelID,
		UserID:        userID,
		TotalChapters: totalChapters,
	})
	return nil
}

// submitRunner отправляет цикл генерации оставшихся глав в фон.
// Блокировка исполнителя уже захвачена вызывающим и снимается задачей.
// Запускается и когда все главы уже готовы: цикл обнаружит завершенность
// и зафиксирует COMPLETED.
func (s *NovelService) submitRunner(ctx context.Context, novelID, userID uuid.UUID, novelist *Novelist) error {
	_, err := s.taskManager.SubmitNovelTask(ctx, novelID, func(taskCtx context.Context) error {
		// Контекст задачи переживает HTTP-запрос, снимаем блокировку отдельно
		defer s.releaseRunner(context.Background(), novelID)
		return s.runGeneration(taskCtx, novelID, userID, novelist)
	})
	if err != nil {
		s.releaseRunner(ctx, novelID)
		if errors.Is(err, taskmanager.ErrNovelBusy) {
			return model.ErrGenerationInProgress
		}
		return err
	}
	return nil
}

// generateChapterStep выполняет один шаг генерации: глава, на которой
// стоит курсор, проходит GENERATING -> COMPLETED (или FAILED, и тогда
// новелла тоже роняется в FAILED). Каждый переход пишется в базу
// отдельным запросом: опрос прогресса в любой момент видит либо
// состояние до шага, либо после.
func (s *NovelService) generateChapterStep(ctx context.Context, novelID, userID uuid.UUID, novelist *Novelist) (string, error) {
	num := novelist.NextChapterNumber()

	if err := s.repo.UpdateChapterStatus(ctx, novelID, num, model.StatusGenerating); err != nil {
		s.failNovel(ctx, novelID, userID, err)
		return "", err
	}

	_, content, genErr := novelist.WriteNextChapter(ctx)
	if genErr != nil {
		log.Error().Err(genErr).Str("novelID", novelID.String()).Int("chapter", num).Msg("Ошибка генерации главы")
		if failErr := s.repo.FailChapter(ctx, novelID, num); failErr != nil {
			log.Error().Err(failErr).Str("novelID", novelID.String()).Int("chapter", num).Msg("Не удалось отметить главу как FAILED")
		}
		s.failNovel(ctx, novelID, userID, genErr)
		return "", genErr
	}

	if err := s.repo.CompleteChapter(ctx, novelID, num, content); err != nil {
		s.failNovel(ctx, novelID, userID, err)
		return "", err
	}

	log.Info().Str("novelID", novelID.String()).Int("chapter", num).Int("totalChapters", novelist.TotalChapters()).Msg("Глава сгенерирована")
	s.notifier.NotifyNovelEvent(ctx, messaging.NovelEvent{
		Event:         messaging.EventChapterCompleted,
		NovelID:       novelID,
		UserID:        userID,
		ChapterNumber: num,
		TotalChapters: novelist.TotalChapters(),
	})

	return content, nil
}

// runGeneration - цикл фоновой генерации глав. Первая же ошибка главы
// останавливает цикл, новелла уже в FAILED силами generateChapterStep.
func (s *NovelService) runGeneration(ctx context.Context, novelID, userID uuid.UUID, novelist *Novelist) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("novelID", novelID.String()).Interface("panic", r).Msg("Паника в цикле генерации")
			err = fmt.Errorf("паника в цикле генерации: %v", r)
			s.failNovel(ctx, novelID, userID, err)
		}
	}()

	for !novelist.IsCompleted() {
		if _, err := s.generateChapterStep(ctx, novelID, userID, novelist); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateNovelStatus(ctx, novelID, model.StatusCompleted); err != nil {
		return err
	}
	s.notifier.NotifyNovelEvent(ctx, messaging.NovelEvent{
		Event:         messaging.EventGenerationCompleted,
		NovelID:       novelID,
		UserID:        userID,
		TotalChapters: novelist.TotalChapters(),
	})

	log.Info().Str("novelID", novelID.String()).Msg("Генерация новеллы завершена")
	return nil
}

// failNovel переводит новеллу в FAILED и рассылает уведомление
func (s *NovelService) failNovel(ctx context.Context, novelID, userID uuid.UUID, cause error) {
	if err := s.repo.MarkNovelFailed(ctx, novelID, cause.Error()); err != nil {
		log.Error().Err(err).Str("novelID", novelID.String()).Msg("Не удалось отметить новеллу как FAILED")
	}
	s.notifier.NotifyNovelEvent(ctx, messaging.NovelEvent{
		Event:        messaging.EventGenerationFailed,
		NovelID:      novelID,
		UserID:       userID,
		ErrorMessage: cause.Error(),
	})
}

// GetProgress возвращает снимок прогресса генерации.
// lastSeen - номер последней главы, которую клиент уже получил; в ответ
// попадают только непрерывно готовые главы после нее. Глава после первой
// незавершенной не отдается, даже если сама готова: клиент читает
// по порядку.
func (s *NovelService) GetProgress(ctx context.Context, novelID uuid.UUID, lastSeen int) (Progress, error) {
	if lastSeen < 0 {
		return Progress{}, model.ErrInvalidInput
	}

	novel, err := s.repo.GetNovel(ctx, novelID)
	if err != nil {
		return Progress{}, err
	}

	chapters, err := s.repo.GetChapters(ctx, novelID)
	if err != nil {
		return Progress{}, err
	}

	total := len(chapters)
	current := total
	newChapters := []ChapterUpdate{}

	for _, ch := range chapters {
		if ch.Status != model.StatusCompleted {
			current = ch.ChapterNumber
			break
		}
		if ch.ChapterNumber > lastSeen {
			newChapters = append(newChapters, ChapterUpdate{
				Index:   ch.ChapterNumber,
				Content: ch.Content,
			})
		}
	}

	return Progress{
		Status:               novel.Status,
		CurrentChapterNumber: current,
		TotalChapterNumber:   total,
		NewChapters:          newChapters,
	}, nil
}

// RetryGeneration возобновляет генерацию упавшей новеллы с первой
// неудавшейся главы. Требования: новелла в FAILED, план сохранен,
// для глав после первой предыдущая глава должна быть готова.
func (s *NovelService) RetryGeneration(ctx context.Context, novelID uuid.UUID) (model.Novel, error) {
	novel, err := s.repo.GetNovel(ctx, novelID)
	if err != nil {
		return model.Novel{}, err
	}
	if novel.Status != model.StatusFailed {
		return model.Novel{}, model.ErrNovelNotFailed
	}
	if len(novel.PlanData) == 0 {
		return model.Novel{}, model.ErrPlanMissing
	}

	failedNum, err := s.repo.FirstChapterWithStatus(ctx, novelID, model.StatusFailed)
	if err != nil {
		if errors.Is(err, model.ErrChapterNotFound) {
			// Новелла могла упасть между главами (например, на записи
			// статуса); продолжаем с первой незавершенной главы.
			failedNum, err = s.firstUnfinishedChapter(ctx, novelID)
			if err != nil {
				return model.Novel{}, err
			}
		} else {
			return model.Novel{}, err
		}
	}

	previousContent := ""
	totalSoFar := 0
	if failedNum > 1 {
		prev, err := s.repo.GetChapterByNumber(ctx, novelID, failedNum-1)
		if err != nil {
			return model.Novel{}, err
		}
		if prev.Status != model.StatusCompleted {
			return model.Novel{}, model.ErrPreviousChapterNotReady
		}
		previousContent = prev.Content

		chapters, err := s.repo.GetChapters(ctx, novelID)
		if err != nil {
			return model.Novel{}, err
		}
		for _, ch := range chapters {
			if ch.ChapterNumber < failedNum && ch.Status == model.StatusCompleted {
				totalSoFar += len([]rune(ch.Content))
			}
		}
	}

	novelist := NewNovelist(s.gen)
	novelist.SetFirstParams("", model.GenerationSettings{
		Genre: novel.GenreCode,
		Style: novel.Style,
		Mood:  novel.Mood,
	}, novel.TextLength)
	if err := novelist.ResumeFrom(novel.PlanData, failedNum, previousContent, totalSoFar); err != nil {
		return model.Novel{}, err
	}

	if err := s.acquireRunner(ctx, novelID); err != nil {
		return model.Novel{}, err
	}
	if err := s.beginGeneration(ctx, novelID, novel.UserID, novelist.TotalChapters()); err != nil {
		s.releaseRunner(ctx, novelID)
		return model.Novel{}, err
	}

	// Упавшая глава перегенерируется синхронно: вызывающий сразу узнает,
	// удалось ли возобновление. Остальные главы уходят в фон.
	if _, err := s.generateChapterStep(ctx, novelID, novel.UserID, novelist); err != nil {
		s.releaseRunner(ctx, novelID)
		return model.Novel{}, err
	}

	if err := s.submitRunner(ctx, novelID, novel.UserID, novelist); err != nil {
		// Без фонового исполнителя новелла осталась бы висеть в GENERATING
		// и повтор был бы невозможен; возвращаем ее в FAILED
		s.failNovel(ctx, novelID, novel.UserID, err)
		return model.Novel{}, err
	}

	log.Info().Str("novelID", novelID.String()).Int("fromChapter", failedNum).Msg("Генерация возобновлена")
	return s.repo.GetNovel(ctx, novelID)
}

// firstUnfinishedChapter возвращает первую главу не в статусе COMPLETED
func (s *NovelService) firstUnfinishedChapter(ctx context.Context, novelID uuid.UUID) (int, error) {
	chapters, err := s.repo.GetChapters(ctx, novelID)
	if err != nil {
		return 0, err
	}
	for _, ch := range chapters {
		if ch.Status != model.StatusCompleted {
			return ch.ChapterNumber, nil
		}
	}
	return 0, model.ErrNoFailedChapter
}

// GetNovel возвращает новеллу по ID
func (s *NovelService) GetNovel(ctx context.Context, id uuid.UUID) (model.Novel, error) {
	return s.repo.GetNovel(ctx, id)
}

// ListNovels возвращает новеллы, опционально по пользователю
func (s *NovelService) ListNovels(ctx context.Context, userID *uuid.UUID) ([]model.Novel, error) {
	return s.repo.ListNovels(ctx, userID)
}

// GetChapters возвращает главы новеллы по порядку
func (s *NovelService) GetChapters(ctx context.Context, novelID uuid.UUID) ([]model.Chapter, error) {
	if _, err := s.repo.GetNovel(ctx, novelID); err != nil {
		return nil, err
	}
	return s.repo.GetChapters(ctx, novelID)
}

// GetContents возвращает готовый текст новеллы: содержимое завершенных
// глав по порядку, разделенное пустой строкой.
func (s *NovelService) GetContents(ctx context.Context, novelID uuid.UUID) (string, error) {
	if _, err := s.repo.GetNovel(ctx, novelID); err != nil {
		return "", err
	}

	chapters, err := s.repo.GetChapters(ctx, novelID)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		if ch.Status == model.StatusCompleted {
			parts = append(parts, ch.Content)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
