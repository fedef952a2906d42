package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Ошибки менеджера задач
var (
	ErrTooManyTasks = errors.New("превышено максимальное количество активных задач")
	ErrNovelBusy    = errors.New("по этой новелле уже выполняется задача")
	ErrShuttingDown = errors.New("менеджер задач завершает работу")
)

// TaskStatus представляет статус задачи
type TaskStatus string

// Возможные статусы задач
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task представляет асинхронную задачу генерации
type Task struct {
	ID        uuid.UUID
	NovelID   uuid.UUID
	Status    TaskStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Cancel    context.CancelFunc
}

// TaskFunc представляет функцию, выполняемую в задаче
type TaskFunc func(ctx context.Context) error

// Manager управляет фоновыми задачами генерации.
// Инвариант: на одну новеллу - не более одной активной задачи.
type Manager struct {
	tasks      map[uuid.UUID]*Task
	novelTasks map[uuid.UUID]uuid.UUID // novelID -> ID активной задачи
	mu         sync.RWMutex
	maxTasks   int
	closing    bool
	wg         sync.WaitGroup
}

// Config содержит конфигурацию для Manager
type Config struct {
	MaxTasks int
}

// New создает новый экземпляр Manager
func New(cfg Config) *Manager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}

	return &Manager{
		tasks:      make(map[uuid.UUID]*Task),
		novelTasks: make(map[uuid.UUID]uuid.UUID),
		maxTasks:   maxTasks,
	}
}

// SubmitNovelTask создает и запускает задачу для новеллы.
// Возвращает ErrNovelBusy, если по новелле уже есть активная задача.
// Контекст задачи независим от ctx вызывающего: HTTP-запрос, запустивший
// генерацию, завершается сразу, а генерация живет дальше.
func (m *Manager) SubmitNovelTask(ctx context.Context, novelID uuid.UUID, taskFunc TaskFunc) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return uuid.UUID{}, ErrShuttingDown
	}

	if _, busy := m.novelTasks[novelID]; busy {
		return uuid.UUID{}, ErrNovelBusy
	}

	active := 0
	for _, task := range m.tasks {
		if task.Status == TaskStatusPending || task.Status == TaskStatusRunning {
			active++
		}
	}
	if active >= m.maxTasks {
		return uuid.UUID{}, ErrTooManyTasks
	}

	taskID := uuid.New()

	baseTaskCtx, cancel := context.WithCancel(context.Background())
	taskLogger := log.Ctx(ctx)
	taskCtx := taskLogger.WithContext(baseTaskCtx)

	task := &Task{
		ID:        taskID,
		NovelID:   novelID,
		Status:    TaskStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Cancel:    cancel,
	}

	m.tasks[taskID] = task
	m.novelTasks[novelID] = taskID

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		m.runTask(taskCtx, task, taskFunc)
	}()

	return taskID, nil
}

// runTask выполняет задачу и обновляет ее статус
func (m *Manager) runTask(ctx context.Context, task *Task, taskFunc TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			log.Ctx(ctx).Error().
				Str("taskID", task.ID.String()).
				Interface("panic", r).
				Msg("Паника в задаче генерации")
			m.updateTaskStatus(ctx, task, TaskStatusFailed, fmt.Sprintf("Паника: %v", r))
		}
	}()

	m.updateTaskStatus(ctx, task, TaskStatusRunning, "Задача запущена")

	err := taskFunc(ctx)

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Ctx(ctx).Info().Str("taskID", task.ID.String()).Msg("Контекст задачи был отменен")
			m.updateTaskStatus(ctx, task, TaskStatusCancelled, "Задача отменена")
		} else {
			log.Ctx(ctx).Error().Err(ctx.Err()).Str("taskID", task.ID.String()).Msg("Ошибка контекста задачи")
			m.updateTaskStatus(ctx, task, TaskStatusFailed, fmt.Sprintf("Ошибка контекста: %v", ctx.Err()))
		}
		return
	}

	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("taskID", task.ID.String()).Msg("Задача завершилась с ошибкой")
		m.updateTaskStatus(ctx, task, TaskStatusFailed, fmt.Sprintf("Ошибка: %v", err))
	} else {
		log.Ctx(ctx).Info().Str("taskID", task.ID.String()).Msg("Задача успешно выполнена")
		m.updateTaskStatus(ctx, task, TaskStatusCompleted, "Задача успешно выполнена")
	}
}

// updateTaskStatus обновляет статус задачи; терминальный статус
// освобождает новеллу для следующей задачи.
func (m *Manager) updateTaskStatus(ctx context.Context, task *Task, status TaskStatus, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task.Status = status
	task.Message = message
	task.UpdatedAt = time.Now()

	if status == TaskStatusCompleted || status == TaskStatusFailed || status == TaskStatusCancelled {
		if activeID, ok := m.novelTasks[task.NovelID]; ok && activeID == task.ID {
			delete(m.novelTasks, task.NovelID)
		}
	}

	log.Ctx(ctx).Info().
		Str("taskID", task.ID.String()).
		Str("novelID", task.NovelID.String()).
		Str("newStatus", string(task.Status)).
		Str("message", task.Message).
		Msg("Статус задачи обновлен")
}

// GetTask возвращает информацию о задаче по ID
func (m *Manager) GetTask(taskID uuid.UUID) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("задача с ID %s не найдена", taskID)
	}

	return task, nil
}

// HasActiveTask сообщает, выполняется ли сейчас задача по новелле
func (m *Manager) HasActiveTask(novelID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.novelTasks[novelID]
	return ok
}

// CancelTask отменяет выполнение задачи
func (m *Manager) CancelTask(taskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("задача с ID %s не найдена", taskID)
	}

	if task.Status != TaskStatusPending && task.Status != TaskStatusRunning {
		return fmt.Errorf("невозможно отменить задачу в статусе %s", task.Status)
	}

	if task.Cancel != nil {
		task.Cancel()
	}

	return nil
}

// CleanupTasks удаляет завершенные задачи, которые старше указанного времени
func (m *Manager) CleanupTasks(age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, task := range m.tasks {
		if (task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed || task.Status == TaskStatusCancelled) &&
			now.Sub(task.UpdatedAt) > age {
			delete(m.tasks, id)
		}
	}
}

// Close отменяет все незавершенные задачи и ждет их окончания
func (m *Manager) Close() {
	m.mu.Lock()
	m.closing = true
	for _, task := range m.tasks {
		if task.Status == TaskStatusPending || task.Status == TaskStatusRunning {
			if task.Cancel != nil {
				task.Cancel()
			}
		}
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Shutdown ожидает завершения всех задач с таймаутом, не отменяя их
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("таймаут при ожидании завершения задач")
	}
}
