package ai

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy описывает ограниченные повторы с экспоненциальной задержкой.
// Повторяются только ошибки из явного множества RetriableKinds; все прочие
// пробрасываются с первого раза.
type RetryPolicy struct {
	MaxRetries     int           // количество повторов сверх первой попытки
	InitialDelay   time.Duration // задержка перед первым повтором
	BackoffFactor  float64       // множитель роста задержки
	MaxDelay       time.Duration // потолок задержки
	Jitter         bool          // случайный разброс задержки против синхронных всплесков
	RetriableKinds map[ErrorKind]bool
}

// NovelGenerationPolicy - пресет для медленных запросов генерации текста.
// 3 повтора, 2s -> 4s -> 8s, потолок 60s.
func NovelGenerationPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialDelay:   2 * time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       60 * time.Second,
		Jitter:         true,
		RetriableKinds: retriableKinds,
	}
}

// QuickRequestPolicy - пресет для дешевых коротких запросов (метаданные).
// 2 повтора, 1s -> 1.5s, потолок 10s.
func QuickRequestPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialDelay:   time.Second,
		BackoffFactor:  1.5,
		MaxDelay:       10 * time.Second,
		Jitter:         true,
		RetriableKinds: retriableKinds,
	}
}

// JSONGenerationPolicy - пресет для генерации структурированного JSON.
// Невалидная структура и несовпадение числа глав здесь тоже повторяются:
// чаще всего это разовый сбой форматирования у модели, а не постоянное
// состояние. 4 повтора, 2s * 1.8^n, потолок 45s.
func JSONGenerationPolicy() RetryPolicy {
	kinds := make(map[ErrorKind]bool, len(retriableKinds)+2)
	for k := range retriableKinds {
		kinds[k] = true
	}
	kinds[KindInvalidStructure] = true
	kinds[KindChapterCountMismatch] = true

	return RetryPolicy{
		MaxRetries:     4,
		InitialDelay:   2 * time.Second,
		BackoffFactor:  1.8,
		MaxDelay:       45 * time.Second,
		Jitter:         true,
		RetriableKinds: kinds,
	}
}

// Do выполняет fn с повторами по политике. Возвращает nil при успехе,
// либо последнюю ошибку после исчерпания повторов, либо первую
// неповторяемую ошибку. Ожидание прерывается отменой контекста.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	delay := p.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				log.Info().Str("op", op).Int("attempt", attempt+1).Msg("операция выполнена после повтора")
			}
			return nil
		}
		lastErr = err

		if !p.retriable(err) {
			log.Error().Err(err).Str("op", op).Msg("неповторяемая ошибка, повторов не будет")
			return err
		}

		if attempt >= p.MaxRetries {
			break
		}

		wait := p.waitTime(err, delay)
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Int("maxAttempts", p.MaxRetries+1).
			Dur("wait", wait).
			Msg("повторяемая ошибка, ждем перед следующей попыткой")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return wrapError(KindTimeout, "retry wait interrupted by context", ctx.Err())
		}

		delay = time.Duration(float64(delay) * p.BackoffFactor)
	}

	log.Error().Err(lastErr).Str("op", op).Int("attempts", p.MaxRetries+1).Msg("повторы исчерпаны")
	return lastErr
}

// retriable решает, подлежит ли ошибка повтору по данной политике.
// Ошибки, не относящиеся к таксономии пакета, не повторяются.
func (p RetryPolicy) retriable(err error) bool {
	var aiErr *Error
	if !errors.As(err, &aiErr) {
		return false
	}
	return p.RetriableKinds[aiErr.Kind]
}

// waitTime вычисляет паузу перед повтором. Подсказка провайдера при
// rate limit имеет приоритет над вычисленной задержкой (с потолком).
func (p RetryPolicy) waitTime(err error, delay time.Duration) time.Duration {
	var aiErr *Error
	if errors.As(err, &aiErr) && aiErr.Kind == KindRateLimit && aiErr.RetryAfter > 0 {
		if aiErr.RetryAfter > p.MaxDelay {
			return p.MaxDelay
		}
		return aiErr.RetryAfter
	}

	wait := delay
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	if p.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	return wait
}
