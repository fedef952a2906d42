package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind классифицирует ошибки взаимодействия с генеративным API.
// От вида ошибки зависит, имеет ли смысл повторять запрос.
type ErrorKind string

// Виды ошибок генеративного API
const (
	KindNetwork               ErrorKind = "network"
	KindTimeout               ErrorKind = "timeout"
	KindRateLimit             ErrorKind = "rate_limit"
	KindEmptyResponse         ErrorKind = "empty_response"
	KindUnexpectedTermination ErrorKind = "unexpected_termination"
	KindSafetyFilter          ErrorKind = "safety_filter"
	KindMaxTokens             ErrorKind = "max_tokens"
	KindRecitation            ErrorKind = "recitation"
	KindAuthentication        ErrorKind = "authentication"
	KindInvalidStructure      ErrorKind = "invalid_structure"
	KindChapterCountMismatch  ErrorKind = "chapter_count_mismatch"
)

// excerptLimit ограничивает размер сырого фрагмента ответа в ошибке.
const excerptLimit = 200

// Error - типизированная ошибка генеративного API.
// Несет достаточно контекста для диагностики без слепых повторов:
// причину завершения, фрагмент сырого ответа, недостающие ключи JSON.
type Error struct {
	Kind         ErrorKind
	Message      string
	FinishReason string
	RawExcerpt   string
	MissingKeys  []string
	RetryAfter   time.Duration // подсказка провайдера при rate limit (0 = нет)
	Err          error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.FinishReason != "" {
		msg += fmt.Sprintf(" (finish_reason: %s)", e.FinishReason)
	}
	if len(e.MissingKeys) > 0 {
		msg += fmt.Sprintf(" (missing keys: %s)", strings.Join(e.MissingKeys, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError создает ошибку с указанным видом и сообщением.
func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// wrapError оборачивает исходную ошибку, сохраняя ее для errors.Is/As.
func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// withExcerpt прикладывает к ошибке усеченный фрагмент сырого ответа.
func (e *Error) withExcerpt(raw string) *Error {
	if len(raw) > excerptLimit {
		raw = raw[:excerptLimit]
	}
	e.RawExcerpt = raw
	return e
}

// KindOf возвращает вид ошибки или пустую строку, если ошибка не из этого пакета.
func KindOf(err error) ErrorKind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return ""
}

// IsKind проверяет, что ошибка имеет указанный вид.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// retriableKinds - базовое множество видов, которые имеет смысл повторять:
// временные проблемы на стороне сети или провайдера.
// Структурные проблемы (фильтр безопасности, лимит токенов, рецитация,
// аутентификация) повторами не лечатся и пробрасываются сразу.
var retriableKinds = map[ErrorKind]bool{
	KindNetwork:               true,
	KindTimeout:               true,
	KindRateLimit:             true,
	KindEmptyResponse:         true,
	KindUnexpectedTermination: true,
}
