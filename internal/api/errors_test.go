package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"novelist-server/internal/model"
)

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"пользователь не найден", model.ErrUserNotFound, http.StatusNotFound},
		{"новелла не найдена", model.ErrNovelNotFound, http.StatusNotFound},
		{"глава не найдена", model.ErrChapterNotFound, http.StatusNotFound},
		{"неверная длина текста", model.ErrInvalidTextLength, http.StatusBadRequest},
		{"неизвестный жанр", model.ErrInvalidGenre, http.StatusBadRequest},
		{"неизвестное настроение", model.ErrInvalidMood, http.StatusBadRequest},
		{"неверные входные данные", model.ErrInvalidInput, http.StatusBadRequest},
		{"новелла не в FAILED", model.ErrNovelNotFailed, http.StatusConflict},
		{"нет упавшей главы", model.ErrNoFailedChapter, http.StatusConflict},
		{"предыдущая глава не готова", model.ErrPreviousChapterNotReady, http.StatusConflict},
		{"план не сохранен", model.ErrPlanMissing, http.StatusConflict},
		{"генерация уже идет", model.ErrGenerationInProgress, http.StatusConflict},
		{"прочее - внутренняя ошибка", errors.New("отказ базы данных"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			handleServiceError(c, tc.err)

			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}

	t.Run("текст внутренней ошибки не утекает клиенту", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		handleServiceError(c, errors.New("password=secret host=10.0.0.1"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "secret")
		assert.Contains(t, w.Body.String(), "internal server error")
	})

	t.Run("обернутая ошибка распознается", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		wrapped := errors.Join(errors.New("контекст операции"), model.ErrNovelNotFound)
		handleServiceError(c, wrapped)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
