package ai

import (
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novelist",
		Subsystem: "ai",
		Name:      "requests_total",
		Help:      "AI requests by operation and outcome.",
	}, []string{"op", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "novelist",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "AI request latency including retries.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"op"})

	promptTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "novelist",
		Subsystem: "ai",
		Name:      "prompt_tokens",
		Help:      "Estimated prompt size in tokens.",
		Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
	}, []string{"op"})

	completionTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "novelist",
		Subsystem: "ai",
		Name:      "completion_tokens",
		Help:      "Estimated completion size in tokens.",
		Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
	}, []string{"op"})
)

// tokenEncoding - кодировка для оценки размера промптов.
// cl100k_base покрывает большинство современных моделей достаточно точно
// для гистограмм; точность до токена здесь не нужна.
var tokenEncoding, _ = tiktoken.GetEncoding("cl100k_base")

// countTokens оценивает число токенов в тексте. При недоступной кодировке
// (например, нет сетевого кэша BPE) возвращает грубую оценку по длине.
func countTokens(text string) int {
	if tokenEncoding == nil {
		return len(text) / 4
	}
	return len(tokenEncoding.Encode(text, nil, nil))
}

// observeRequest записывает метрики одного логического AI-запроса.
func observeRequest(op string, start time.Time, prompt, completion string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if kind := KindOf(err); kind != "" {
			status = string(kind)
		}
	}
	requestsTotal.WithLabelValues(op, status).Inc()
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	promptTokens.WithLabelValues(op).Observe(float64(countTokens(prompt)))
	if completion != "" {
		completionTokens.WithLabelValues(op).Observe(float64(countTokens(completion)))
	}
}
