package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервера генерации новелл
type Config struct {
	// Настройки HTTP-сервера
	ServerPort     int           `envconfig:"SERVER_PORT" default:"8080"`
	ServerBasePath string        `envconfig:"SERVER_BASE_PATH" default:"/api"`
	ReadTimeout    time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout    time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`

	// Настройки AI (OpenRouter)
	AIBaseURL string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel   string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat-v3-0324:free"`
	AITimeout time.Duration `envconfig:"AI_TIMEOUT" default:"600s"`
	AIAPIKey  string        `envconfig:"AI_API_KEY" required:"true"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword    string        `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"novelist_db"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`

	// Redis используется для межпроцессной блокировки запуска генерации.
	// Пустой адрес отключает блокировку (допустимо при одном экземпляре).
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// RabbitMQ для уведомлений о жизненном цикле генерации.
	// Пустой URL отключает публикацию.
	RabbitMQURL string `envconfig:"RABBITMQ_URL" default:""`

	// Настройки фоновых задач
	MaxBackgroundTasks int `envconfig:"MAX_BACKGROUND_TASKS" default:"10"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetMaskedDSN возвращает DSN с замаскированным паролем для логирования
func (c *Config) GetMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	// envconfig пропускает выставленную, но пустую переменную
	if strings.TrimSpace(cfg.AIAPIKey) == "" {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: AI_API_KEY не задан")
	}
	return &cfg, nil
}
