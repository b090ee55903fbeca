package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken  string
	DBDSN          string
	Environment    string
	MigrationsPath string

	RedisAddr     string
	RedisPassword string
	HTTPAddr      string

	SchedulerInterval  time.Duration
	SchedulerBatchSize int

	ResponseTimeout     time.Duration
	SelectionTimeout    time.Duration
	ConversationTimeout time.Duration

	ConsultationCost    int64
	InitialEnergy       int64
	MissedAnswerPenalty int64
	ScoreFloor          *int64 // nil — рейтинг не ограничен снизу

	NotifyQueueSize int
	NotifyWorkers   int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения и подставляет значения по умолчанию
func FromEnv() (*Config, error) {
	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		DBDSN:          os.Getenv("DB_DSN"),
		Environment:    getString("ENV", "development"),
		MigrationsPath: getString("MIGRATIONS_PATH", "migrations"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	var err error
	if cfg.SchedulerInterval, err = getDuration("SCHEDULER_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ResponseTimeout, err = getDuration("RESPONSE_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SelectionTimeout, err = getDuration("SELECTION_TIMEOUT", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ConversationTimeout, err = getDuration("CONVERSATION_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.SchedulerBatchSize, err = getInt("SCHEDULER_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.NotifyQueueSize, err = getInt("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}

	if cfg.ConsultationCost, err = getInt64("CONSULTATION_COST", 10); err != nil {
		return nil, err
	}
	if cfg.InitialEnergy, err = getInt64("INITIAL_ENERGY", 100); err != nil {
		return nil, err
	}
	if cfg.MissedAnswerPenalty, err = getInt64("MISSED_ANSWER_PENALTY", 10); err != nil {
		return nil, err
	}

	if raw := os.Getenv("SCORE_FLOOR"); raw != "" {
		floor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse SCORE_FLOOR: %w", err)
		}
		cfg.ScoreFloor = &floor
	}

	if cfg.ConsultationCost <= 0 {
		return nil, fmt.Errorf("CONSULTATION_COST must be positive, got %d", cfg.ConsultationCost)
	}
	if cfg.SchedulerInterval <= 0 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %s", cfg.SchedulerInterval)
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
