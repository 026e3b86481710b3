package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config параметры сервиса из переменных окружения.
// Пустой DATABASE_URL включает in-memory хранилище с демо-данными,
// пустой KAFKA_BROKERS отключает публикацию событий.
type Config struct {
	Port            string
	DatabaseURL     string
	KafkaBrokers    []string
	KafkaTopic      string
	ShutdownTimeout time.Duration
}

func Read() Config {
	timeoutMS, _ := strconv.Atoi(getenv("SHUTDOWN_TIMEOUT_MS", "5000"))

	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return Config{
		Port:            getenv("PORT", "9091"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		KafkaBrokers:    brokers,
		KafkaTopic:      getenv("KAFKA_TOPIC", "orders.placed"),
		ShutdownTimeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
