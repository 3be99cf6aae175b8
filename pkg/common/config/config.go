package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   float64
	RateLimitBurst int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	KafkaRecordsTopic string
	KafkaRowsTopic    string
	KafkaDLQTopic     string

	// Study inputs
	CodelistsPath  string
	StudyDatesPath string
	Cohorts        []string

	// Extraction
	ExtractWorkers int
	RunWorkers     int
	RowCacheTTL    time.Duration
	QueryScanLimit int
	AllowedSexes   []string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8090"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 16*1024*1024)),
		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 20),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "ehrextract"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "ehrextract"),
		PostgresDB:       getEnv("POSTGRES_DB", "ehrextract"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "ehrextract"),
		KafkaRecordsTopic: getEnv("KAFKA_RECORDS_TOPIC", "patient-records"),
		KafkaRowsTopic:    getEnv("KAFKA_ROWS_TOPIC", "extracted-rows"),
		KafkaDLQTopic:     getEnv("KAFKA_DLQ_TOPIC", ""),

		CodelistsPath:  getEnv("CODELISTS_PATH", "configs/codelists.yaml"),
		StudyDatesPath: getEnv("STUDY_DATES_PATH", "configs/study_dates.yaml"),
		Cohorts:        getStringSliceEnv("EXTRACT_COHORTS", nil),

		ExtractWorkers: getIntEnv("EXTRACT_WORKERS", 8),
		RunWorkers:     getIntEnv("RUN_WORKERS", 2),
		RowCacheTTL:    getDuration("ROW_CACHE_TTL", 30*time.Minute),
		QueryScanLimit: getIntEnv("QUERY_SCAN_LIMIT", 10000),
		AllowedSexes:   getStringSliceEnv("ALLOWED_SEXES", []string{"male", "female", "intersex", "unknown"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated value.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
