package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	SMTP       SMTPConfig
	Thresholds ThresholdConfig
	Cooldown   CooldownConfig
	Pipeline   PipelineConfig
	Metrics    MetricsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicReadings string
	TopicAlerts   string
	NumPartitions int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// ThresholdConfig holds the default safety thresholds applied to every
// device unless a per-device override exists in the database.
type ThresholdConfig struct {
	PHCriticalMin float64
	PHCriticalMax float64
	PHWarningMin  float64
	PHWarningMax  float64

	TurbidityWarning  float64
	TurbidityCritical float64

	TDSWarning  float64
	TDSCritical float64
}

// CooldownConfig controls how long repeated violations of the same kind
// are coalesced into one alert instead of spawning duplicates.
type CooldownConfig struct {
	Critical time.Duration
	Warning  time.Duration
}

type PipelineConfig struct {
	Workers      int
	JobQueueSize int
}

type MetricsConfig struct {
	Addr string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "water_user"),
			Password: getEnv("DB_PASSWORD", "water_pass"),
			DBName:   getEnv("DB_NAME", "water_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "water.readings"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "water.alerts"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "water-monitor@example.com"),
			To:       getEnv("SMTP_TO", "operator@example.com"),
		},
		Thresholds: ThresholdConfig{
			PHCriticalMin: getEnvAsFloat("THRESHOLD_PH_CRITICAL_MIN", 6.0),
			PHCriticalMax: getEnvAsFloat("THRESHOLD_PH_CRITICAL_MAX", 9.0),
			PHWarningMin:  getEnvAsFloat("THRESHOLD_PH_WARNING_MIN", 6.5),
			PHWarningMax:  getEnvAsFloat("THRESHOLD_PH_WARNING_MAX", 8.5),

			TurbidityWarning:  getEnvAsFloat("THRESHOLD_TURBIDITY_WARNING", 5.0),
			TurbidityCritical: getEnvAsFloat("THRESHOLD_TURBIDITY_CRITICAL", 20.0),

			TDSWarning:  getEnvAsFloat("THRESHOLD_TDS_WARNING", 500),
			TDSCritical: getEnvAsFloat("THRESHOLD_TDS_CRITICAL", 1000),
		},
		Cooldown: CooldownConfig{
			Critical: getEnvAsDuration("COOLDOWN_CRITICAL", 30*time.Minute),
			Warning:  getEnvAsDuration("COOLDOWN_WARNING", 120*time.Minute),
		},
		Pipeline: PipelineConfig{
			Workers:      getEnvAsInt("PIPELINE_WORKERS", 10),
			JobQueueSize: getEnvAsInt("PIPELINE_JOB_QUEUE_SIZE", 1000),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
