package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Analysis AnalysisConfig
	Database DatabaseConfig
	WeChat   WeChatConfig
}

type AppConfig struct {
	Port         string
	Environment  string
	LogFilePath  string
	UploadFolder string
	SessionStore string // "memory" or "redis"
	RedisURL     string
	NatsURL      string

	CorsAllowedOrigins string
}

type AnalysisConfig struct {
	HighDeltaThreshold int
	GroupSize          int
	ReportMaxLines     int
	SessionIdleTimeout time.Duration
	AnalysisTimeout    time.Duration
	Workers            int
}

type DatabaseConfig struct {
	Connection string
}

type WeChatConfig struct {
	CorpID     string
	CorpSecret string
	AgentID    string
	Token      string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:         getEnv("APP_PORT", "3000"),
			Environment:  getEnv("GO_ENV", "development"),
			LogFilePath:  getEnv("LOG_FILE_PATH", "logs/app.log"),
			UploadFolder: getEnv("UPLOAD_FOLDER", "uploads"),
			SessionStore: getEnv("SESSION_STORE", "memory"),
			RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
			NatsURL:      getEnv("NATS_URL", ""),

			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Analysis: AnalysisConfig{
			HighDeltaThreshold: getEnvAsInt("HIGH_DELTA_THRESHOLD", 5000),
			GroupSize:          getEnvAsInt("GROUP_SIZE", 20),
			ReportMaxLines:     getEnvAsInt("REPORT_MAX_LINES", 30),
			SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			AnalysisTimeout:    getEnvAsDuration("ANALYSIS_TIMEOUT", 2*time.Minute),
			Workers:            getEnvAsInt("ANALYSIS_WORKERS", 4),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		WeChat: WeChatConfig{
			CorpID:     getEnv("WECHAT_CORP_ID", ""),
			CorpSecret: getEnv("WECHAT_CORP_SECRET", ""),
			AgentID:    getEnv("WECHAT_AGENT_ID", ""),
			Token:      getEnv("WECHAT_TOKEN", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
