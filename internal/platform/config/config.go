package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Dispatch queue and payload store keys.
	QueueName        string
	PayloadKeyPrefix string

	// Runner admission and callback coordinates.
	RunnerBinary          string
	BackendInternalURL    string
	ResultToken           string
	LaunchDeadlineSeconds int
	RunnerDeadlineSeconds int

	// External evaluator.
	LLMAPIKey  string
	LLMModel   string
	LLMBaseURL string

	// Set only inside a runner process, injected by the scheduler.
	SubmissionID string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "codegrade_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		QueueName:        getEnv("QUEUE_SUBMISSIONS", "queue:submissions"),
		PayloadKeyPrefix: getEnv("PAYLOAD_KEY_PREFIX", "submission:"),

		RunnerBinary:          getEnv("RUNNER_BINARY", "./runner"),
		BackendInternalURL:    getEnv("BACKEND_INTERNAL_URL", "http://localhost:8080/api/internal"),
		ResultToken:           getEnv("INTERNAL_RESULT_TOKEN", "secret"),
		LaunchDeadlineSeconds: getEnvAsInt("LAUNCH_DEADLINE_SECONDS", 120),
		RunnerDeadlineSeconds: getEnvAsInt("RUNNER_DEADLINE_SECONDS", 110),

		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com"),

		SubmissionID: getEnv("SUBMISSION_ID", ""),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
