package cfg

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultMaxFileSize  = 20 * 1024 * 1024 // 20 MiB
	defaultRelayMaxBody = 64 * 1024 * 1024
)

// MinioConfig is shared by the relay (upload destination) and the mongo
// store backend (payload storage).
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type RelayConfig struct {
	HTTPPort       string `validate:"required,numeric"`
	GRPCPort       string `validate:"required,numeric"`
	Storage        string `validate:"oneof=disk minio"`
	UploadDir      string `validate:"required_if=Storage disk"`
	Minio          MinioConfig
	MaxUploadBytes int64 `validate:"gt=0"`
	LogLevel       string
	ShutdownGrace  time.Duration
}

type DashboardConfig struct {
	HTTPPort string `validate:"required,numeric"`
	LogLevel string

	StoreBackend    string `validate:"oneof=badger postgres mongo"`
	BadgerPath      string `validate:"required_if=StoreBackend badger"`
	PostgresDSN     string `validate:"required_if=StoreBackend postgres"`
	MongoURI        string `validate:"required_if=StoreBackend mongo"`
	MongoDatabase   string
	MongoCollection string
	Minio           MinioConfig

	RelayURL       string `validate:"required,url"`
	RelayTimeout   time.Duration
	MaxFileSize    int64    `validate:"gt=0"`
	AcceptedTypes  []string `validate:"min=1"`
	ProgressLinger time.Duration
	AlertTTL       time.Duration

	KafkaBrokers  []string
	KafkaTopic    string `validate:"required_with=KafkaBrokers"`
	RedisAddr     string
	RedisPassword string

	GeminiAPIKey string
	ChatModel    string
	InsightModel string
	SpeechModel  string
	SpeechVoice  string

	RateLimitRequests  int
	RateLimitWindow    time.Duration
	AllowedCORSOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownGrace      time.Duration
}

func LoadRelay() (RelayConfig, error) {
	_ = godotenv.Load(".env")

	cfg := RelayConfig{
		HTTPPort:       getEnv("HTTP_PORT", "3001"),
		GRPCPort:       getEnv("GRPC_PORT", "9094"),
		Storage:        getEnv("RELAY_STORAGE", "disk"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		Minio:          loadMinio(),
		MaxUploadBytes: getEnvInt64("RELAY_MAX_UPLOAD_BYTES", defaultRelayMaxBody),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ShutdownGrace:  getEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if err := validate(cfg); err != nil {
		return RelayConfig{}, err
	}
	if cfg.Storage == "minio" {
		if err := cfg.Minio.check(); err != nil {
			return RelayConfig{}, err
		}
	}
	return cfg, nil
}

func LoadDashboard() (DashboardConfig, error) {
	_ = godotenv.Load(".env")

	cfg := DashboardConfig{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:    getEnv("STORE_BACKEND", "badger"),
		BadgerPath:      getEnv("BADGER_PATH", "./data/documents"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "pcfh"),
		MongoCollection: getEnv("MONGODB_COLLECTION", "documents"),
		Minio:           loadMinio(),

		RelayURL:       getEnv("RELAY_URL", "http://localhost:3001"),
		RelayTimeout:   getEnvDuration("RELAY_TIMEOUT", 2*time.Minute),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", defaultMaxFileSize),
		AcceptedTypes:  SplitCSV(getEnv("ACCEPTED_TYPES", "application/pdf")),
		ProgressLinger: getEnvDuration("PROGRESS_LINGER", 2*time.Second),
		AlertTTL:       getEnvDuration("ALERT_TTL", 6*time.Second),

		KafkaBrokers:  SplitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		ChatModel:    getEnv("CHAT_MODEL", "gemini-3-pro-preview"),
		InsightModel: getEnv("INSIGHT_MODEL", "gemini-2.5-flash-lite"),
		SpeechModel:  getEnv("SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		SpeechVoice:  getEnv("SPEECH_VOICE", "Kore"),

		RateLimitRequests:  getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		AllowedCORSOrigins: SplitCSV(getEnv("ALLOWED_ORIGINS", "")),
		ReadTimeout:        getEnvDuration("READ_TIMEOUT", time.Minute),
		WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", 2*time.Minute),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 2*time.Minute),
		ShutdownGrace:      getEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if err := validate(cfg); err != nil {
		return DashboardConfig{}, err
	}
	if cfg.StoreBackend == "mongo" {
		if err := cfg.Minio.check(); err != nil {
			return DashboardConfig{}, err
		}
	}
	return cfg, nil
}

func loadMinio() MinioConfig {
	return MinioConfig{
		Endpoint:  getEnv("MINIO_ENDPOINT", ""),
		AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: getEnv("MINIO_SECRET_KEY", ""),
		UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		Bucket:    getEnv("MINIO_BUCKET", "pcfh-documents"),
	}
}

func (m MinioConfig) check() error {
	if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" {
		return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}
	return nil
}

var structValidator = validator.New()

func validate(v interface{}) error {
	if err := structValidator.Struct(v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
