package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultViewCacheSize  = 256
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DatasetPath points at a YAML fixture loaded at startup. Empty selects
	// the dataset bundled with the binary.
	DatasetPath    string
	MaxUploadBytes int64
	ViewCacheSize  int

	// Balance publishing configuration.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaBalanceTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	maxUpload, err := parseMaxUploadBytes()
	if err != nil {
		return nil, err
	}

	viewCacheSize, err := parseViewCacheSize()
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid KAFKA_ENABLED")
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatasetPath:    os.Getenv("DATASET_PATH"),
		MaxUploadBytes: maxUpload,
		ViewCacheSize:  viewCacheSize,

		KafkaEnabled:      kafkaEnabled,
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaBalanceTopic: sharedcfg.EnvOrDefault("KAFKA_BALANCE_TOPIC", "water-balance-monthly"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaBalanceTopic == "" {
		return nil, errors.New("KAFKA_BALANCE_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseMaxUploadBytes() (int64, error) {
	s := os.Getenv("MAX_UPLOAD_BYTES")
	if s == "" {
		return defaultMaxUploadBytes, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid MAX_UPLOAD_BYTES")
	}
	return n, nil
}

func parseViewCacheSize() (int, error) {
	s := os.Getenv("VIEW_CACHE_SIZE")
	if s == "" {
		return defaultViewCacheSize, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid VIEW_CACHE_SIZE")
	}
	return n, nil
}
