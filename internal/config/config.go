package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/vent-capacity-service/internal/domain"
)

const defaultMaxRequestBytes = 1 << 20

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// AssessmentCacheSize bounds the fingerprint LRU. Zero disables caching.
	AssessmentCacheSize int
	MaxRequestBytes     int64

	FlashProfiles domain.FlashProfiles
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseCacheSize()
	if err != nil {
		return nil, err
	}

	maxRequestBytes, err := parseMaxRequestBytes()
	if err != nil {
		return nil, err
	}

	profiles, err := parseFlashProfiles()
	if err != nil {
		return nil, err
	}

	kafkaEnabled := true
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		KafkaEnabled:        kafkaEnabled,
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:    sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "vent-assessment-requests"),
		KafkaSinkTopic:      sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "vent-assessment-results"),
		KafkaGroupID:        sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "vent-capacity"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		BatchSize:           batchSize,
		BatchFlushInterval:  flushInterval,
		AssessmentCacheSize: cacheSize,
		MaxRequestBytes:     maxRequestBytes,
		FlashProfiles:       profiles,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseCacheSize() (int, error) {
	s := os.Getenv("ASSESSMENT_CACHE_SIZE")
	if s == "" {
		return 1000, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid ASSESSMENT_CACHE_SIZE %q: must be a non-negative integer", s)
	}
	return n, nil
}

func parseMaxRequestBytes() (int64, error) {
	s := os.Getenv("MAX_REQUEST_BYTES")
	if s == "" {
		return defaultMaxRequestBytes, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid MAX_REQUEST_BYTES %q: must be a positive integer", s)
	}
	return n, nil
}

// parseFlashProfiles overrides the default fallback correlation constants.
func parseFlashProfiles() (domain.FlashProfiles, error) {
	p := domain.DefaultFlashProfiles()

	overrides := []struct {
		env    string
		target *float64
	}{
		{"OIL_BASE_FLASH", &p.Oil.BaseFlashSCFPerBbl},
		{"WATER_BASE_FLASH", &p.Water.BaseFlashSCFPerBbl},
		{"WATER_CARRYOVER_FLASH", &p.Water.CarryoverFlashSCFPerBbl},
	}
	for _, o := range overrides {
		s := os.Getenv(o.env)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return domain.FlashProfiles{}, fmt.Errorf("invalid %s %q: must be a non-negative number", o.env, s)
		}
		*o.target = v
	}
	return p, nil
}
