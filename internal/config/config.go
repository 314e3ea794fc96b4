package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	GraphURL          string        `validate:"required"`
	Neo4jUser         string
	Neo4jPassword     string
	Neo4jDatabase     string        `validate:"required"`
	APIAddr           string        `validate:"required"`
	WorkerMetricsAddr string
	TemporalAddress   string        `validate:"required,hostname_port"`
	TemporalTaskQueue string        `validate:"required"`
	DataOutRoot       string        `validate:"required"`
	VocabularyFile    string        `validate:"omitempty,file"`
	MaxAttempts       int           `validate:"min=1,max=10"`
	RetryInitial      time.Duration `validate:"gt=0"`
	RetryMax          time.Duration `validate:"gtefield=RetryInitial"`
	StoreTimeout      time.Duration `validate:"gt=0"`
	ClassifyWorkers   int           `validate:"min=1"`
	BatchSize         int           `validate:"min=1"`
	LogDebug          bool
}

func Load() Config {
	return Config{
		GraphURL:          getenv("KG_GRAPH_URL", "bolt://localhost:7687"),
		Neo4jUser:         getenv("KG_NEO4J_USER", "neo4j"),
		Neo4jPassword:     getenv("KG_NEO4J_PASSWORD", "password"),
		Neo4jDatabase:     getenv("KG_NEO4J_DATABASE", "neo4j"),
		APIAddr:           getenv("KG_API_ADDR", ":8080"),
		WorkerMetricsAddr: getenv("KG_WORKER_METRICS_ADDR", ""),
		TemporalAddress:   getenv("KG_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getenv("KG_TEMPORAL_TASK_QUEUE", "maizekg"),
		DataOutRoot:       getenv("KG_DATA_OUT", "./data/out"),
		VocabularyFile:    getenv("KG_VOCABULARY_FILE", ""),
		MaxAttempts:       getenvInt("KG_MAX_ATTEMPTS", 3),
		RetryInitial:      getenvDuration("KG_RETRY_INITIAL", 200*time.Millisecond),
		RetryMax:          getenvDuration("KG_RETRY_MAX", 5*time.Second),
		StoreTimeout:      getenvDuration("KG_STORE_TIMEOUT", 10*time.Second),
		ClassifyWorkers:   getenvInt("KG_CLASSIFY_WORKERS", 4),
		BatchSize:         getenvInt("KG_BATCH_SIZE", 500),
		LogDebug:          getenvBool("KG_LOG_DEBUG", false),
	}
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(k string, fallback time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
