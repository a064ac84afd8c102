package config

import (
	"fmt"
	"time"

	"github.com/ananyasub/argus/internal/configs/env"
)

// Config holds all configuration for the application
type Config struct {
	// MongoDB
	MongoURI    string
	MongoDBName string

	// Redis
	RedisHost               string
	RedisPassword           string
	RedisStreamKey          string
	RedisConsumerGroup      string
	RedisDeadLetterKey      string
	StreamRetentionDuration time.Duration

	// JWT
	JWTSecret string
	JWTIssuer string

	// Rate Limiting
	RateLimitRPS float64

	// Concurrency
	MaxConcurrentScans int

	// Screening
	ScreeningTimeout time.Duration
	BatchSize        int

	// MinHash / LSH parameters
	NumHashes   int
	NumBands    int
	ShingleSize int

	// Verdict thresholds (empirically tuned; see similarity package defaults)
	HighCombined      float64
	HighDeclaration   float64
	ModerateCombined  float64
	ModerateDecl      float64
	LowCombined       float64
	LowPattern        float64
	CandidateMinScore float64

	// Sketch sizing
	BloomExpectedURLs int
	BloomFPRate       float64
	SketchFlushPeriod time.Duration

	// Logging
	LogLevel  string
	LogPretty bool

	// Server
	ServerPort string
}

func Load() (*Config, error) {
	cfg := &Config{}

	// MongoDB
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "localhost:6379")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.RedisStreamKey = env.GetEnv("REDIS_STREAM_KEY", "screening:stream")
	cfg.RedisConsumerGroup = env.GetEnv("REDIS_CONSUMER_GROUP", "screening:group")
	cfg.RedisDeadLetterKey = env.GetEnv("REDIS_DEAD_LETTER_KEY", "screening:dlq")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_DURATION", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour

	// JWT
	cfg.JWTSecret = env.GetEnv("JWT_SECRET", "")
	cfg.JWTIssuer = env.GetEnv("JWT_ISSUER", "argus")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Concurrency
	cfg.MaxConcurrentScans = env.GetEnvInt("MAX_CONCURRENT_SCANS", 5)

	// Screening
	timeoutMinutes := env.GetEnvInt("SCREENING_TIMEOUT_MINUTES", 30)
	cfg.ScreeningTimeout = time.Duration(timeoutMinutes) * time.Minute
	cfg.BatchSize = env.GetEnvInt("BATCH_SIZE", 100)

	// MinHash / LSH. NumHashes must stay divisible by NumBands.
	cfg.NumHashes = env.GetEnvInt("MINHASH_NUM_HASHES", 128)
	cfg.NumBands = env.GetEnvInt("LSH_NUM_BANDS", 16)
	cfg.ShingleSize = env.GetEnvInt("SHINGLE_SIZE", 8)

	// Verdict thresholds
	cfg.HighCombined = env.GetEnvFloat("VERDICT_HIGH_COMBINED", 0.5)
	cfg.HighDeclaration = env.GetEnvFloat("VERDICT_HIGH_DECLARATION", 0.4)
	cfg.ModerateCombined = env.GetEnvFloat("VERDICT_MODERATE_COMBINED", 0.25)
	cfg.ModerateDecl = env.GetEnvFloat("VERDICT_MODERATE_DECLARATION", 0.2)
	cfg.LowCombined = env.GetEnvFloat("VERDICT_LOW_COMBINED", 0.1)
	cfg.LowPattern = env.GetEnvFloat("VERDICT_LOW_PATTERN", 0.3)
	cfg.CandidateMinScore = env.GetEnvFloat("CANDIDATE_MIN_SCORE", 0.2)

	// Sketches
	cfg.BloomExpectedURLs = env.GetEnvInt("BLOOM_EXPECTED_URLS", 50000)
	cfg.BloomFPRate = env.GetEnvFloat("BLOOM_FP_RATE", 0.01)
	flushSeconds := env.GetEnvInt("SKETCH_FLUSH_SECONDS", 60)
	cfg.SketchFlushPeriod = time.Duration(flushSeconds) * time.Second

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")
	cfg.LogPretty = env.GetEnvBool("LOG_PRETTY", false)

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DB_NAME is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MaxConcurrentScans <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_SCANS must be greater than 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be greater than 0")
	}
	if c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_DURATION must be greater than 0")
	}
	if c.NumHashes <= 0 || c.NumBands <= 0 || c.NumHashes%c.NumBands != 0 {
		return fmt.Errorf("MINHASH_NUM_HASHES must be a positive multiple of LSH_NUM_BANDS")
	}
	if c.BloomFPRate <= 0 || c.BloomFPRate >= 1 {
		return fmt.Errorf("BLOOM_FP_RATE must be in (0, 1)")
	}
	return nil
}
