package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ananyasub/argus/internal/api"
	"github.com/ananyasub/argus/internal/config"
	"github.com/ananyasub/argus/internal/configs/env"
	"github.com/ananyasub/argus/internal/infra/mongo"
	redisInfra "github.com/ananyasub/argus/internal/infra/redis"
	"github.com/ananyasub/argus/internal/logger"
	"github.com/ananyasub/argus/internal/repository"
	"github.com/ananyasub/argus/internal/screening"
	"github.com/ananyasub/argus/internal/similarity"
	"github.com/ananyasub/argus/internal/sketch"
	"github.com/ananyasub/argus/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log.Info().Msg("Starting ARGUS server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect MongoDB
	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MongoDB client")
	}
	defer mongoClient.Close(ctx)

	// Connect Redis
	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis client")
	}
	defer redisClient.Close()

	// Initialize MongoDB repository
	mongoRepo := repository.NewMongoRepository(mongoClient)

	// Initialize repositories
	docsRepo := repository.NewDocumentsRepository(mongoRepo)
	resultsRepo := repository.NewResultsRepository(mongoRepo)

	// Initialize sketches from their persisted state
	sketches := sketch.NewManager(redisInfra.NewSketchStore(redisClient))
	sketches.SetBloomSizing(cfg.BloomExpectedURLs, cfg.BloomFPRate)
	if err := sketches.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sketch manager")
	}

	// Engine components: one hash family and bander per process, both sized
	// from config so signatures and band hashes always agree on length
	hasher := similarity.NewMinHasher(similarity.FamilyOfSize(cfg.NumHashes))
	bander := similarity.NewBander(cfg.NumBands, cfg.NumHashes/cfg.NumBands)
	bandIndex := screening.NewBandIndex(redisClient)

	thresholds := similarity.Thresholds{
		HighCombined:        cfg.HighCombined,
		HighDeclaration:     cfg.HighDeclaration,
		ModerateCombined:    cfg.ModerateCombined,
		ModerateDeclaration: cfg.ModerateDecl,
		LowCombined:         cfg.LowCombined,
		LowPattern:          cfg.LowPattern,
	}

	// Initialize worker pool
	workerPool := screening.NewWorkerPool(ctx)
	defer workerPool.Close()

	screener := screening.NewScreener(docsRepo, resultsRepo, redisClient, workerPool, thresholds, cfg.CandidateMinScore, cfg.BatchSize)
	ingestor := screening.NewIngestor(hasher, bander, cfg.ShingleSize, sketches, docsRepo, bandIndex)

	// Initialize retry handler
	retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey)

	// Initialize Redis stream consumer
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
	consumer := stream.NewConsumer(
		redisClient.Client,
		cfg.RedisStreamKey,
		cfg.RedisConsumerGroup,
		consumerName,
		ingestor,
		retryHandler,
		cfg.StreamRetentionDuration,
	)
	log.Info().Str("consumer_name", consumerName).Msg("Redis stream consumer initialized")

	handler := api.NewHandler(cfg, docsRepo, resultsRepo, screener, bandIndex, sketches, redisClient)
	router := api.SetupRoutes(cfg, handler)

	// Start Redis consumer in background
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	go func() {
		defer consumerCancel()
		if err := consumer.Start(consumerCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Redis consumer error")
		}
	}()
	log.Info().Msg("Redis consumer started")

	// Flush sketches periodically; Save is a no-op while nothing changed
	go func() {
		ticker := time.NewTicker(cfg.SketchFlushPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sketches.Save(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to flush sketches")
				}
			}
		}
	}()

	// Start Gin server - Gin handles all HTTP routing, middleware (auth, rate limiter), and request processing
	srv := api.NewServer(router, cfg.ServerPort)
	srv.Start()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	// Shutdown Gin server gracefully
	if err := srv.Shutdown(30 * time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down Gin server")
	}

	// Final sketch flush with its own context; ctx is about to be cancelled
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := sketches.Save(flushCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush sketches on shutdown")
	}

	log.Info().Msg("Shutdown complete")
}
