/**
 * Waybill Worker - Main Entry Point
 *
 * Go worker that turns uploaded waybill images into structured documents.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed "waybill:extract" queue
 * - OCR backends selected per extraction model:
 *   AWS Textract (geometric blocks), Mistral OCR (markdown), Tesseract (local)
 * - Structure reconstruction into tables, form fields and raw text
 * - PostgreSQL persistence of images and extracted documents
 * - Redis job status sets and event channel for producers
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/waybill-worker/internal/config"
	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/processor"
	"github.com/adverant/nexus/waybill-worker/internal/queue"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env.waybill"); err != nil {
		log.Printf("Warning: .env.waybill not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	log.Printf("Waybill Worker starting...")
	log.Printf("Configuration loaded: Workers=%d, Timeout=%v, MaxImageSize=%d",
		cfg.WorkerConcurrency, cfg.Timeout(), cfg.MaxImageSize)

	ctx := context.Background()

	log.Printf("Connecting to PostgreSQL...")
	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()

	if err := healthCheck(storageManager.Postgres()); err != nil {
		log.Fatalf("Storage not ready: %v", err)
	}

	if err := storageManager.Postgres().Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	catalog, err := config.LoadModelCatalog(cfg.ExtractionModelsFile)
	if err != nil {
		log.Fatalf("Failed to load extraction models: %v", err)
	}
	if err := storageManager.Postgres().EnsureExtractionModels(ctx, catalog); err != nil {
		log.Fatalf("Failed to seed extraction models: %v", err)
	}
	log.Printf("Storage ready (%d extraction models, pool=%v)", len(catalog), storageManager.GetStats()["postgres"])

	extractor, err := processor.NewExtractorFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize extractor: %v", err)
	}
	for _, m := range catalog {
		if _, err := extractor.CheckModel(m.Name); err != nil {
			log.Printf("Model %q unavailable: %v", m.Name, err)
		}
	}

	proc, err := processor.NewWaybillProcessor(extractor, storageManager)
	if err != nil {
		log.Fatalf("Failed to initialize waybill processor: %v", err)
	}

	log.Printf("Connecting to Redis...")
	tracker, err := queue.NewStatusTracker(ctx, cfg.RedisURL, queue.DefaultStatusPrefix)
	if err != nil {
		log.Fatalf("Failed to initialize status tracker: %v", err)
	}
	defer tracker.Close()

	queueConsumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         queue.DefaultQueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		Status:            tracker,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	if err := queueConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Waybill Worker is READY")
	log.Printf("===========================================")
	stats := queueConsumer.GetStatistics()
	log.Printf("Queue: %v (task %s)", stats["queue"], queue.TaskTypeExtract)
	log.Printf("Workers: %v", stats["concurrency"])
	log.Printf("Job timeout: %v", stats["timeout"])
	log.Printf("Status keys: %s:*", queue.DefaultStatusPrefix)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := queueConsumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	if stats, err := tracker.GetStats(ctx); err == nil {
		log.Printf("Job totals: processing=%d completed=%d failed=%d",
			stats["processing"], stats["completed"], stats["failed"])
	}

	log.Printf("Shutdown complete")
}

func healthCheck(db *storage.PostgresClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
