// Command upload stores waybill images and extracts them, either through
// the worker queue or inline with -sync.
//
//	upload -model "AWS Textract" scan1.png scan2.jpg
//	upload -model Mistral -sync scan1.png
//	upload -list-models
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/waybill-worker/internal/clients"
	"github.com/adverant/nexus/waybill-worker/internal/config"
	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/processor"
	"github.com/adverant/nexus/waybill-worker/internal/queue"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

func main() {
	model := flag.String("model", "AWS Textract", "extraction model name")
	sync := flag.Bool("sync", false, "extract inline instead of queueing")
	listModels := flag.Bool("list-models", false, "print the registered extraction models and exit")
	flag.Parse()

	if flag.NArg() == 0 && !*listModels {
		fmt.Fprintln(os.Stderr, "usage: upload [-model name] [-sync] image...\n       upload -list-models")
		os.Exit(2)
	}

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

	var uploads []processor.Upload
	if !*listModels {
		if err := checkModel(cfg, *model); err != nil {
			log.Fatalf("Cannot use model %q: %v", *model, err)
		}
		uploads, err = readUploads(flag.Args(), cfg.MaxImageSize)
		if err != nil {
			log.Fatal(err)
		}
	}

	ctx := context.Background()

	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()

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

	if *listModels {
		models, err := storageManager.Postgres().ListExtractionModels(ctx)
		if err != nil {
			log.Fatalf("Failed to list extraction models: %v", err)
		}
		printModels(os.Stdout, models)
		return
	}

	var modelID *int64
	if m, err := storageManager.Postgres().GetExtractionModelByName(ctx, *model); err == nil {
		modelID = &m.ID
	} else {
		log.Printf("Extraction model %q not registered: %v", *model, err)
	}

	var ids []int64
	if *sync {
		ids, err = runInline(ctx, cfg, storageManager, *model, modelID, uploads)
	} else {
		var enqueuer *queue.Enqueuer
		enqueuer, err = queue.NewEnqueuer(cfg.RedisURL, queue.DefaultQueueName)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer enqueuer.Close()
		ids, err = enqueue(ctx, storageManager, enqueuer, *model, modelID, uploads)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Fprintf(os.Stderr, "export with: export -ids %s\n", joinIDs(ids))
}

func readUploads(paths []string, maxSize int64) ([]processor.Upload, error) {
	uploads := make([]processor.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if int64(len(data)) > maxSize {
			return nil, fmt.Errorf("%s exceeds maximum image size of %d bytes", path, maxSize)
		}
		if mimeType := clients.DetectImageMIME(data); !clients.IsSupportedImage(mimeType) {
			log.Printf("Warning: %s is not a recognized image (%s), sending it anyway", path, mimeType)
		}
		uploads = append(uploads, processor.Upload{Filename: filepath.Base(path), Data: data})
	}
	return uploads, nil
}

func runInline(ctx context.Context, cfg *config.Config, store *storage.StorageManager, model string, modelID *int64, uploads []processor.Upload) ([]int64, error) {
	extractor, err := processor.NewExtractorFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bp := processor.NewBatchProcessor(extractor, store, cfg.WorkerConcurrency)
	result, err := bp.Process(ctx, &processor.BatchRequest{
		ModelName: model,
		ModelID:   modelID,
		Uploads:   uploads,
	})
	if result == nil {
		return nil, err
	}
	return result.WaybillIDs, err
}

type waybillStore interface {
	CreateWaybillImage(ctx context.Context, in *storage.NewWaybillImage) (*storage.WaybillImage, error)
	DeleteWaybillImage(ctx context.Context, id int64) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, waybillID int64, modelName string) (string, error)
}

// checkModel fails fast when the backend behind model has no credentials,
// before anything is written to storage
func checkModel(cfg *config.Config, model string) error {
	return cfg.RequireBackend(config.BackendForModel(model))
}

// enqueue stores each upload and queues it for extraction. A waybill whose
// job cannot be queued is deleted again; the ids queued before it are
// returned with the error.
func enqueue(ctx context.Context, store waybillStore, enqueuer jobEnqueuer, model string, modelID *int64, uploads []processor.Upload) ([]int64, error) {
	var ids []int64
	for _, up := range uploads {
		waybill, err := store.CreateWaybillImage(ctx, &storage.NewWaybillImage{
			Filename:          up.Filename,
			MimeType:          clients.DetectImageMIME(up.Data),
			Image:             up.Data,
			ExtractionModelID: modelID,
		})
		if err != nil {
			return ids, err
		}

		jobID, err := enqueuer.Enqueue(ctx, waybill.ID, model)
		if err != nil {
			if delErr := store.DeleteWaybillImage(ctx, waybill.ID); delErr != nil {
				log.Printf("Failed to remove unqueued waybill %d: %v", waybill.ID, delErr)
			}
			return ids, fmt.Errorf("failed to queue %s: %w", up.Filename, err)
		}
		log.Printf("Queued waybill %d (%s) as job %s", waybill.ID, up.Filename, jobID)
		ids = append(ids, waybill.ID)
	}
	return ids, nil
}

func printModels(w io.Writer, models []*storage.ExtractionModel) {
	for _, m := range models {
		status := "active"
		if !m.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, m.Name, config.BackendForModel(m.Name), status)
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
