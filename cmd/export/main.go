// Command export writes stored waybills to an Excel workbook.
//
//	export -ids 1,2,5 -out waybills.xlsx
//
// Without -ids every waybill is exported. Without -out the workbook is
// written to waybills_<timestamp>.xlsx in the current directory.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/waybill-worker/internal/config"
	"github.com/adverant/nexus/waybill-worker/internal/export"
	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

func main() {
	ids := flag.String("ids", "", "comma separated waybill ids")
	out := flag.String("out", "", "output file")
	flag.Parse()

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

	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()

	var buf bytes.Buffer
	name, err := export.NewService(storageManager).Export(context.Background(), *ids, &buf)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	path := *out
	if path == "" {
		path = name
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}

	fmt.Println(path)
}
