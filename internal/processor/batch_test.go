package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/adverant/nexus/waybill-worker/internal/config"
	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/errors"
)

func uploads(names ...string) []Upload {
	out := make([]Upload, len(names))
	for i, n := range names {
		out[i] = Upload{Filename: n + ".png", Data: []byte(n)}
	}
	return out
}

func TestBatchProcessKeepsInputOrder(t *testing.T) {
	store := newFakeStore()
	e := NewExtractor(&ExtractorConfig{Config: fullConfig(), Mistral: &fakeMarkdown{}})
	bp := NewBatchProcessor(e, store, 4)

	names := []string{"Sender A", "Recipient B", "Weight C", "Date D", "Waybill E", "F"}
	result, err := bp.Process(context.Background(), &BatchRequest{ModelName: "Mistral", Uploads: uploads(names...)})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if result.BatchID == "" {
		t.Error("missing batch id")
	}
	if len(result.WaybillIDs) != len(names) {
		t.Fatalf("stored %d waybills, want %d", len(result.WaybillIDs), len(names))
	}

	for i, id := range result.WaybillIDs {
		if id != int64(i+1) {
			t.Errorf("waybill %d has id %d", i, id)
		}
		md, ok := store.docs[id].(*document.MarkdownDocument)
		if !ok {
			t.Fatalf("doc %d = %T", id, store.docs[id])
		}
		if !strings.HasPrefix(md.RawText, names[i]) {
			t.Errorf("doc %d raw text = %q, want prefix %q", id, md.RawText, names[i])
		}
		if !store.waybills[id].Processed {
			t.Errorf("waybill %d not processed", id)
		}
	}
}

func TestBatchProcessConfigurationMissingCreatesNothing(t *testing.T) {
	store := newFakeStore()
	e := NewExtractor(&ExtractorConfig{Config: &config.Config{}, Mistral: &fakeMarkdown{}})
	bp := NewBatchProcessor(e, store, 2)

	_, err := bp.Process(context.Background(), &BatchRequest{ModelName: "Mistral", Uploads: uploads("a")})
	if !errors.HasCode(err, errors.ErrorConfigurationMissing) {
		t.Fatalf("error = %v, want CONFIGURATION_MISSING", err)
	}
	if len(store.waybills) != 0 {
		t.Errorf("records created before configuration check: %d", len(store.waybills))
	}
}

func TestBatchProcessBackendFailureStopsBatch(t *testing.T) {
	store := newFakeStore()
	e := NewExtractor(&ExtractorConfig{
		Config:  fullConfig(),
		Mistral: &fakeMarkdown{fail: map[string]bool{"b": true}},
	})
	bp := NewBatchProcessor(e, store, 3)

	result, err := bp.Process(context.Background(), &BatchRequest{ModelName: "Mistral", Uploads: uploads("a", "b", "c")})
	if !errors.HasCode(err, errors.ErrorBackendCallFailed) {
		t.Fatalf("error = %v, want BACKEND_CALL_FAILED", err)
	}
	if len(result.WaybillIDs) != 1 {
		t.Errorf("stored %v, want only the first item", result.WaybillIDs)
	}
	if len(store.waybills) != 1 {
		t.Errorf("store holds %d waybills, want 1", len(store.waybills))
	}
}

func TestBatchProcessBackendFailureWithFallback(t *testing.T) {
	store := newFakeStore()
	e := NewExtractor(&ExtractorConfig{
		Config:  fullConfig(),
		Mistral: &fakeMarkdown{fail: map[string]bool{"b": true}},
		Policy:  FallbackPolicy{},
	})
	bp := NewBatchProcessor(e, store, 3)

	result, err := bp.Process(context.Background(), &BatchRequest{ModelName: "Mistral", Uploads: uploads("a", "b", "c")})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(result.WaybillIDs) != 3 {
		t.Fatalf("stored %d, want 3", len(result.WaybillIDs))
	}
	if _, ok := result.Documents[1].(*document.FallbackDocument); !ok {
		t.Errorf("second document = %T, want fallback", result.Documents[1])
	}
}

func TestBatchProcessPersistenceFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	store.failComplete["b.png"] = true
	e := NewExtractor(&ExtractorConfig{Config: fullConfig(), Mistral: &fakeMarkdown{}})
	bp := NewBatchProcessor(e, store, 2)

	result, err := bp.Process(context.Background(), &BatchRequest{ModelName: "Mistral", Uploads: uploads("a", "b", "c")})
	if !errors.HasCode(err, errors.ErrorPersistenceFailed) {
		t.Fatalf("error = %v, want PERSISTENCE_FAILED", err)
	}
	if len(result.WaybillIDs) != 1 {
		t.Errorf("stored %v, want 1", result.WaybillIDs)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 2 {
		t.Errorf("deleted = %v, want [2]", store.deleted)
	}
	if _, ok := store.waybills[2]; ok {
		t.Error("failed waybill was not rolled back")
	}
	if len(store.waybills) != 1 {
		t.Errorf("store holds %d waybills, want 1", len(store.waybills))
	}
}

func TestBatchProcessRequiresUploads(t *testing.T) {
	bp := NewBatchProcessor(NewExtractor(&ExtractorConfig{}), newFakeStore(), 1)
	if _, err := bp.Process(context.Background(), &BatchRequest{ModelName: "Mistral"}); err == nil {
		t.Error("expected error for empty batch")
	}
}
