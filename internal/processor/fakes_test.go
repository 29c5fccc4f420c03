package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/adverant/nexus/waybill-worker/internal/clients"
	"github.com/adverant/nexus/waybill-worker/internal/document"
	"github.com/adverant/nexus/waybill-worker/internal/errors"
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
	"github.com/adverant/nexus/waybill-worker/internal/storage"
)

type fakeGeometric struct {
	blocks []reconstruct.Block
	err    error
}

func (f *fakeGeometric) Name() string { return "textract" }

func (f *fakeGeometric) AnalyzeDocument(ctx context.Context, imageData []byte) ([]reconstruct.Block, error) {
	return f.blocks, f.err
}

// fakeMarkdown echoes the image bytes back as markdown. Images listed in
// fail produce an error.
type fakeMarkdown struct {
	fail map[string]bool
}

func (f *fakeMarkdown) Name() string { return "mistral" }

func (f *fakeMarkdown) ProcessImage(ctx context.Context, imageData []byte) (*clients.OCRResponse, error) {
	if f.fail[string(imageData)] {
		return nil, fmt.Errorf("upstream rejected %s", imageData)
	}
	return &clients.OCRResponse{
		Model: "fake-ocr",
		Pages: []clients.OCRPage{{Index: 0, Markdown: string(imageData)}},
	}, nil
}

type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	waybills     map[int64]*storage.WaybillImage
	docs         map[int64]document.StructuredDocument
	deleted      []int64
	failComplete map[string]bool
	failCreate   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		waybills:     make(map[int64]*storage.WaybillImage),
		docs:         make(map[int64]document.StructuredDocument),
		failComplete: make(map[string]bool),
		failCreate:   make(map[string]bool),
	}
}

func (s *fakeStore) CreateWaybillImage(ctx context.Context, in *storage.NewWaybillImage) (*storage.WaybillImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate[in.Filename] {
		return nil, errors.NewPersistenceFailedError("", "create waybill image", fmt.Errorf("disk full"))
	}
	s.nextID++
	w := &storage.WaybillImage{
		ID:                s.nextID,
		Filename:          in.Filename,
		MimeType:          in.MimeType,
		Image:             in.Image,
		ExtractionModelID: in.ExtractionModelID,
	}
	s.waybills[w.ID] = w
	return w, nil
}

func (s *fakeStore) GetWaybillImage(ctx context.Context, id int64) (*storage.WaybillImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waybills[id]
	if !ok {
		return nil, errors.NewRecordNotFoundError(id)
	}
	return w, nil
}

func (s *fakeStore) CompleteExtraction(ctx context.Context, waybillID int64, doc document.StructuredDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waybills[waybillID]
	if !ok {
		return errors.NewRecordNotFoundError(waybillID)
	}
	if s.failComplete[w.Filename] {
		return fmt.Errorf("connection reset")
	}
	s.docs[waybillID] = doc
	w.Processed = true
	return nil
}

func (s *fakeStore) DeleteWaybillImage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waybills, id)
	delete(s.docs, id)
	s.deleted = append(s.deleted, id)
	return nil
}
