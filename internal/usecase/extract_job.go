package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	"MacroChain/pkg/queue"
)

const ExtractDocumentMessage = "extract.document"

// ExtractDocumentPayload names a stored document to (re-)extract.
type ExtractDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

// ExtractDocumentJob is the queue job behind asynchronous extraction requests.
type ExtractDocumentJob struct {
	docs      drepo.DocumentStore
	extractor *ChainExtractor
}

func NewExtractDocumentJob(docs drepo.DocumentStore, extractor *ChainExtractor) *ExtractDocumentJob {
	return &ExtractDocumentJob{docs: docs, extractor: extractor}
}

func (j *ExtractDocumentJob) Name() string { return "extract_document" }

func (j *ExtractDocumentJob) Type() string { return ExtractDocumentMessage }

func (j *ExtractDocumentJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[ExtractDocumentPayload](payload)
	if err != nil {
		return err
	}
	if p.DocumentID == "" {
		return fmt.Errorf("extract job: %w", models.ErrInvalidDocument)
	}
	doc, err := j.docs.Get(ctx, p.DocumentID)
	if err != nil {
		return fmt.Errorf("extract job %s: %w", p.DocumentID, err)
	}
	_, err = j.extractor.ExtractAndStore(ctx, doc)
	if errors.Is(err, models.ErrExtractionInFlight) {
		return nil
	}
	return err
}

var _ queue.Job = (*ExtractDocumentJob)(nil)
