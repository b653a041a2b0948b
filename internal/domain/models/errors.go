package models

import "errors"

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrExtractionInFlight = errors.New("extraction already in flight for document")
)
