package models

// Requests for chain HTTP endpoints.

type ListChainsRequest struct {
	SourceDocumentID string `query:"source_document_id" json:"source_document_id" validate:"omitempty,max=128"`
	Limit            int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type ExtractRequest struct {
	ID     string `json:"id" validate:"required,max=128"`
	Title  string `json:"title" validate:"max=512"`
	Body   string `json:"body" validate:"required"`
	Date   string `json:"date"`
	Source string `json:"source" default:"api" validate:"max=64"`
	URL    string `json:"url" validate:"omitempty,url"`
}

type EnqueueExtractRequest struct {
	ID string `param:"id" validate:"required,max=128"`
}
