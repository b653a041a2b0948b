package models

// EventFamily is the top-level grouping of a macro event category.
type EventFamily string

const (
	FamilyCorporate    EventFamily = "corporate"
	FamilyEconomic     EventFamily = "economic"
	FamilyGeopolitical EventFamily = "geopolitical"
	FamilySupplyChain  EventFamily = "supply_chain"
)

// MacroEvent is a real-world trigger candidate found in a document.
// Events gate extraction; they are not stored as rows of their own.
type MacroEvent struct {
	Title            string      `json:"title"`
	Family           EventFamily `json:"family"`
	Category         string      `json:"category"`
	Keyword          string      `json:"keyword"`
	Description      string      `json:"description"`
	Severity         float64     `json:"severity"`
	Regions          []string    `json:"regions,omitempty"`
	SourceDocumentID string      `json:"source_document_id"`
}
