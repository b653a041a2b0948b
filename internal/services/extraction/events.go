package extraction

import (
	"strings"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/services/patterns"
)

// DetectEvents scans the document for library keywords and returns one event
// per matched keyword, in library order.
func DetectEvents(lib *patterns.Library, doc *models.Document) []models.MacroEvent {
	raw := doc.Text()
	folded := strings.ToLower(raw)

	var events []models.MacroEvent
	seen := make(map[string]struct{})
	for _, cat := range lib.Events {
		label := cat.Label
		if label == "" {
			label = cat.Category
		}
		for _, kw := range cat.Keywords {
			k := strings.ToLower(strings.TrimSpace(kw))
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup || !strings.Contains(folded, k) {
				continue
			}
			seen[k] = struct{}{}

			ctx := contextSentence(raw, k)
			events = append(events, models.MacroEvent{
				Title:            label + ": " + k,
				Family:           cat.Family,
				Category:         cat.Category,
				Keyword:          k,
				Description:      ctx,
				Severity:         lib.SeverityOf(ctx),
				Regions:          lib.RegionsOf(ctx),
				SourceDocumentID: doc.ID,
			})
		}
	}
	return events
}
