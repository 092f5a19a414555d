package extract

import "github.com/civicgraph/orgscope/internal/model"

// batchDocuments groups usable documents into batches whose combined
// content stays under charBudget. Documents with identical content
// hashes are collapsed to one. A single oversized document is truncated
// to the budget rather than dropped.
func batchDocuments(docs []model.RawDocument, charBudget int) [][]model.RawDocument {
	if charBudget <= 0 {
		charBudget = 24000
	}

	var batches [][]model.RawDocument
	var current []model.RawDocument
	currentLen := 0
	seen := make(map[string]bool)

	for _, d := range docs {
		if !d.Usable() {
			continue
		}
		if d.ContentHash != "" && seen[d.ContentHash] {
			continue
		}
		seen[d.ContentHash] = true

		if len(d.ContentText) > charBudget {
			d.ContentText = d.ContentText[:charBudget]
			d.Truncated = true
		}

		if currentLen+len(d.ContentText) > charBudget && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentLen = 0
		}
		current = append(current, d)
		currentLen += len(d.ContentText)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
