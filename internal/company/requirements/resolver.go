// Package requirements derives the document slots a regime requires.
package requirements

import "github.com/lucidcount/dashboard/internal/company/models"

// Resolve returns one empty slot per document type the catalog lists for regime,
// in catalog order. Unknown regimes and a nil catalog yield no slots.
func Resolve(regime string, catalog *models.RequirementCatalog) []models.DocumentSlot {
	types, ok := catalog.DocumentTypes(regime)
	if !ok {
		return []models.DocumentSlot{}
	}
	slots := make([]models.DocumentSlot, 0, len(types))
	for _, t := range types {
		slots = append(slots, models.DocumentSlot{DocumentType: t})
	}
	return slots
}

// Attached returns the slots that have a file.
func Attached(slots []models.DocumentSlot) []models.DocumentSlot {
	out := make([]models.DocumentSlot, 0, len(slots))
	for _, s := range slots {
		if s.HasFile() {
			out = append(out, s)
		}
	}
	return out
}
