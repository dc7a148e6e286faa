package extract

import (
	"detcover/internal/attack"
	"detcover/pkg/models"
)

// Techniques flattens an operation chain into one record per normalized
// technique id, in first-occurrence order. Links without an ability or with
// a technique id outside the T-pattern are skipped.
func Techniques(op *models.Operation) []*models.TechniqueRecord {
	if op == nil || len(op.Chain) == 0 {
		return nil
	}

	byID := make(map[string]*models.TechniqueRecord, len(op.Chain))
	out := make([]*models.TechniqueRecord, 0, len(op.Chain))

	for _, link := range op.Chain {
		if link == nil || link.Ability == nil {
			continue
		}
		raw := link.Ability.TechniqueID
		if !attack.IsValid(raw) {
			continue
		}
		id := attack.Normalize(raw)

		rec := byID[id]
		if rec == nil {
			meta := attack.Describe(id)
			name := meta.Name
			if name == "Unknown Technique" && link.Ability.TechniqueName != "" {
				name = link.Ability.TechniqueName
			}
			rec = &models.TechniqueRecord{
				TechniqueID: id,
				Name:        name,
				Tactics:     meta.Tactics,
			}
			byID[id] = rec
			out = append(out, rec)
		}

		rec.Count++
		rec.Executions = append(rec.Executions, models.Execution{
			Timestamp: link.Decide,
			Status:    link.Status,
			AgentID:   link.AgentID,
			Command:   link.Command,
		})
	}

	return out
}

// IDs returns the technique ids of records in their original order.
func IDs(records []*models.TechniqueRecord) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.TechniqueID)
	}
	return ids
}
