package models

import "time"

// Execution is a single observed run of a technique within an operation.
type Execution struct {
	Timestamp time.Time `json:"ts"`
	Status    int       `json:"status"`
	AgentID   string    `json:"agent_id,omitempty"`
	Command   string    `json:"command,omitempty"`
}

// TechniqueRecord aggregates every execution of one normalized technique id
// within an operation. Sub-techniques collapse into their parent record.
type TechniqueRecord struct {
	TechniqueID string      `json:"technique_id"`
	Name        string      `json:"name"`
	Tactics     []string    `json:"tactics"`
	Count       int         `json:"count"`
	Executions  []Execution `json:"executions"`
}

// FirstExecution returns the earliest execution timestamp, or zero.
func (t *TechniqueRecord) FirstExecution() time.Time {
	var first time.Time
	for _, ex := range t.Executions {
		if ex.Timestamp.IsZero() {
			continue
		}
		if first.IsZero() || ex.Timestamp.Before(first) {
			first = ex.Timestamp
		}
	}
	return first
}
