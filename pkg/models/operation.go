package models

import "time"

// Operation is one recorded adversary-emulation run. It is owned by the
// operation store and treated as read-only by the analysis engine.
type Operation struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Start  time.Time  `json:"start"`
	Finish *time.Time `json:"finish,omitempty"`
	Chain  []*Link    `json:"chain"`
}

// Link is one executed action within an operation chain.
type Link struct {
	Command string    `json:"command,omitempty"`
	Decide  time.Time `json:"decide"`
	Status  int       `json:"status"`
	AgentID string    `json:"paw,omitempty"`
	Ability *Ability  `json:"ability,omitempty"`
}

// Ability describes the action a link executed.
type Ability struct {
	AbilityID     string `json:"ability_id,omitempty"`
	Name          string `json:"name,omitempty"`
	TechniqueID   string `json:"technique_id,omitempty"`
	TechniqueName string `json:"technique_name,omitempty"`
}

// End returns the operation finish time, or now when still running.
func (o *Operation) End(now time.Time) time.Time {
	if o.Finish != nil && !o.Finish.IsZero() {
		return *o.Finish
	}
	return now
}
