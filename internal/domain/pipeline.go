package domain

import (
	"errors"
	"strings"
	"time"
)

// Pipeline is the persisted design-time entity: one named graph plus
// scalar metadata. Stage configuration lives in its own table keyed by
// StageKey and is joined in at compile time.
type Pipeline struct {
	ID         string
	ProjectID  string
	Name       string
	Workstream string
	Graph      Graph
	CreatedAt  time.Time
	CreatedBy  string
	UpdatedAt  time.Time
}

func (p Pipeline) Validate() error {
	if strings.TrimSpace(p.ProjectID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	return p.Graph.ValidateBasicShape()
}
