package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the derived classification of a vertex. It is never
// authoritative input; the compiler derives it from the declared type.
type Category string

const (
	CategoryPlan        Category = "plan"
	CategoryCode        Category = "code"
	CategoryBuild       Category = "build"
	CategoryTest        Category = "test"
	CategoryDeploy      Category = "deploy"
	CategoryRelease     Category = "release"
	CategoryApproval    Category = "approval"
	CategoryEnvironment Category = "environment"
	CategoryAnnotation  Category = "annotation"
	CategoryOther       Category = "other"
)

// IsStage reports whether the category names a workflow stage, as opposed
// to an environment group, an annotation, or an unrecognized vertex.
func (c Category) IsStage() bool {
	switch c {
	case CategoryPlan, CategoryCode, CategoryBuild, CategoryTest,
		CategoryDeploy, CategoryRelease, CategoryApproval:
		return true
	}
	return false
}

type Position struct {
	X float64
	Y float64
}

// Vertex is one node of the pipeline graph. Category and Tool are derived
// during classification; the canvas owns every other field.
type Vertex struct {
	ID            string
	DeclaredType  string
	Label         string
	Category      Category
	Tool          string
	ParentGroupID string
	Position      Position
	Status        string
}

// Edge is a directed connection between two vertices.
type Edge struct {
	ID     string
	Source string
	Target string
}

// Graph is one snapshot of the canvas as handed to the compiler.
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
}

// VertexIDSet returns the set of vertex ids declared in the graph.
func (g Graph) VertexIDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Vertices))
	for _, v := range g.Vertices {
		if strings.TrimSpace(v.ID) == "" {
			continue
		}
		ids[v.ID] = struct{}{}
	}
	return ids
}

// ValidateBasicShape performs lightweight structural checks without any
// traversal. An edge referencing an unknown vertex indicates a bug in the
// upstream collaborator and fails fast; everything else degrades downstream.
func (g Graph) ValidateBasicShape() error {
	if g.Vertices == nil {
		return errors.New("vertices are required")
	}
	seen := make(map[string]struct{}, len(g.Vertices))
	for i, v := range g.Vertices {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("vertex[%d] id is required", i)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("vertex id %q declared twice", v.ID)
		}
		seen[v.ID] = struct{}{}
		if strings.TrimSpace(v.DeclaredType) == "" {
			return fmt.Errorf("vertex %q declared type is required", v.ID)
		}
	}
	for i, e := range g.Edges {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("edge[%d] id is required", i)
		}
		if _, ok := seen[e.Source]; !ok {
			return fmt.Errorf("edge %q references unknown source vertex %q", e.ID, e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return fmt.Errorf("edge %q references unknown target vertex %q", e.ID, e.Target)
		}
	}
	return nil
}
