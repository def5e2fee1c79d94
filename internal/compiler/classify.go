// Package compiler turns one settled canvas snapshot into an ordered
// structure, a deterministic layout, and a serialized pipeline descriptor.
// Every entry point is a pure function over its inputs; a compile pass
// holds no state across calls.
package compiler

import (
	"strings"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

var categoryPrefixes = []struct {
	prefix   string
	category domain.Category
}{
	{"plan_", domain.CategoryPlan},
	{"code_", domain.CategoryCode},
	{"build_", domain.CategoryBuild},
	{"test_", domain.CategoryTest},
	{"deploy_", domain.CategoryDeploy},
	{"release_", domain.CategoryRelease},
	{"approval_", domain.CategoryApproval},
	{"env_", domain.CategoryEnvironment},
}

// Classify derives the category and tool identifier from a vertex's
// declared type. Total: unknown input maps to CategoryOther, the literal
// note/comment types to CategoryAnnotation. The tool is the remainder of
// the type string after the first prefix segment.
func Classify(declaredType string) (domain.Category, string) {
	switch declaredType {
	case "note", "comment":
		return domain.CategoryAnnotation, ""
	}
	for _, p := range categoryPrefixes {
		if strings.HasPrefix(declaredType, p.prefix) {
			return p.category, declaredType[len(p.prefix):]
		}
	}
	return domain.CategoryOther, ""
}

// ClassifyGraph returns a copy of the graph's vertices with derived
// Category and Tool filled in. Annotation and unrecognized vertices are
// carried through here and excluded by every downstream step.
func ClassifyGraph(g domain.Graph) []domain.Vertex {
	out := make([]domain.Vertex, 0, len(g.Vertices))
	for _, v := range g.Vertices {
		v.Category, v.Tool = Classify(v.DeclaredType)
		out = append(out, v)
	}
	return out
}
