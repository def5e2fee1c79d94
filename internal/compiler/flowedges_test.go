package compiler

import (
	"reflect"
	"testing"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

func orderedGroups(ids ...string) []OrderedGroup {
	out := make([]OrderedGroup, 0, len(ids))
	for _, id := range ids {
		out = append(out, OrderedGroup{Group: domain.Vertex{
			ID:       id,
			Category: domain.CategoryEnvironment,
			Tool:     id,
		}})
	}
	return out
}

func TestSynthesizeFlowEdgesChainsDeploymentOrder(t *testing.T) {
	edges := SynthesizeFlowEdges(orderedGroups("dev", "qa", "prod"), nil)

	want := []domain.Edge{
		{ID: "flow-dev-qa", Source: "dev", Target: "qa"},
		{ID: "flow-qa-prod", Source: "qa", Target: "prod"},
	}
	if !reflect.DeepEqual(edges, want) {
		t.Fatalf("edges=%v, want %v", edges, want)
	}
}

func TestSynthesizeFlowEdgesIdempotent(t *testing.T) {
	groups := orderedGroups("dev", "qa", "prod")
	first := SynthesizeFlowEdges(groups, nil)

	existing := make(map[string]struct{}, len(first))
	for _, e := range first {
		existing[e.ID] = struct{}{}
	}
	if second := SynthesizeFlowEdges(groups, existing); len(second) != 0 {
		t.Fatalf("expected zero new edges on re-run, got %v", second)
	}
}

func TestSynthesizeFlowEdgesPartialSeed(t *testing.T) {
	groups := orderedGroups("dev", "qa", "prod")
	existing := map[string]struct{}{"flow-dev-qa": {}}

	edges := SynthesizeFlowEdges(groups, existing)
	want := []domain.Edge{{ID: "flow-qa-prod", Source: "qa", Target: "prod"}}
	if !reflect.DeepEqual(edges, want) {
		t.Fatalf("edges=%v, want %v", edges, want)
	}
}

func TestSynthesizeFlowEdgesSkippedBelowTwoGroups(t *testing.T) {
	if edges := SynthesizeFlowEdges(nil, nil); edges != nil {
		t.Fatalf("expected nil for zero groups, got %v", edges)
	}
	if edges := SynthesizeFlowEdges(orderedGroups("dev"), nil); edges != nil {
		t.Fatalf("expected nil for one group, got %v", edges)
	}
}
