package compiler

import "github.com/pipecanvas-labs/pipecanvas-go/internal/domain"

// SynthesizeFlowEdges connects each environment group to the next in
// deployment order. Edge ids are deterministic functions of the group id
// pair, so an edge already present in existingIDs is not re-emitted and a
// second run over unchanged structure yields zero new edges. Fewer than
// two groups produce nothing.
func SynthesizeFlowEdges(ordered []OrderedGroup, existingIDs map[string]struct{}) []domain.Edge {
	if len(ordered) < 2 {
		return nil
	}
	var out []domain.Edge
	for i := 1; i < len(ordered); i++ {
		from := ordered[i-1].Group.ID
		to := ordered[i].Group.ID
		id := flowEdgeID(from, to)
		if _, ok := existingIDs[id]; ok {
			continue
		}
		out = append(out, domain.Edge{ID: id, Source: from, Target: to})
	}
	return out
}

func flowEdgeID(fromID, toID string) string {
	return "flow-" + fromID + "-" + toID
}
