package compiler

import "github.com/pipecanvas-labs/pipecanvas-go/internal/domain"

// GeneralBucket names the synthetic owner for stages with no resolvable
// environment group.
const GeneralBucket = "General"

// Assignment is the ownership partition: every classified stage belongs to
// exactly one environment group's member list or to General, never both,
// never neither.
type Assignment struct {
	// Groups holds the environment group vertices in input order.
	Groups []domain.Vertex
	// Members maps an environment group id to its stages, input order.
	Members map[string][]domain.Vertex
	// General holds stages with no resolvable owner.
	General []domain.Vertex
}

// ResolveOwnership assigns every workflow stage to an environment group.
// Priority: single-environment shortcut, then explicit parent references,
// then an upstream graph walk. Annotation and unrecognized vertices are
// discarded. Cyclic or disconnected stages degrade into General.
func ResolveOwnership(classified []domain.Vertex, edges []domain.Edge) Assignment {
	a := Assignment{Members: map[string][]domain.Vertex{}}

	var stages []domain.Vertex
	for _, v := range classified {
		switch {
		case v.Category == domain.CategoryEnvironment:
			a.Groups = append(a.Groups, v)
		case v.Category.IsStage():
			stages = append(stages, v)
		}
	}

	if len(a.Groups) == 1 {
		only := a.Groups[0].ID
		a.Members[only] = append(a.Members[only], stages...)
		return a
	}

	groupIDs := make(map[string]struct{}, len(a.Groups))
	for _, g := range a.Groups {
		groupIDs[g.ID] = struct{}{}
	}

	anyExplicit := false
	for _, s := range stages {
		if s.ParentGroupID != "" {
			anyExplicit = true
			break
		}
	}

	if anyExplicit {
		for _, s := range stages {
			if _, ok := groupIDs[s.ParentGroupID]; ok {
				a.Members[s.ParentGroupID] = append(a.Members[s.ParentGroupID], s)
				continue
			}
			a.General = append(a.General, s)
		}
		return a
	}

	reverse := reverseAdjacency(edges)
	for _, s := range stages {
		owner, ok := walkUpstream(s.ID, reverse, groupIDs)
		if !ok {
			a.General = append(a.General, s)
			continue
		}
		a.Members[owner] = append(a.Members[owner], s)
	}
	return a
}

func reverseAdjacency(edges []domain.Edge) map[string][]string {
	reverse := make(map[string][]string, len(edges))
	for _, e := range edges {
		reverse[e.Target] = append(reverse[e.Target], e.Source)
	}
	return reverse
}

// walkUpstream follows reverse edges from the stage until it reaches an
// environment group. The worklist is bounded by the visited set, so cycles
// exhaust instead of looping; an exhausted walk reports no owner.
func walkUpstream(stageID string, reverse map[string][]string, groupIDs map[string]struct{}) (string, bool) {
	visited := map[string]struct{}{stageID: {}}
	worklist := append([]string(nil), reverse[stageID]...)

	for len(worklist) > 0 {
		current := worklist[0]
		worklist = worklist[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if _, ok := groupIDs[current]; ok {
			return current, true
		}
		worklist = append(worklist, reverse[current]...)
	}
	return "", false
}
