package compiler

import "github.com/pipecanvas-labs/pipecanvas-go/internal/domain"

// LayoutConfig carries the canvas pitches and offsets as named
// configuration, overridable per deployment without touching the
// placement code.
type LayoutConfig struct {
	OriginX     float64
	OriginY     float64
	GroupWidth  float64
	GroupGutter float64

	ChildInsetX    float64
	ChildTopOffset float64
	RowHeight      float64
	RowGap         float64
	BottomMargin   float64

	OrphanColumns int
	OrphanPitchX  float64
	OrphanPitchY  float64
}

func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		OriginX:        40,
		OriginY:        40,
		GroupWidth:     280,
		GroupGutter:    120,
		ChildInsetX:    20,
		ChildTopOffset: 60,
		RowHeight:      48,
		RowGap:         16,
		BottomMargin:   24,
		OrphanColumns:  3,
		OrphanPitchX:   200,
		OrphanPitchY:   90,
	}
}

// GroupHeight is the rendered height of a group with n children.
func (c LayoutConfig) GroupHeight(childCount int) float64 {
	return c.ChildTopOffset + float64(childCount)*(c.RowHeight+c.RowGap) + c.BottomMargin
}

// Layout is the computed placement plus the synthetic sequential edges
// between consecutive children. The synthetic edges are visual aids, not
// semantic dependencies; nothing downstream of the canvas reads them.
type Layout struct {
	Vertices       []domain.Vertex
	SyntheticEdges []domain.Edge
}

// ComputeLayout places environment groups left to right and stacks each
// group's stages vertically, then lays unowned stages out in a grid after
// the last group. It is a pure function of the ordered structure:
// identical input always yields identical coordinates. With zero
// environment groups the vertices are returned unchanged.
func ComputeLayout(vertices []domain.Vertex, ordered []OrderedGroup, general []domain.Vertex, cfg LayoutConfig) Layout {
	if len(ordered) == 0 {
		return Layout{Vertices: vertices}
	}

	positions := make(map[string]domain.Position)
	parents := make(map[string]string)
	var synthetic []domain.Edge

	for i, og := range ordered {
		gx := cfg.OriginX + float64(i)*(cfg.GroupWidth+cfg.GroupGutter)
		positions[og.Group.ID] = domain.Position{X: gx, Y: cfg.OriginY}

		for j, stage := range og.Stages {
			positions[stage.ID] = domain.Position{
				X: gx + cfg.ChildInsetX,
				Y: cfg.OriginY + cfg.ChildTopOffset + float64(j)*(cfg.RowHeight+cfg.RowGap),
			}
			parents[stage.ID] = og.Group.ID
			if j > 0 {
				prev := og.Stages[j-1]
				synthetic = append(synthetic, domain.Edge{
					ID:     childEdgeID(prev.ID, stage.ID),
					Source: prev.ID,
					Target: stage.ID,
				})
			}
		}
	}

	// Orphans go in a grid past the last group's right edge so they can
	// never overlap group bounds.
	orphanOriginX := cfg.OriginX + float64(len(ordered))*(cfg.GroupWidth+cfg.GroupGutter)
	columns := cfg.OrphanColumns
	if columns < 1 {
		columns = 1
	}
	for i, v := range general {
		positions[v.ID] = domain.Position{
			X: orphanOriginX + float64(i%columns)*cfg.OrphanPitchX,
			Y: cfg.OriginY + float64(i/columns)*cfg.OrphanPitchY,
		}
	}

	out := make([]domain.Vertex, 0, len(vertices))
	for _, v := range vertices {
		if pos, ok := positions[v.ID]; ok {
			v.Position = pos
		}
		if parent, ok := parents[v.ID]; ok {
			v.ParentGroupID = parent
		}
		out = append(out, v)
	}
	return Layout{Vertices: out, SyntheticEdges: synthetic}
}

func childEdgeID(fromID, toID string) string {
	return "seq-" + fromID + "-" + toID
}
