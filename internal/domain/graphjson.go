package domain

import (
	"encoding/json"
	"fmt"
)

// Wire format for graphs, shared by the HTTP API and the pipeline
// store. Field names follow the canvas contract; domain structs stay
// free of serialization tags.

type graphPayload struct {
	Vertices []vertexPayload `json:"vertices"`
	Edges    []edgePayload   `json:"edges"`
}

type vertexPayload struct {
	ID            string          `json:"id"`
	DeclaredType  string          `json:"declaredType"`
	Label         string          `json:"label,omitempty"`
	Category      string          `json:"category,omitempty"`
	Tool          string          `json:"tool,omitempty"`
	ParentGroupID string          `json:"parentGroupId,omitempty"`
	Position      positionPayload `json:"position"`
	Status        string          `json:"status,omitempty"`
}

type positionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type edgePayload struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func MarshalGraphJSON(g Graph) ([]byte, error) {
	payload := graphPayload{
		Vertices: make([]vertexPayload, 0, len(g.Vertices)),
		Edges:    make([]edgePayload, 0, len(g.Edges)),
	}
	for _, v := range g.Vertices {
		payload.Vertices = append(payload.Vertices, vertexPayload{
			ID:            v.ID,
			DeclaredType:  v.DeclaredType,
			Label:         v.Label,
			Category:      string(v.Category),
			Tool:          v.Tool,
			ParentGroupID: v.ParentGroupID,
			Position:      positionPayload{X: v.Position.X, Y: v.Position.Y},
			Status:        v.Status,
		})
	}
	for _, e := range g.Edges {
		payload.Edges = append(payload.Edges, edgePayload{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	return json.Marshal(payload)
}

func UnmarshalGraphJSON(raw []byte) (Graph, error) {
	var payload graphPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Graph{}, fmt.Errorf("decode graph: %w", err)
	}
	g := Graph{
		Vertices: make([]Vertex, 0, len(payload.Vertices)),
		Edges:    make([]Edge, 0, len(payload.Edges)),
	}
	for _, v := range payload.Vertices {
		g.Vertices = append(g.Vertices, Vertex{
			ID:            v.ID,
			DeclaredType:  v.DeclaredType,
			Label:         v.Label,
			Category:      Category(v.Category),
			Tool:          v.Tool,
			ParentGroupID: v.ParentGroupID,
			Position:      Position{X: v.Position.X, Y: v.Position.Y},
			Status:        v.Status,
		})
	}
	for _, e := range payload.Edges {
		g.Edges = append(g.Edges, Edge{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	return g, nil
}
