package reflex

import (
	"encoding/json"
	"fmt"
)

// WireNode is a node as sent by the editor in a unified save.
type WireNode struct {
	ID        string          `json:"id"`
	Type      NodeKind        `json:"type"`
	PositionX float64         `json:"positionX"`
	PositionY float64         `json:"positionY"`
	Data      json.RawMessage `json:"data"`
}

// WireEdge is an edge as sent by the editor in a unified save.
type WireEdge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// WireGraph is the body of a graph save request and response.
type WireGraph struct {
	Nodes []WireNode `json:"nodes"`
	Edges []WireEdge `json:"edges"`
}

// NewWireGraph encodes g in the wire shape.
func NewWireGraph(g Graph) (WireGraph, error) {
	w := WireGraph{Nodes: make([]WireNode, 0, len(g.Nodes)), Edges: make([]WireEdge, 0, len(g.Edges))}
	for _, n := range g.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return WireGraph{}, fmt.Errorf("reflex: encode node %q: %w", n.ID, err)
		}
		w.Nodes = append(w.Nodes, WireNode{
			ID:        n.ID,
			Type:      n.Type,
			PositionX: n.Position.X,
			PositionY: n.Position.Y,
			Data:      data,
		})
	}
	for _, e := range g.Edges {
		w.Edges = append(w.Edges, WireEdge(e))
	}
	return w, nil
}

// Graph decodes w. Edges without an id get one derived from their endpoints.
func (w WireGraph) Graph() (Graph, error) {
	g := Graph{Nodes: make([]Node, 0, len(w.Nodes)), Edges: make([]Edge, 0, len(w.Edges))}
	for _, wn := range w.Nodes {
		data, err := decodeNodeData(wn.Type, wn.Data)
		if err != nil {
			return Graph{}, fmt.Errorf("reflex: node %q: %w", wn.ID, err)
		}
		g.Nodes = append(g.Nodes, Node{
			ID:       wn.ID,
			Type:     wn.Type,
			Position: Position{X: wn.PositionX, Y: wn.PositionY},
			Data:     data,
		})
	}
	for i, we := range w.Edges {
		e := Edge(we)
		if e.ID == "" {
			e.ID = fmt.Sprintf("e-%s-%s-%d", e.Source, e.Target, i)
		}
		g.Edges = append(g.Edges, e)
	}
	return g, nil
}
