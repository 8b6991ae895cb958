// Package reflex models the reflex-rule graph edited in the LIMS rule designer:
// triggers feed decisions, decisions branch into rule chains and actions.
// It validates candidate graphs, converts them to and from the persisted
// rule tree, keeps undo/redo history and drives saving for an editor session.
package reflex

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeKind identifies what a graph node stands for.
type NodeKind string

const (
	KindTrigger  NodeKind = "trigger"
	KindDecision NodeKind = "decision"
	KindRule     NodeKind = "rule"
	KindAction   NodeKind = "action"
)

// Valid reports whether k is one of the four known kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindTrigger, KindDecision, KindRule, KindAction:
		return true
	}
	return false
}

// Operator is the comparison a rule criterion applies to an analysis result.
type Operator string

const (
	OpEqual       Operator = "="
	OpNotEqual    Operator = "!="
	OpGreater     Operator = ">"
	OpLess        Operator = "<"
	OpGreaterEq   Operator = ">="
	OpLessEq      Operator = "<="
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

// Valid reports whether op is an allowed operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEq, OpLessEq, OpContains, OpNotContains:
		return true
	}
	return false
}

// Numeric reports whether op compares numbers.
func (op Operator) Numeric() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return true
	}
	return false
}

// ActionType selects what an action node does.
type ActionType string

const (
	ActionAdd      ActionType = "add"
	ActionFinalize ActionType = "finalize"
)

// Valid reports whether t is add or finalize.
func (t ActionType) Valid() bool {
	return t == ActionAdd || t == ActionFinalize
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnalysisRef points at an analysis in the LIMS catalogue.
type AnalysisRef struct {
	UID string `json:"uid"`
}

// NodeData is the kind-specific payload of a node. It is implemented by
// TriggerData, DecisionData, RuleData and ActionData only.
type NodeData interface {
	Kind() NodeKind
	clone() NodeData
}

// TriggerData is the entry condition of a reflex rule. Level is decoded as
// a float; ValidateNode rejects values that are not whole numbers.
type TriggerData struct {
	UID           string        `json:"uid,omitempty"`
	Level         float64       `json:"level"`
	Description   string        `json:"description"`
	SampleTypeUID string        `json:"sampleTypeUid,omitempty"`
	Analyses      []AnalysisRef `json:"analyses"`
}

func (TriggerData) Kind() NodeKind { return KindTrigger }

func (d TriggerData) clone() NodeData {
	if d.Analyses != nil {
		d.Analyses = append([]AnalysisRef(nil), d.Analyses...)
	}
	return d
}

// DecisionData groups rule chains and actions. Priority is optional.
type DecisionData struct {
	UID         string `json:"uid,omitempty"`
	Description string `json:"description"`
	Priority    *int   `json:"priority,omitempty"`
}

func (DecisionData) Kind() NodeKind { return KindDecision }

func (d DecisionData) clone() NodeData {
	if d.Priority != nil {
		p := *d.Priority
		d.Priority = &p
	}
	return d
}

// RuleData is a single analysis/operator/value criterion. The Group fields
// are set on the first rule of a chain and carry the rule group that chain
// was loaded from.
type RuleData struct {
	UID              string   `json:"uid,omitempty"`
	AnalysisUID      string   `json:"analysisUid"`
	Operator         Operator `json:"operator"`
	Value            string   `json:"value"`
	Priority         int      `json:"priority"`
	GroupUID         string   `json:"groupUid,omitempty"`
	GroupDescription string   `json:"groupDescription,omitempty"`
	GroupPriority    *int     `json:"groupPriority,omitempty"`
}

func (RuleData) Kind() NodeKind { return KindRule }

func (d RuleData) clone() NodeData {
	if d.GroupPriority != nil {
		p := *d.GroupPriority
		d.GroupPriority = &p
	}
	return d
}

// ActionData adds analyses (Count) or finalizes one (Value). Count follows
// the same rule as TriggerData.Level.
type ActionData struct {
	UID         string     `json:"uid,omitempty"`
	ActionType  ActionType `json:"actionType"`
	AnalysisUID string     `json:"analysisUid"`
	Count       float64    `json:"count,omitempty"`
	Value       string     `json:"value,omitempty"`
}

func (ActionData) Kind() NodeKind { return KindAction }

func (d ActionData) clone() NodeData { return d }

// Node is a vertex of the editable graph.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NewNode builds a node whose Type matches its data.
func NewNode(id string, pos Position, data NodeData) Node {
	return Node{ID: id, Type: data.Kind(), Position: pos, Data: data}
}

// UnmarshalJSON decodes data into the variant selected by type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Type     NodeKind        `json:"type"`
		Position Position        `json:"position"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := decodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("reflex: node %q: %w", raw.ID, err)
	}
	n.ID, n.Type, n.Position, n.Data = raw.ID, raw.Type, raw.Position, data
	return nil
}

func decodeNodeData(kind NodeKind, raw json.RawMessage) (NodeData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}
	var (
		data NodeData
		err  error
	)
	switch kind {
	case KindTrigger:
		var d TriggerData
		err = json.Unmarshal(raw, &d)
		data = d
	case KindDecision:
		var d DecisionData
		err = json.Unmarshal(raw, &d)
		data = d
	case KindRule:
		var d RuleData
		err = json.Unmarshal(raw, &d)
		data = d
	case KindAction:
		var d ActionData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	if n.Data != nil {
		n.Data = n.Data.clone()
	}
	return n
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Graph is the node/edge pair owned by the editor.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := Graph{}
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = append([]Edge(nil), g.Edges...)
	}
	return out
}

// NodeByID indexes the nodes of g by id. Later duplicates win.
func (g Graph) NodeByID() map[string]Node {
	m := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		m[n.ID] = n
	}
	return m
}

// Snapshot is a point-in-time copy of the graph kept by History.
type Snapshot struct {
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshot deep-copies g into a snapshot taken at ts.
func NewSnapshot(g Graph, ts time.Time) Snapshot {
	c := g.Clone()
	return Snapshot{Nodes: c.Nodes, Edges: c.Edges, Timestamp: ts}
}

// Graph returns a deep copy of the snapshot's graph.
func (s Snapshot) Graph() Graph {
	return Graph{Nodes: s.Nodes, Edges: s.Edges}.Clone()
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return NewSnapshot(Graph{Nodes: s.Nodes, Edges: s.Edges}, s.Timestamp)
}

// nodeAs extracts the variant of n, or its zero value when the data is
// missing or of a different kind.
func nodeAs[T NodeData](n Node) T {
	if d, ok := n.Data.(T); ok {
		return d
	}
	var zero T
	return zero
}
