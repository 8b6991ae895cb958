package reflex

func intPtr(v int) *int { return &v }

// sampleGraph is a valid rule: one trigger, one decision with an AND chain
// of two rules, a second OR root, and one action of each type.
func sampleGraph() Graph {
	return Graph{
		Nodes: []Node{
			NewNode("t1", Position{X: 0, Y: 0}, TriggerData{
				UID: "trg-1", Level: 1, Description: "Glucose result verified", SampleTypeUID: "serum",
				Analyses: []AnalysisRef{{UID: "glu"}},
			}),
			NewNode("d1", Position{X: 100, Y: 0}, DecisionData{UID: "dec-1", Description: "Glucose high", Priority: intPtr(0)}),
			NewNode("r1", Position{X: 200, Y: 0}, RuleData{UID: "crit-1", AnalysisUID: "glu", Operator: OpGreater, Value: "11.1"}),
			NewNode("r2", Position{X: 300, Y: 0}, RuleData{UID: "crit-2", AnalysisUID: "glu", Operator: OpLess, Value: "30", Priority: 1}),
			NewNode("r3", Position{X: 200, Y: 100}, RuleData{UID: "crit-3", AnalysisUID: "glu", Operator: OpEqual, Value: "HI"}),
			NewNode("a1", Position{X: 200, Y: 200}, ActionData{UID: "add-1", ActionType: ActionAdd, AnalysisUID: "hba1c", Count: 2}),
			NewNode("a2", Position{X: 300, Y: 200}, ActionData{UID: "fin-1", ActionType: ActionFinalize, AnalysisUID: "glu", Value: "repeat"}),
		},
		Edges: []Edge{
			{ID: "e1", Source: "t1", Target: "d1"},
			{ID: "e2", Source: "d1", Target: "r1"},
			{ID: "e3", Source: "r1", Target: "r2"},
			{ID: "e4", Source: "d1", Target: "r3"},
			{ID: "e5", Source: "d1", Target: "a1"},
			{ID: "e6", Source: "d1", Target: "a2"},
		},
	}
}

func codes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Code)
	}
	return out
}

func countCode(issues []Issue, code string) int {
	n := 0
	for _, is := range issues {
		if is.Code == code {
			n++
		}
	}
	return n
}
