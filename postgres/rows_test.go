package postgres

import (
	"testing"

	"github.com/meikuraledutech/reflex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTriggers() []reflex.ReflexTrigger {
	return []reflex.ReflexTrigger{
		{
			UID: "t1", Level: 1, Description: "Glucose verified", SampleTypeUID: "serum", PosX: 10, PosY: 20,
			Analyses: []reflex.AnalysisRef{{UID: "glu"}, {UID: "glu"}},
			Decisions: []reflex.ReflexDecision{{
				UID: "d1", Description: "High", Priority: 1,
				RuleGroups: []reflex.ReflexRuleGroup{
					{UID: "g1", Priority: 0, Rules: []reflex.ReflexRuleCriterion{
						{UID: "c1", AnalysisUID: "glu", Operator: reflex.OpGreater, Value: "11"},
						{UID: "c2", AnalysisUID: "glu", Operator: reflex.OpLess, Value: "30", Priority: 1},
					}},
					{UID: "g2", Priority: 1, Rules: []reflex.ReflexRuleCriterion{
						{UID: "c3", AnalysisUID: "glu", Operator: reflex.OpContains, Value: "HI"},
					}},
				},
				AddAnalyses:      []reflex.AddAnalysisAction{{UID: "a1", AnalysisUID: "hba1c", Count: 2}},
				FinalizeAnalyses: []reflex.FinalizeAnalysisAction{},
			}},
		},
		{
			UID: "t2", Level: 2, Description: "Second level",
			Analyses:  []reflex.AnalysisRef{{UID: "k"}},
			Decisions: []reflex.ReflexDecision{},
		},
	}
}

func TestFlattenAssemble(t *testing.T) {
	in := sampleTriggers()
	rows := flatten("rule-1", in)

	assert.Len(t, rows.triggers, 2)
	assert.Len(t, rows.analyses, 3)
	assert.Len(t, rows.groups, 2)
	assert.Len(t, rows.criteria, 3)
	for _, c := range rows.criteria {
		assert.Equal(t, "rule-1", c.RuleUID)
	}
	assert.Equal(t, 1, rows.criteria[1].Ordinal)

	assert.Equal(t, in, assemble(rows))
}

func TestAssembleOrdersByOrdinal(t *testing.T) {
	rows := flatten("rule-1", sampleTriggers())
	// Query results arrive in arbitrary order.
	rows.triggers[0], rows.triggers[1] = rows.triggers[1], rows.triggers[0]
	rows.criteria[0], rows.criteria[1] = rows.criteria[1], rows.criteria[0]

	out := assemble(rows)
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].UID)
	rules := out[0].Decisions[0].RuleGroups[0].Rules
	assert.Equal(t, "c1", rules[0].UID)
	assert.Equal(t, "c2", rules[1].UID)
}

func TestAssembleDropsOrphanRows(t *testing.T) {
	rows := flatten("rule-1", sampleTriggers())
	rows.criteria = append(rows.criteria, criterionRow{UID: "lost", GroupUID: "nope"})
	rows.decisions = append(rows.decisions, decisionRow{UID: "lost", TriggerUID: "nope"})

	assert.Equal(t, sampleTriggers(), assemble(rows))
}

func TestAssembleEmpty(t *testing.T) {
	out := assemble(treeRows{})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
