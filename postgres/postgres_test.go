package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/meikuraledutech/reflex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to DATABASE_URL, read from the environment or a
// .env file at the module root. Tests are skipped when it is unset.
func newTestStore(t *testing.T) *PGStore {
	t.Helper()
	_ = godotenv.Load("../.env")
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

func storeGraph() reflex.Graph {
	return reflex.Graph{
		Nodes: []reflex.Node{
			reflex.NewNode("t1", reflex.Position{X: 5, Y: 5}, reflex.TriggerData{
				Level: 1, Description: "Calcium verified", SampleTypeUID: "serum",
				Analyses: []reflex.AnalysisRef{{UID: "ca"}, {UID: "alb"}},
			}),
			reflex.NewNode("d1", reflex.Position{X: 100}, reflex.DecisionData{Description: "Calcium high"}),
			reflex.NewNode("r1", reflex.Position{X: 200}, reflex.RuleData{AnalysisUID: "ca", Operator: reflex.OpGreaterEq, Value: "2.6"}),
			reflex.NewNode("r2", reflex.Position{X: 300}, reflex.RuleData{AnalysisUID: "alb", Operator: reflex.OpLess, Value: "35"}),
			reflex.NewNode("a1", reflex.Position{Y: 100}, reflex.ActionData{ActionType: reflex.ActionAdd, AnalysisUID: "pth", Count: 1}),
			reflex.NewNode("a2", reflex.Position{Y: 200}, reflex.ActionData{ActionType: reflex.ActionFinalize, AnalysisUID: "ca", Value: "check"}),
		},
		Edges: []reflex.Edge{
			{ID: "e1", Source: "t1", Target: "d1"},
			{ID: "e2", Source: "d1", Target: "r1"},
			{ID: "e3", Source: "r1", Target: "r2"},
			{ID: "e4", Source: "d1", Target: "a1"},
			{ID: "e5", Source: "d1", Target: "a2"},
		},
	}
}

func TestPGStoreGraphLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "Calcium", Priority: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteRule(context.Background(), r.UID) })
	assert.Empty(t, r.Triggers)

	saved, err := s.SaveRuleGraph(ctx, r.UID, storeGraph())
	require.NoError(t, err)
	require.Len(t, saved.Triggers, 1)
	trig := saved.Triggers[0]
	assert.Equal(t, []reflex.AnalysisRef{{UID: "ca"}, {UID: "alb"}}, trig.Analyses)
	dec := trig.Decisions[0]
	require.Len(t, dec.RuleGroups, 1)
	require.Len(t, dec.RuleGroups[0].Rules, 2)
	assert.Equal(t, reflex.OpGreaterEq, dec.RuleGroups[0].Rules[0].Operator)
	assert.Equal(t, "alb", dec.RuleGroups[0].Rules[1].AnalysisUID)
	require.Len(t, dec.AddAnalyses, 1)
	require.Len(t, dec.FinalizeAnalyses, 1)

	// A second save of the reloaded graph replaces the tree and keeps uids.
	again, err := s.SaveRuleGraph(ctx, r.UID, reflex.ToGraph(saved))
	require.NoError(t, err)
	assert.Equal(t, trig.UID, again.Triggers[0].UID)
	assert.Equal(t, dec.RuleGroups[0].Rules[0].UID, again.Triggers[0].Decisions[0].RuleGroups[0].Rules[0].UID)
	assert.Len(t, again.Triggers, 1)

	upd, err := s.UpdateRule(ctx, r.UID, reflex.RuleUpdate{Name: "Calcium", IsActive: true})
	require.NoError(t, err)
	assert.True(t, upd.IsActive)
	assert.Len(t, upd.Triggers, 1)

	require.NoError(t, s.DeleteRule(ctx, r.UID))
	got, err := s.FetchRuleByUID(ctx, r.UID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPGStoreSaveReusesUIDsOfAnotherRule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "Calcium A"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteRule(context.Background(), a.UID) })
	b, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "Calcium B"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteRule(context.Background(), b.UID) })

	savedA, err := s.SaveRuleGraph(ctx, a.UID, storeGraph())
	require.NoError(t, err)

	// The graph of rule A, uids included, pasted into rule B.
	savedB, err := s.SaveRuleGraph(ctx, b.UID, reflex.ToGraph(savedA))
	require.NoError(t, err)
	assert.Equal(t, savedA.Triggers[0].UID, savedB.Triggers[0].UID)

	gotA, err := s.FetchRuleByUID(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, savedA.Triggers, gotA.Triggers)
}

func TestPGStoreRejections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveRuleGraph(ctx, "does-not-exist", storeGraph())
	_, ok := reflex.AsOperationError(err)
	assert.True(t, ok)

	_, err = s.SaveRuleGraph(ctx, "does-not-exist", reflex.Graph{})
	oe, ok := reflex.AsOperationError(err)
	require.True(t, ok)
	assert.Equal(t, "graph has validation errors", oe.Message)

	_, err = s.UpdateRule(ctx, "does-not-exist", reflex.RuleUpdate{Name: "x"})
	_, ok = reflex.AsOperationError(err)
	assert.True(t, ok)
}
