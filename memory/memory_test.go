package memory

import (
	"context"
	"testing"

	"github.com/meikuraledutech/reflex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGraph() reflex.Graph {
	return reflex.Graph{
		Nodes: []reflex.Node{
			reflex.NewNode("t1", reflex.Position{}, reflex.TriggerData{
				Level: 1, Description: "Potassium verified", Analyses: []reflex.AnalysisRef{{UID: "k"}},
			}),
			reflex.NewNode("d1", reflex.Position{X: 100}, reflex.DecisionData{Description: "Potassium high"}),
			reflex.NewNode("r1", reflex.Position{X: 200}, reflex.RuleData{AnalysisUID: "k", Operator: reflex.OpGreater, Value: "6"}),
			reflex.NewNode("a1", reflex.Position{X: 200, Y: 100}, reflex.ActionData{ActionType: reflex.ActionAdd, AnalysisUID: "k", Count: 1}),
		},
		Edges: []reflex.Edge{
			{ID: "e1", Source: "t1", Target: "d1"},
			{ID: "e2", Source: "d1", Target: "r1"},
			{ID: "e3", Source: "d1", Target: "a1"},
		},
	}
}

func TestStoreRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateSchema(ctx))

	r, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "K high", Priority: 2})
	require.NoError(t, err)
	require.NotEmpty(t, r.UID)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Empty(t, r.Triggers)

	saved, err := s.SaveRuleGraph(ctx, r.UID, validGraph())
	require.NoError(t, err)
	require.Len(t, saved.Triggers, 1)
	dec := saved.Triggers[0].Decisions[0]
	require.Len(t, dec.RuleGroups, 1)
	assert.Equal(t, "6", dec.RuleGroups[0].Rules[0].Value)
	assert.NotEmpty(t, dec.RuleGroups[0].Rules[0].UID)
	require.Len(t, dec.AddAnalyses, 1)
	assert.False(t, saved.IsActive)

	got, err := s.FetchRuleByUID(ctx, r.UID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	// Saving the reloaded graph keeps entity uids.
	again, err := s.SaveRuleGraph(ctx, r.UID, reflex.ToGraph(got))
	require.NoError(t, err)
	assert.Equal(t, got.Triggers[0].UID, again.Triggers[0].UID)
	assert.Equal(t, dec.RuleGroups[0].Rules[0].UID, again.Triggers[0].Decisions[0].RuleGroups[0].Rules[0].UID)

	upd, err := s.UpdateRule(ctx, r.UID, reflex.RuleUpdate{Name: "K high", Description: "published", IsActive: true})
	require.NoError(t, err)
	assert.True(t, upd.IsActive)
	assert.Len(t, upd.Triggers, 1)

	require.NoError(t, s.DeleteRule(ctx, r.UID))
	got, err = s.FetchRuleByUID(ctx, r.UID)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, s.DeleteRule(ctx, r.UID))
}

func TestStoreSessionKeepsUIDsAcrossSaves(t *testing.T) {
	ctx := context.Background()
	s := New()
	r, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "K high"})
	require.NoError(t, err)

	sess := reflex.NewSession(r.UID, s, reflex.WithValidateOnChange(false))
	t.Cleanup(func() { sess.Close(context.Background()) })
	sess.Load(validGraph())

	require.Equal(t, reflex.SaveOK, sess.SaveNow(ctx))
	first, err := s.FetchRuleByUID(ctx, r.UID)
	require.NoError(t, err)
	require.Equal(t, reflex.SaveOK, sess.SaveNow(ctx))
	second, err := s.FetchRuleByUID(ctx, r.UID)
	require.NoError(t, err)

	assert.Equal(t, first.Triggers, second.Triggers)
	trig := sess.Graph().NodeByID()["t1"].Data.(reflex.TriggerData)
	assert.Equal(t, first.Triggers[0].UID, trig.UID)
}

func TestStoreSaveReusesUIDsOfAnotherRule(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "A"})
	require.NoError(t, err)
	b, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "B"})
	require.NoError(t, err)

	savedA, err := s.SaveRuleGraph(ctx, a.UID, validGraph())
	require.NoError(t, err)
	savedB, err := s.SaveRuleGraph(ctx, b.UID, reflex.ToGraph(savedA))
	require.NoError(t, err)
	assert.Equal(t, savedA.Triggers[0].UID, savedB.Triggers[0].UID)

	gotA, err := s.FetchRuleByUID(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, savedA.Triggers, gotA.Triggers)
}

func TestStoreSaveRejections(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.SaveRuleGraph(ctx, "missing", validGraph())
	oe, ok := reflex.AsOperationError(err)
	require.True(t, ok)
	assert.Contains(t, oe.Message, "missing")

	r, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "R"})
	require.NoError(t, err)
	_, err = s.SaveRuleGraph(ctx, r.UID, reflex.Graph{})
	oe, ok = reflex.AsOperationError(err)
	require.True(t, ok)
	assert.Equal(t, "graph has validation errors", oe.Message)

	_, err = s.UpdateRule(ctx, "missing", reflex.RuleUpdate{Name: "x"})
	_, ok = reflex.AsOperationError(err)
	assert.True(t, ok)
}

func TestStoreCopiesRules(t *testing.T) {
	ctx := context.Background()
	s := New()
	r, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "R"})
	require.NoError(t, err)
	_, err = s.SaveRuleGraph(ctx, r.UID, validGraph())
	require.NoError(t, err)

	got, _ := s.FetchRuleByUID(ctx, r.UID)
	got.Name = "changed"
	got.Triggers[0].Description = "changed"

	again, _ := s.FetchRuleByUID(ctx, r.UID)
	assert.Equal(t, "R", again.Name)
	assert.Equal(t, "Potassium verified", again.Triggers[0].Description)
}

func TestListRulesOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, r := range []reflex.ReflexRule{
		{Name: "b", Priority: 1},
		{Name: "a", Priority: 1},
		{Name: "z", Priority: 0},
	} {
		_, err := s.CreateRule(ctx, &r)
		require.NoError(t, err)
	}

	list, err := s.ListRules(ctx)
	require.NoError(t, err)
	var names []string
	for _, r := range list {
		names = append(names, r.Name)
		assert.Nil(t, r.Triggers)
	}
	assert.Equal(t, []string{"z", "a", "b"}, names)

	require.NoError(t, s.DropSchema(ctx))
	list, err = s.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreBacksSession(t *testing.T) {
	ctx := context.Background()
	s := New()
	r, err := s.CreateRule(ctx, &reflex.ReflexRule{Name: "R"})
	require.NoError(t, err)

	sess := reflex.NewSession(r.UID, s, reflex.WithValidateOnChange(false))
	sess.LoadRule(r)
	sess.Commit(validGraph())
	require.Equal(t, reflex.SaveOK, sess.SaveNow(ctx))

	_, err = sess.SetActive(ctx, "R", "live", true)
	require.NoError(t, err)

	got, err := s.FetchRuleByUID(ctx, r.UID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Len(t, got.Triggers, 1)
	assert.Equal(t, reflex.SaveOK, sess.Close(ctx))
}
