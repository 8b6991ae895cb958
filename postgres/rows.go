package postgres

import (
	"sort"

	"github.com/meikuraledutech/reflex"
)

// Row types mirror the table columns in SELECT order so they can be
// collected with pgx.RowToStructByPos.

type triggerRow struct {
	UID           string
	RuleUID       string
	Level         int
	Description   string
	SampleTypeUID string
	PosX          float64
	PosY          float64
	Ordinal       int
}

type analysisRow struct {
	TriggerUID  string
	RuleUID     string
	AnalysisUID string
	Ordinal     int
}

type decisionRow struct {
	UID         string
	TriggerUID  string
	RuleUID     string
	Description string
	Priority    int
	PosX        float64
	PosY        float64
	Ordinal     int
}

type groupRow struct {
	UID         string
	DecisionUID string
	RuleUID     string
	Description string
	Priority    int
	Ordinal     int
}

type criterionRow struct {
	UID         string
	GroupUID    string
	RuleUID     string
	AnalysisUID string
	Operator    string
	Value       string
	Priority    int
	PosX        float64
	PosY        float64
	Ordinal     int
}

type addRow struct {
	UID         string
	DecisionUID string
	RuleUID     string
	AnalysisUID string
	Count       int
	PosX        float64
	PosY        float64
	Ordinal     int
}

type finalizeRow struct {
	UID         string
	DecisionUID string
	RuleUID     string
	AnalysisUID string
	Value       string
	PosX        float64
	PosY        float64
	Ordinal     int
}

// treeRows is a trigger tree flattened into table rows.
type treeRows struct {
	triggers  []triggerRow
	analyses  []analysisRow
	decisions []decisionRow
	groups    []groupRow
	criteria  []criterionRow
	adds      []addRow
	finalizes []finalizeRow
}

// flatten turns the triggers of ruleUID into rows, numbering siblings.
func flatten(ruleUID string, triggers []reflex.ReflexTrigger) treeRows {
	var rows treeRows
	for ti, t := range triggers {
		rows.triggers = append(rows.triggers, triggerRow{
			UID: t.UID, RuleUID: ruleUID, Level: t.Level, Description: t.Description,
			SampleTypeUID: t.SampleTypeUID, PosX: t.PosX, PosY: t.PosY, Ordinal: ti,
		})
		for ai, a := range t.Analyses {
			rows.analyses = append(rows.analyses, analysisRow{
				TriggerUID: t.UID, RuleUID: ruleUID, AnalysisUID: a.UID, Ordinal: ai,
			})
		}
		for di, d := range t.Decisions {
			rows.decisions = append(rows.decisions, decisionRow{
				UID: d.UID, TriggerUID: t.UID, RuleUID: ruleUID, Description: d.Description,
				Priority: d.Priority, PosX: d.PosX, PosY: d.PosY, Ordinal: di,
			})
			for gi, g := range d.RuleGroups {
				rows.groups = append(rows.groups, groupRow{
					UID: g.UID, DecisionUID: d.UID, RuleUID: ruleUID,
					Description: g.Description, Priority: g.Priority, Ordinal: gi,
				})
				for ci, c := range g.Rules {
					rows.criteria = append(rows.criteria, criterionRow{
						UID: c.UID, GroupUID: g.UID, RuleUID: ruleUID, AnalysisUID: c.AnalysisUID,
						Operator: string(c.Operator), Value: c.Value, Priority: c.Priority,
						PosX: c.PosX, PosY: c.PosY, Ordinal: ci,
					})
				}
			}
			for i, a := range d.AddAnalyses {
				rows.adds = append(rows.adds, addRow{
					UID: a.UID, DecisionUID: d.UID, RuleUID: ruleUID, AnalysisUID: a.AnalysisUID,
					Count: a.Count, PosX: a.PosX, PosY: a.PosY, Ordinal: i,
				})
			}
			for i, f := range d.FinalizeAnalyses {
				rows.finalizes = append(rows.finalizes, finalizeRow{
					UID: f.UID, DecisionUID: d.UID, RuleUID: ruleUID, AnalysisUID: f.AnalysisUID,
					Value: f.Value, PosX: f.PosX, PosY: f.PosY, Ordinal: i,
				})
			}
		}
	}
	return rows
}

// assemble rebuilds the trigger tree from rows. Siblings are ordered by
// ordinal; rows whose parent is missing are dropped.
func assemble(rows treeRows) []reflex.ReflexTrigger {
	sort.SliceStable(rows.triggers, func(i, j int) bool { return rows.triggers[i].Ordinal < rows.triggers[j].Ordinal })
	sort.SliceStable(rows.analyses, func(i, j int) bool { return rows.analyses[i].Ordinal < rows.analyses[j].Ordinal })
	sort.SliceStable(rows.decisions, func(i, j int) bool { return rows.decisions[i].Ordinal < rows.decisions[j].Ordinal })
	sort.SliceStable(rows.groups, func(i, j int) bool { return rows.groups[i].Ordinal < rows.groups[j].Ordinal })
	sort.SliceStable(rows.criteria, func(i, j int) bool { return rows.criteria[i].Ordinal < rows.criteria[j].Ordinal })
	sort.SliceStable(rows.adds, func(i, j int) bool { return rows.adds[i].Ordinal < rows.adds[j].Ordinal })
	sort.SliceStable(rows.finalizes, func(i, j int) bool { return rows.finalizes[i].Ordinal < rows.finalizes[j].Ordinal })

	rules := make(map[string][]reflex.ReflexRuleCriterion)
	for _, c := range rows.criteria {
		rules[c.GroupUID] = append(rules[c.GroupUID], reflex.ReflexRuleCriterion{
			UID: c.UID, AnalysisUID: c.AnalysisUID, Operator: reflex.Operator(c.Operator),
			Value: c.Value, Priority: c.Priority, PosX: c.PosX, PosY: c.PosY,
		})
	}
	groups := make(map[string][]reflex.ReflexRuleGroup)
	for _, g := range rows.groups {
		groups[g.DecisionUID] = append(groups[g.DecisionUID], reflex.ReflexRuleGroup{
			UID: g.UID, Description: g.Description, Priority: g.Priority,
			Rules: orEmpty(rules[g.UID]),
		})
	}
	adds := make(map[string][]reflex.AddAnalysisAction)
	for _, a := range rows.adds {
		adds[a.DecisionUID] = append(adds[a.DecisionUID], reflex.AddAnalysisAction{
			UID: a.UID, AnalysisUID: a.AnalysisUID, Count: a.Count, PosX: a.PosX, PosY: a.PosY,
		})
	}
	finalizes := make(map[string][]reflex.FinalizeAnalysisAction)
	for _, f := range rows.finalizes {
		finalizes[f.DecisionUID] = append(finalizes[f.DecisionUID], reflex.FinalizeAnalysisAction{
			UID: f.UID, AnalysisUID: f.AnalysisUID, Value: f.Value, PosX: f.PosX, PosY: f.PosY,
		})
	}
	decisions := make(map[string][]reflex.ReflexDecision)
	for _, d := range rows.decisions {
		decisions[d.TriggerUID] = append(decisions[d.TriggerUID], reflex.ReflexDecision{
			UID: d.UID, Description: d.Description, Priority: d.Priority, PosX: d.PosX, PosY: d.PosY,
			RuleGroups:       orEmpty(groups[d.UID]),
			AddAnalyses:      orEmpty(adds[d.UID]),
			FinalizeAnalyses: orEmpty(finalizes[d.UID]),
		})
	}
	analyses := make(map[string][]reflex.AnalysisRef)
	for _, a := range rows.analyses {
		analyses[a.TriggerUID] = append(analyses[a.TriggerUID], reflex.AnalysisRef{UID: a.AnalysisUID})
	}

	out := make([]reflex.ReflexTrigger, 0, len(rows.triggers))
	for _, t := range rows.triggers {
		out = append(out, reflex.ReflexTrigger{
			UID: t.UID, Level: t.Level, Description: t.Description, SampleTypeUID: t.SampleTypeUID,
			PosX: t.PosX, PosY: t.PosY,
			Analyses:  orEmpty(analyses[t.UID]),
			Decisions: orEmpty(decisions[t.UID]),
		})
	}
	return out
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
