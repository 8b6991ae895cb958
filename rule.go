package reflex

import "time"

// ReflexRule is the persisted root of a reflex rule tree.
type ReflexRule struct {
	UID         string          `json:"uid"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsActive    bool            `json:"is_active"`
	Priority    int             `json:"priority"`
	Triggers    []ReflexTrigger `json:"triggers"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReflexTrigger activates its decisions for a sample type and set of analyses.
type ReflexTrigger struct {
	UID           string           `json:"uid"`
	Level         int              `json:"level"`
	Description   string           `json:"description"`
	SampleTypeUID string           `json:"sample_type_uid,omitempty"`
	Analyses      []AnalysisRef    `json:"analyses"`
	PosX          float64          `json:"pos_x"`
	PosY          float64          `json:"pos_y"`
	Decisions     []ReflexDecision `json:"decisions"`
}

// ReflexDecision holds OR'd rule groups and the actions they lead to.
type ReflexDecision struct {
	UID              string                   `json:"uid"`
	Description      string                   `json:"description"`
	Priority         int                      `json:"priority"`
	PosX             float64                  `json:"pos_x"`
	PosY             float64                  `json:"pos_y"`
	RuleGroups       []ReflexRuleGroup        `json:"rule_groups"`
	AddAnalyses      []AddAnalysisAction      `json:"add_analyses"`
	FinalizeAnalyses []FinalizeAnalysisAction `json:"finalize_analyses"`
}

// ReflexRuleGroup is an OR branch; its rules are AND'd in order.
type ReflexRuleGroup struct {
	UID         string                `json:"uid"`
	Description string                `json:"description"`
	Priority    int                   `json:"priority"`
	Rules       []ReflexRuleCriterion `json:"rules"`
}

// ReflexRuleCriterion compares one analysis result against a value.
type ReflexRuleCriterion struct {
	UID         string   `json:"uid"`
	AnalysisUID string   `json:"analysis_uid"`
	Operator    Operator `json:"operator"`
	Value       string   `json:"value"`
	Priority    int      `json:"priority"`
	PosX        float64  `json:"pos_x"`
	PosY        float64  `json:"pos_y"`
}

// AddAnalysisAction adds Count repeats of an analysis.
type AddAnalysisAction struct {
	UID         string  `json:"uid"`
	AnalysisUID string  `json:"analysis_uid"`
	Count       int     `json:"count"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
}

// FinalizeAnalysisAction finalizes an analysis with a fixed value.
type FinalizeAnalysisAction struct {
	UID         string  `json:"uid"`
	AnalysisUID string  `json:"analysis_uid"`
	Value       string  `json:"value"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
}

// RuleUpdate carries the fields of a rule that the publish toggle may change.
type RuleUpdate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Clone returns a deep copy of r.
func (r *ReflexRule) Clone() *ReflexRule {
	if r == nil {
		return nil
	}
	out := *r
	out.Triggers = cloneTriggers(r.Triggers)
	return &out
}

func cloneTriggers(in []ReflexTrigger) []ReflexTrigger {
	if in == nil {
		return nil
	}
	out := make([]ReflexTrigger, len(in))
	for i, t := range in {
		t.Analyses = cloneSlice(t.Analyses)
		decisions := cloneSlice(t.Decisions)
		for j := range decisions {
			d := &decisions[j]
			d.RuleGroups = cloneSlice(d.RuleGroups)
			for k := range d.RuleGroups {
				d.RuleGroups[k].Rules = cloneSlice(d.RuleGroups[k].Rules)
			}
			d.AddAnalyses = cloneSlice(d.AddAnalyses)
			d.FinalizeAnalyses = cloneSlice(d.FinalizeAnalyses)
		}
		t.Decisions = decisions
		out[i] = t
	}
	return out
}

// cloneSlice copies s, keeping nil and empty apart.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
