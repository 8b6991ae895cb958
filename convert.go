package reflex

import "github.com/google/uuid"

// TriggerPayload is the save form of a trigger and everything below it.
type TriggerPayload struct {
	UID           string            `json:"uid,omitempty"`
	ReflexRuleUID string            `json:"reflex_rule_uid"`
	Level         int               `json:"level"`
	Description   string            `json:"description"`
	SampleTypeUID string            `json:"sample_type_uid,omitempty"`
	Analyses      []string          `json:"analyses"`
	PosX          float64           `json:"pos_x"`
	PosY          float64           `json:"pos_y"`
	Decisions     []DecisionPayload `json:"decisions"`
}

// DecisionPayload is the save form of a decision.
type DecisionPayload struct {
	UID              string                    `json:"uid,omitempty"`
	Description      string                    `json:"description"`
	Priority         int                       `json:"priority"`
	PosX             float64                   `json:"pos_x"`
	PosY             float64                   `json:"pos_y"`
	RuleGroups       []RuleGroupPayload        `json:"rule_groups"`
	AddAnalyses      []AddAnalysisPayload      `json:"add_analyses"`
	FinalizeAnalyses []FinalizeAnalysisPayload `json:"finalize_analyses"`
}

// RuleGroupPayload is one OR branch; Rules is its AND chain.
type RuleGroupPayload struct {
	UID         string        `json:"uid,omitempty"`
	Description string        `json:"description"`
	Priority    int           `json:"priority"`
	Rules       []RulePayload `json:"rules"`
}

// RulePayload is the save form of a rule criterion.
type RulePayload struct {
	UID         string   `json:"uid,omitempty"`
	AnalysisUID string   `json:"analysis_uid"`
	Operator    Operator `json:"operator"`
	Value       string   `json:"value"`
	Priority    int      `json:"priority"`
	PosX        float64  `json:"pos_x"`
	PosY        float64  `json:"pos_y"`
}

// AddAnalysisPayload is the save form of an add action.
type AddAnalysisPayload struct {
	UID         string  `json:"uid,omitempty"`
	AnalysisUID string  `json:"analysis_uid"`
	Count       int     `json:"count"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
}

// FinalizeAnalysisPayload is the save form of a finalize action.
type FinalizeAnalysisPayload struct {
	UID         string  `json:"uid,omitempty"`
	AnalysisUID string  `json:"analysis_uid"`
	Value       string  `json:"value"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
}

// ToPayload flattens g into the nested save form of rule ruleUID.
//
// Each rule node reached directly from a decision roots one or more AND
// chains; every maximal chain becomes a rule group. The first chain from a
// root takes the group fields held by that root rule. Actions are taken
// from direct decision→action edges only. Entity uids held in node data are
// carried through untouched.
func ToPayload(ruleUID string, g Graph) []TriggerPayload {
	p, _ := buildPayload(ruleUID, g)
	return p
}

// triggerRef and its children record the node each payload entity was built
// from, nested the same way as the payload.
type triggerRef struct {
	node      string
	decisions []decisionRef
}

type decisionRef struct {
	node      string
	groups    []groupRef
	adds      []string
	finalizes []string
}

type groupRef struct {
	root  string // set when the group fields came from this rule node
	rules []string
}

func buildPayload(ruleUID string, g Graph) ([]TriggerPayload, []triggerRef) {
	byID := g.NodeByID()
	ofKind := func(src, dst NodeKind) func(Node, Node) bool {
		return func(s, d Node) bool { return s.Type == src && d.Type == dst }
	}
	ruleAdj := adjacency(g, ofKind(KindRule, KindRule))
	decisionRules := adjacency(g, ofKind(KindDecision, KindRule))
	decisionActions := adjacency(g, ofKind(KindDecision, KindAction))
	triggerDecisions := adjacency(g, ofKind(KindTrigger, KindDecision))

	buildDecision := func(n Node) (DecisionPayload, decisionRef) {
		d := nodeAs[DecisionData](n)
		out := DecisionPayload{
			UID:              d.UID,
			Description:      d.Description,
			PosX:             n.Position.X,
			PosY:             n.Position.Y,
			RuleGroups:       []RuleGroupPayload{},
			AddAnalyses:      []AddAnalysisPayload{},
			FinalizeAnalyses: []FinalizeAnalysisPayload{},
		}
		ref := decisionRef{node: n.ID}
		if d.Priority != nil {
			out.Priority = *d.Priority
		}

		for _, root := range decisionRules[n.ID] {
			for ci, chain := range chainsFrom(root, ruleAdj) {
				group := RuleGroupPayload{Priority: len(out.RuleGroups), Rules: make([]RulePayload, 0, len(chain))}
				gref := groupRef{rules: chain}
				if ci == 0 {
					head := nodeAs[RuleData](byID[root])
					group.UID = head.GroupUID
					group.Description = head.GroupDescription
					if head.GroupPriority != nil {
						group.Priority = *head.GroupPriority
					}
					gref.root = root
				}
				for _, id := range chain {
					rn := byID[id]
					r := nodeAs[RuleData](rn)
					group.Rules = append(group.Rules, RulePayload{
						UID:         r.UID,
						AnalysisUID: r.AnalysisUID,
						Operator:    r.Operator,
						Value:       r.Value,
						Priority:    r.Priority,
						PosX:        rn.Position.X,
						PosY:        rn.Position.Y,
					})
				}
				out.RuleGroups = append(out.RuleGroups, group)
				ref.groups = append(ref.groups, gref)
			}
		}

		for _, id := range decisionActions[n.ID] {
			an := byID[id]
			a := nodeAs[ActionData](an)
			switch a.ActionType {
			case ActionAdd:
				out.AddAnalyses = append(out.AddAnalyses, AddAnalysisPayload{
					UID: a.UID, AnalysisUID: a.AnalysisUID, Count: int(a.Count),
					PosX: an.Position.X, PosY: an.Position.Y,
				})
				ref.adds = append(ref.adds, id)
			case ActionFinalize:
				out.FinalizeAnalyses = append(out.FinalizeAnalyses, FinalizeAnalysisPayload{
					UID: a.UID, AnalysisUID: a.AnalysisUID, Value: a.Value,
					PosX: an.Position.X, PosY: an.Position.Y,
				})
				ref.finalizes = append(ref.finalizes, id)
			}
		}
		return out, ref
	}

	triggers := []TriggerPayload{}
	var refs []triggerRef
	for _, n := range g.Nodes {
		if n.Type != KindTrigger {
			continue
		}
		t := nodeAs[TriggerData](n)
		p := TriggerPayload{
			UID:           t.UID,
			ReflexRuleUID: ruleUID,
			Level:         int(t.Level),
			Description:   t.Description,
			SampleTypeUID: t.SampleTypeUID,
			Analyses:      make([]string, 0, len(t.Analyses)),
			PosX:          n.Position.X,
			PosY:          n.Position.Y,
			Decisions:     []DecisionPayload{},
		}
		ref := triggerRef{node: n.ID}
		for _, a := range t.Analyses {
			p.Analyses = append(p.Analyses, a.UID)
		}
		for _, id := range triggerDecisions[n.ID] {
			dp, dref := buildDecision(byID[id])
			p.Decisions = append(p.Decisions, dp)
			ref.decisions = append(ref.decisions, dref)
		}
		triggers = append(triggers, p)
		refs = append(refs, ref)
	}
	return triggers, refs
}

// entityUIDs are the uids a store assigned to the entity built from one node.
type entityUIDs struct {
	kind     NodeKind
	uid      string
	groupUID string
}

// savedUIDs pairs the nodes of g with the entities of triggers, which must
// be the tree stored from g, and returns the uids by node id. A node used by
// several entities keeps the uid of the first.
func savedUIDs(g Graph, triggers []ReflexTrigger) map[string]entityUIDs {
	_, refs := buildPayload("", g)
	out := make(map[string]entityUIDs)
	set := func(id string, kind NodeKind, uid string) {
		if _, ok := out[id]; !ok {
			out[id] = entityUIDs{kind: kind, uid: uid}
		}
	}
	for ti, tr := range refs {
		if ti >= len(triggers) {
			break
		}
		t := triggers[ti]
		set(tr.node, KindTrigger, t.UID)
		for di, dr := range tr.decisions {
			if di >= len(t.Decisions) {
				break
			}
			d := t.Decisions[di]
			set(dr.node, KindDecision, d.UID)
			for gi, gr := range dr.groups {
				if gi >= len(d.RuleGroups) {
					break
				}
				grp := d.RuleGroups[gi]
				for ri, id := range gr.rules {
					if ri < len(grp.Rules) {
						set(id, KindRule, grp.Rules[ri].UID)
					}
				}
				if e, ok := out[gr.root]; ok && gr.root != "" && e.groupUID == "" {
					e.groupUID = grp.UID
					out[gr.root] = e
				}
			}
			for i, id := range dr.adds {
				if i < len(d.AddAnalyses) {
					set(id, KindAction, d.AddAnalyses[i].UID)
				}
			}
			for i, id := range dr.finalizes {
				if i < len(d.FinalizeAnalyses) {
					set(id, KindAction, d.FinalizeAnalyses[i].UID)
				}
			}
		}
	}
	return out
}

// apply returns n with the stored uids of e written into its data.
func (e entityUIDs) apply(n Node) Node {
	if n.Type != e.kind {
		return n
	}
	switch d := n.Data.(type) {
	case TriggerData:
		d.UID = e.uid
		n.Data = d
	case DecisionData:
		d.UID = e.uid
		n.Data = d
	case RuleData:
		d.UID = e.uid
		if e.groupUID != "" {
			d.GroupUID = e.groupUID
		}
		n.Data = d
	case ActionData:
		d.UID = e.uid
		n.Data = d
	}
	return n
}

// ToGraph rebuilds the editable graph of rule. Node ids are the entity uids,
// or fresh uuids for entities that have none. Each rule group becomes its
// own chain of rule nodes hanging off the decision, with the group fields on
// the first rule, and actions hang directly off their decision.
func ToGraph(rule *ReflexRule) Graph {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	if rule == nil {
		return g
	}
	used := make(map[string]bool)
	nodeID := func(uid string) string {
		if uid == "" || used[uid] {
			uid = uuid.NewString()
		}
		used[uid] = true
		return uid
	}
	connect := func(src, dst string) {
		g.Edges = append(g.Edges, Edge{ID: "e-" + src + "-" + dst, Source: src, Target: dst})
	}

	for _, t := range rule.Triggers {
		tid := nodeID(t.UID)
		g.Nodes = append(g.Nodes, NewNode(tid, Position{X: t.PosX, Y: t.PosY}, TriggerData{
			UID:           t.UID,
			Level:         float64(t.Level),
			Description:   t.Description,
			SampleTypeUID: t.SampleTypeUID,
			Analyses:      append([]AnalysisRef{}, t.Analyses...),
		}))

		for _, d := range t.Decisions {
			did := nodeID(d.UID)
			prio := d.Priority
			g.Nodes = append(g.Nodes, NewNode(did, Position{X: d.PosX, Y: d.PosY}, DecisionData{
				UID:         d.UID,
				Description: d.Description,
				Priority:    &prio,
			}))
			connect(tid, did)

			for _, grp := range d.RuleGroups {
				prev := did
				for ri, r := range grp.Rules {
					rid := nodeID(r.UID)
					data := RuleData{
						UID:         r.UID,
						AnalysisUID: r.AnalysisUID,
						Operator:    r.Operator,
						Value:       r.Value,
						Priority:    r.Priority,
					}
					if ri == 0 {
						gp := grp.Priority
						data.GroupUID, data.GroupDescription, data.GroupPriority = grp.UID, grp.Description, &gp
					}
					g.Nodes = append(g.Nodes, NewNode(rid, Position{X: r.PosX, Y: r.PosY}, data))
					connect(prev, rid)
					prev = rid
				}
			}
			for _, a := range d.AddAnalyses {
				aid := nodeID(a.UID)
				g.Nodes = append(g.Nodes, NewNode(aid, Position{X: a.PosX, Y: a.PosY}, ActionData{
					UID:         a.UID,
					ActionType:  ActionAdd,
					AnalysisUID: a.AnalysisUID,
					Count:       float64(a.Count),
				}))
				connect(did, aid)
			}
			for _, a := range d.FinalizeAnalyses {
				aid := nodeID(a.UID)
				g.Nodes = append(g.Nodes, NewNode(aid, Position{X: a.PosX, Y: a.PosY}, ActionData{
					UID:         a.UID,
					ActionType:  ActionFinalize,
					AnalysisUID: a.AnalysisUID,
					Value:       a.Value,
				}))
				connect(did, aid)
			}
		}
	}
	return g
}

// BuildTriggers materialises payloads into business entities. A uid already
// present in the payload is kept; a missing or repeated uid is replaced by
// newUID. A nil newUID uses uuids.
func BuildTriggers(payload []TriggerPayload, newUID func() string) []ReflexTrigger {
	if newUID == nil {
		newUID = uuid.NewString
	}
	used := make(map[string]bool)
	uid := func(existing string) string {
		if existing == "" || used[existing] {
			existing = newUID()
		}
		used[existing] = true
		return existing
	}

	out := make([]ReflexTrigger, 0, len(payload))
	for _, tp := range payload {
		t := ReflexTrigger{
			UID:           uid(tp.UID),
			Level:         tp.Level,
			Description:   tp.Description,
			SampleTypeUID: tp.SampleTypeUID,
			Analyses:      make([]AnalysisRef, 0, len(tp.Analyses)),
			PosX:          tp.PosX,
			PosY:          tp.PosY,
			Decisions:     make([]ReflexDecision, 0, len(tp.Decisions)),
		}
		for _, a := range tp.Analyses {
			t.Analyses = append(t.Analyses, AnalysisRef{UID: a})
		}
		for _, dp := range tp.Decisions {
			d := ReflexDecision{
				UID:              uid(dp.UID),
				Description:      dp.Description,
				Priority:         dp.Priority,
				PosX:             dp.PosX,
				PosY:             dp.PosY,
				RuleGroups:       make([]ReflexRuleGroup, 0, len(dp.RuleGroups)),
				AddAnalyses:      make([]AddAnalysisAction, 0, len(dp.AddAnalyses)),
				FinalizeAnalyses: make([]FinalizeAnalysisAction, 0, len(dp.FinalizeAnalyses)),
			}
			for _, gp := range dp.RuleGroups {
				grp := ReflexRuleGroup{
					UID:         uid(gp.UID),
					Description: gp.Description,
					Priority:    gp.Priority,
					Rules:       make([]ReflexRuleCriterion, 0, len(gp.Rules)),
				}
				for _, rp := range gp.Rules {
					grp.Rules = append(grp.Rules, ReflexRuleCriterion{
						UID:         uid(rp.UID),
						AnalysisUID: rp.AnalysisUID,
						Operator:    rp.Operator,
						Value:       rp.Value,
						Priority:    rp.Priority,
						PosX:        rp.PosX,
						PosY:        rp.PosY,
					})
				}
				d.RuleGroups = append(d.RuleGroups, grp)
			}
			for _, ap := range dp.AddAnalyses {
				d.AddAnalyses = append(d.AddAnalyses, AddAnalysisAction{
					UID: uid(ap.UID), AnalysisUID: ap.AnalysisUID, Count: ap.Count, PosX: ap.PosX, PosY: ap.PosY,
				})
			}
			for _, fp := range dp.FinalizeAnalyses {
				d.FinalizeAnalyses = append(d.FinalizeAnalyses, FinalizeAnalysisAction{
					UID: uid(fp.UID), AnalysisUID: fp.AnalysisUID, Value: fp.Value, PosX: fp.PosX, PosY: fp.PosY,
				})
			}
			t.Decisions = append(t.Decisions, d)
		}
		out = append(out, t)
	}
	return out
}
