package reflex

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Severity ranks how serious a validation issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// IssueType separates blocking errors from advisory warnings.
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
)

// Issue codes.
const (
	CodeTriggerMissingDescription  = "TRIGGER_MISSING_DESCRIPTION"
	CodeTriggerNoAnalyses          = "TRIGGER_NO_ANALYSES"
	CodeTriggerInvalidLevel        = "TRIGGER_INVALID_LEVEL"
	CodeTriggerShortDescription    = "TRIGGER_SHORT_DESCRIPTION"
	CodeDecisionMissingDescription = "DECISION_MISSING_DESCRIPTION"
	CodeDecisionNoOutputs          = "DECISION_NO_OUTPUTS"
	CodeDecisionNegativePriority   = "DECISION_NEGATIVE_PRIORITY"
	CodeRuleMissingAnalysis        = "RULE_MISSING_ANALYSIS"
	CodeRuleMissingOperator        = "RULE_MISSING_OPERATOR"
	CodeRuleInvalidOperator        = "RULE_INVALID_OPERATOR"
	CodeRuleMissingValue           = "RULE_MISSING_VALUE"
	CodeRuleNumericMismatch        = "RULE_NUMERIC_MISMATCH"
	CodeActionMissingAnalysis      = "ACTION_MISSING_ANALYSIS"
	CodeActionMissingType          = "ACTION_MISSING_TYPE"
	CodeActionInvalidType          = "ACTION_INVALID_TYPE"
	CodeActionInvalidCount         = "ACTION_INVALID_COUNT"
	CodeActionMissingValue         = "ACTION_MISSING_VALUE"
	CodeNodeUnknownType            = "NODE_UNKNOWN_TYPE"
	CodeNodeOrphaned               = "NODE_ORPHANED"
	CodeEdgeMissingSource          = "EDGE_MISSING_SOURCE"
	CodeEdgeMissingTarget          = "EDGE_MISSING_TARGET"
	CodeEdgeInvalidConnection      = "EDGE_INVALID_CONNECTION"
	CodeGraphCircularDependency    = "GRAPH_CIRCULAR_DEPENDENCY"
	CodeGraphNoTriggers            = "GRAPH_NO_TRIGGERS"
)

// minTriggerDescription is the length under which a trigger description draws a warning.
const minTriggerDescription = 10

// Issue is a single validation finding, tagged to a node or an edge.
type Issue struct {
	NodeID   string    `json:"nodeId,omitempty"`
	EdgeID   string    `json:"edgeId,omitempty"`
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Field    string    `json:"field,omitempty"`
	Code     string    `json:"code"`
}

// Result holds the issues found in a graph, in discovery order.
type Result struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// IsValid reports whether no blocking error was found.
func (r Result) IsValid() bool { return len(r.Errors) == 0 }

// HasCode reports whether any error or warning carries code.
func (r Result) HasCode(code string) bool {
	for _, is := range r.Errors {
		if is.Code == code {
			return true
		}
	}
	for _, is := range r.Warnings {
		if is.Code == code {
			return true
		}
	}
	return false
}

func (r *Result) add(is Issue) {
	if is.Type == IssueWarning {
		r.Warnings = append(r.Warnings, is)
		return
	}
	r.Errors = append(r.Errors, is)
}

// allowedTargets is the connection legality table. Actions are terminal.
var allowedTargets = map[NodeKind]map[NodeKind]bool{
	KindTrigger:  {KindDecision: true},
	KindDecision: {KindRule: true, KindAction: true},
	KindRule:     {KindRule: true, KindAction: true},
	KindAction:   {},
}

// CanConnect reports whether an edge from a node of kind from to one of kind to is legal.
func CanConnect(from, to NodeKind) bool {
	return allowedTargets[from][to]
}

// Validate checks every node against the rules of its kind, then the edges
// and the overall shape of g. It never fails; problems are returned as data.
func Validate(g Graph) Result {
	res := Result{Errors: []Issue{}, Warnings: []Issue{}}
	byID := g.NodeByID()

	outputs := make(map[string]int)
	for _, e := range g.Edges {
		src, okS := byID[e.Source]
		dst, okT := byID[e.Target]
		if okS && okT && src.Type == KindDecision && (dst.Type == KindRule || dst.Type == KindAction) {
			outputs[src.ID]++
		}
	}

	triggers := 0
	for _, n := range g.Nodes {
		if n.Type == KindTrigger {
			triggers++
		}
		for _, is := range ValidateNode(n) {
			res.add(is)
		}
		if n.Type == KindDecision && outputs[n.ID] == 0 {
			res.add(nodeError(n.ID, SeverityCritical, CodeDecisionNoOutputs, "",
				"Decision must connect to at least one rule or action"))
		}
	}

	incoming := make(map[string]bool)
	for _, e := range g.Edges {
		src, okS := byID[e.Source]
		dst, okT := byID[e.Target]
		if !okS {
			res.add(edgeError(e.ID, SeverityCritical, CodeEdgeMissingSource,
				fmt.Sprintf("Edge source %q does not exist", e.Source)))
		}
		if !okT {
			res.add(edgeError(e.ID, SeverityCritical, CodeEdgeMissingTarget,
				fmt.Sprintf("Edge target %q does not exist", e.Target)))
		}
		if !okS || !okT {
			continue
		}
		incoming[dst.ID] = true
		if !CanConnect(src.Type, dst.Type) {
			res.add(edgeError(e.ID, SeverityHigh, CodeEdgeInvalidConnection,
				fmt.Sprintf("A %s cannot connect to a %s", src.Type, dst.Type)))
		}
	}

	for _, n := range g.Nodes {
		if n.Type != KindTrigger && !incoming[n.ID] {
			res.add(Issue{
				NodeID:   n.ID,
				Type:     IssueWarning,
				Severity: SeverityMedium,
				Code:     CodeNodeOrphaned,
				Message:  fmt.Sprintf("%s is not connected to anything upstream", kindLabel(n.Type)),
			})
		}
	}

	if path := findCycle(g); path != nil {
		res.add(Issue{
			NodeID:   path[len(path)-1],
			Type:     IssueError,
			Severity: SeverityCritical,
			Code:     CodeGraphCircularDependency,
			Message:  "Circular dependency: " + strings.Join(path, " -> "),
		})
	}

	if triggers == 0 {
		res.add(Issue{
			Type:     IssueError,
			Severity: SeverityCritical,
			Code:     CodeGraphNoTriggers,
			Message:  "The rule needs at least one trigger",
		})
	}
	return res
}

// ValidateNode applies the per-kind field rules to n. Graph-level rules
// such as decision outputs or orphans are left to Validate.
func ValidateNode(n Node) []Issue {
	var out []Issue
	errf := func(sev Severity, code, field, msg string) {
		out = append(out, nodeError(n.ID, sev, code, field, msg))
	}
	warnf := func(sev Severity, code, field, msg string) {
		out = append(out, Issue{NodeID: n.ID, Type: IssueWarning, Severity: sev, Code: code, Field: field, Message: msg})
	}

	switch n.Type {
	case KindTrigger:
		d := nodeAs[TriggerData](n)
		desc := strings.TrimSpace(d.Description)
		if desc == "" {
			errf(SeverityCritical, CodeTriggerMissingDescription, "description", "Trigger description is required")
		}
		if len(d.Analyses) == 0 {
			errf(SeverityCritical, CodeTriggerNoAnalyses, "analyses", "Select at least one analysis")
		}
		if !wholeAtLeastOne(d.Level) {
			errf(SeverityHigh, CodeTriggerInvalidLevel, "level", "Level must be a whole number of at least 1")
		}
		if desc != "" && len([]rune(desc)) < minTriggerDescription {
			warnf(SeverityLow, CodeTriggerShortDescription, "description", "Consider a more descriptive trigger description")
		}

	case KindDecision:
		d := nodeAs[DecisionData](n)
		if strings.TrimSpace(d.Description) == "" {
			errf(SeverityHigh, CodeDecisionMissingDescription, "description", "Decision description is required")
		}
		if d.Priority != nil && *d.Priority < 0 {
			warnf(SeverityMedium, CodeDecisionNegativePriority, "priority", "Priority should not be negative")
		}

	case KindRule:
		d := nodeAs[RuleData](n)
		if d.AnalysisUID == "" {
			errf(SeverityCritical, CodeRuleMissingAnalysis, "analysisUid", "Rule must reference an analysis")
		}
		switch {
		case d.Operator == "":
			errf(SeverityCritical, CodeRuleMissingOperator, "operator", "Rule operator is required")
		case !d.Operator.Valid():
			errf(SeverityHigh, CodeRuleInvalidOperator, "operator", fmt.Sprintf("Unknown operator %q", d.Operator))
		}
		value := strings.TrimSpace(d.Value)
		if value == "" {
			errf(SeverityCritical, CodeRuleMissingValue, "value", "Rule value is required")
		} else if d.Operator.Numeric() {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				warnf(SeverityMedium, CodeRuleNumericMismatch, "value",
					fmt.Sprintf("Operator %s expects a numeric value", d.Operator))
			}
		}

	case KindAction:
		d := nodeAs[ActionData](n)
		if d.AnalysisUID == "" {
			errf(SeverityCritical, CodeActionMissingAnalysis, "analysisUid", "Action must reference an analysis")
		}
		switch {
		case d.ActionType == "":
			errf(SeverityCritical, CodeActionMissingType, "actionType", "Action type is required")
		case !d.ActionType.Valid():
			errf(SeverityHigh, CodeActionInvalidType, "actionType", fmt.Sprintf("Unknown action type %q", d.ActionType))
		case d.ActionType == ActionAdd && !wholeAtLeastOne(d.Count):
			errf(SeverityHigh, CodeActionInvalidCount, "count", "Add action count must be a whole number of at least 1")
		case d.ActionType == ActionFinalize && strings.TrimSpace(d.Value) == "":
			errf(SeverityHigh, CodeActionMissingValue, "value", "Finalize action needs a value")
		}

	default:
		errf(SeverityCritical, CodeNodeUnknownType, "type", fmt.Sprintf("Unknown node type %q", n.Type))
	}
	return out
}

func wholeAtLeastOne(v float64) bool {
	return v >= 1 && v == math.Trunc(v)
}

func nodeError(id string, sev Severity, code, field, msg string) Issue {
	return Issue{NodeID: id, Type: IssueError, Severity: sev, Code: code, Field: field, Message: msg}
}

func edgeError(id string, sev Severity, code, msg string) Issue {
	return Issue{EdgeID: id, Type: IssueError, Severity: sev, Code: code, Message: msg}
}

func kindLabel(k NodeKind) string {
	if k == "" {
		return "Node"
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Status classes assigned by NodeStatuses.
const StatusValid = "valid"

// NodeStatuses maps every node of g to a status class derived from its most
// severe issue in r, such as "error-critical" or "warning-low". Nodes without
// issues are StatusValid. Among equally severe issues the first one found wins.
func NodeStatuses(g Graph, r Result) map[string]string {
	worst := make(map[string]Issue)
	consider := func(is Issue) {
		if is.NodeID == "" {
			return
		}
		cur, ok := worst[is.NodeID]
		if !ok || is.Severity.rank() > cur.Severity.rank() {
			worst[is.NodeID] = is
		}
	}
	for _, is := range r.Errors {
		consider(is)
	}
	for _, is := range r.Warnings {
		consider(is)
	}

	out := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		is, ok := worst[n.ID]
		if !ok {
			out[n.ID] = StatusValid
			continue
		}
		out[n.ID] = string(is.Type) + "-" + string(is.Severity)
	}
	return out
}
