package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// insertTree writes flattened rows parents first.
func insertTree(ctx context.Context, tx pgx.Tx, rows treeRows) error {
	for _, t := range rows.triggers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_triggers (uid, reflex_rule_uid, level, description, sample_type_uid, pos_x, pos_y, ordinal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.UID, t.RuleUID, t.Level, t.Description, t.SampleTypeUID, t.PosX, t.PosY, t.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert trigger %s: %w", t.UID, err)
		}
	}
	for _, a := range rows.analyses {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_trigger_analyses (trigger_uid, reflex_rule_uid, analysis_uid, ordinal) VALUES ($1, $2, $3, $4)`,
			a.TriggerUID, a.RuleUID, a.AnalysisUID, a.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert trigger analysis %s: %w", a.AnalysisUID, err)
		}
	}
	for _, d := range rows.decisions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_decisions (uid, trigger_uid, reflex_rule_uid, description, priority, pos_x, pos_y, ordinal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			d.UID, d.TriggerUID, d.RuleUID, d.Description, d.Priority, d.PosX, d.PosY, d.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert decision %s: %w", d.UID, err)
		}
	}
	for _, g := range rows.groups {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_rule_groups (uid, decision_uid, reflex_rule_uid, description, priority, ordinal)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			g.UID, g.DecisionUID, g.RuleUID, g.Description, g.Priority, g.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert rule group %s: %w", g.UID, err)
		}
	}
	for _, c := range rows.criteria {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_rule_criteria (uid, rule_group_uid, reflex_rule_uid, analysis_uid, operator, value, priority, pos_x, pos_y, ordinal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.UID, c.GroupUID, c.RuleUID, c.AnalysisUID, c.Operator, c.Value, c.Priority, c.PosX, c.PosY, c.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert rule criterion %s: %w", c.UID, err)
		}
	}
	for _, a := range rows.adds {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_add_analyses (uid, decision_uid, reflex_rule_uid, analysis_uid, count, pos_x, pos_y, ordinal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.UID, a.DecisionUID, a.RuleUID, a.AnalysisUID, a.Count, a.PosX, a.PosY, a.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert add action %s: %w", a.UID, err)
		}
	}
	for _, f := range rows.finalizes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reflex_finalize_analyses (uid, decision_uid, reflex_rule_uid, analysis_uid, value, pos_x, pos_y, ordinal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.UID, f.DecisionUID, f.RuleUID, f.AnalysisUID, f.Value, f.PosX, f.PosY, f.Ordinal,
		); err != nil {
			return fmt.Errorf("reflex: insert finalize action %s: %w", f.UID, err)
		}
	}
	return nil
}

// loadTree reads every row belonging to ruleUID.
func (s *PGStore) loadTree(ctx context.Context, ruleUID string) (treeRows, error) {
	var (
		rows treeRows
		err  error
	)
	if rows.triggers, err = collect[triggerRow](ctx, s, `SELECT uid, reflex_rule_uid, level, description, sample_type_uid, pos_x, pos_y, ordinal
		FROM reflex_triggers WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load triggers: %w", err)
	}
	if rows.analyses, err = collect[analysisRow](ctx, s, `SELECT trigger_uid, reflex_rule_uid, analysis_uid, ordinal
		FROM reflex_trigger_analyses WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load trigger analyses: %w", err)
	}
	if rows.decisions, err = collect[decisionRow](ctx, s, `SELECT uid, trigger_uid, reflex_rule_uid, description, priority, pos_x, pos_y, ordinal
		FROM reflex_decisions WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load decisions: %w", err)
	}
	if rows.groups, err = collect[groupRow](ctx, s, `SELECT uid, decision_uid, reflex_rule_uid, description, priority, ordinal
		FROM reflex_rule_groups WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load rule groups: %w", err)
	}
	if rows.criteria, err = collect[criterionRow](ctx, s, `SELECT uid, rule_group_uid, reflex_rule_uid, analysis_uid, operator, value, priority, pos_x, pos_y, ordinal
		FROM reflex_rule_criteria WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load rule criteria: %w", err)
	}
	if rows.adds, err = collect[addRow](ctx, s, `SELECT uid, decision_uid, reflex_rule_uid, analysis_uid, count, pos_x, pos_y, ordinal
		FROM reflex_add_analyses WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load add actions: %w", err)
	}
	if rows.finalizes, err = collect[finalizeRow](ctx, s, `SELECT uid, decision_uid, reflex_rule_uid, analysis_uid, value, pos_x, pos_y, ordinal
		FROM reflex_finalize_analyses WHERE reflex_rule_uid = $1 ORDER BY ordinal`, ruleUID); err != nil {
		return treeRows{}, fmt.Errorf("reflex: load finalize actions: %w", err)
	}
	return rows, nil
}

func collect[T any](ctx context.Context, s *PGStore, sql, ruleUID string) ([]T, error) {
	rows, err := s.db.Query(ctx, sql, ruleUID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[T])
}
