package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/reflex"
)

const ruleColumns = `uid, name, description, is_active, priority, created_at, updated_at`

func scanRule(row pgx.Row) (*reflex.ReflexRule, error) {
	var r reflex.ReflexRule
	if err := row.Scan(&r.UID, &r.Name, &r.Description, &r.IsActive, &r.Priority, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule inserts a rule and any triggers it already carries in one
// transaction. A rule without a UID gets a generated one.
func (s *PGStore) CreateRule(ctx context.Context, r *reflex.ReflexRule) (*reflex.ReflexRule, error) {
	c := r.Clone()
	if c == nil {
		c = &reflex.ReflexRule{}
	}
	if c.UID == "" {
		c.UID = s.newUID()
	}
	triggers := reflex.BuildTriggers(reflex.ToPayload(c.UID, reflex.ToGraph(c)), s.newUID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("reflex: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO reflex_rules (uid, name, description, is_active, priority) VALUES ($1, $2, $3, $4, $5)`,
		c.UID, c.Name, c.Description, c.IsActive, c.Priority,
	); err != nil {
		return nil, fmt.Errorf("reflex: insert rule: %w", err)
	}
	if err := insertTree(ctx, tx, flatten(c.UID, triggers)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reflex: commit: %w", err)
	}

	return s.FetchRuleByUID(ctx, c.UID)
}

// FetchRuleByUID loads a rule with its full trigger tree.
// Returns nil, nil if not found.
func (s *PGStore) FetchRuleByUID(ctx context.Context, ruleUID string) (*reflex.ReflexRule, error) {
	r, err := scanRule(s.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM reflex_rules WHERE uid = $1`, ruleUID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reflex: get rule: %w", err)
	}

	rows, err := s.loadTree(ctx, ruleUID)
	if err != nil {
		return nil, err
	}
	r.Triggers = assemble(rows)
	return r, nil
}

// ListRules returns every rule without its triggers, ordered by priority.
func (s *PGStore) ListRules(ctx context.Context) ([]reflex.ReflexRule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM reflex_rules ORDER BY priority, name`)
	if err != nil {
		return nil, fmt.Errorf("reflex: list rules: %w", err)
	}
	defer rows.Close()

	rules := []reflex.ReflexRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("reflex: scan rule: %w", err)
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reflex: rows rules: %w", err)
	}
	return rules, nil
}

// UpdateRule changes name, description and publish state; the trigger tree
// is left alone. A missing rule yields an OperationError.
func (s *PGStore) UpdateRule(ctx context.Context, ruleUID string, u reflex.RuleUpdate) (*reflex.ReflexRule, error) {
	ct, err := s.db.Exec(ctx,
		`UPDATE reflex_rules SET name = $1, description = $2, is_active = $3, updated_at = NOW() WHERE uid = $4`,
		u.Name, u.Description, u.IsActive, ruleUID,
	)
	if err != nil {
		return nil, fmt.Errorf("reflex: update rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, reflex.RuleNotFound(ruleUID)
	}
	return s.FetchRuleByUID(ctx, ruleUID)
}

// SaveRuleGraph validates g, converts it to a trigger tree and replaces the
// rule's tree with it in one transaction. Entities keep the uids carried in
// node data; new ones get generated uids. Returns the reloaded rule.
func (s *PGStore) SaveRuleGraph(ctx context.Context, ruleUID string, g reflex.Graph) (*reflex.ReflexRule, error) {
	triggers, err := reflex.PrepareSave(ruleUID, g, s.newUID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("reflex: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var uid string
	if err := tx.QueryRow(ctx,
		`SELECT uid FROM reflex_rules WHERE uid = $1 FOR UPDATE`, ruleUID,
	).Scan(&uid); err != nil {
		if isNoRows(err) {
			return nil, reflex.RuleNotFound(ruleUID)
		}
		return nil, fmt.Errorf("reflex: lock rule: %w", err)
	}

	// Replace semantics: children cascade from the triggers.
	if _, err := tx.Exec(ctx, `DELETE FROM reflex_triggers WHERE reflex_rule_uid = $1`, ruleUID); err != nil {
		return nil, fmt.Errorf("reflex: delete triggers: %w", err)
	}
	if err := insertTree(ctx, tx, flatten(ruleUID, triggers)); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE reflex_rules SET updated_at = NOW() WHERE uid = $1`, ruleUID); err != nil {
		return nil, fmt.Errorf("reflex: touch rule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reflex: commit: %w", err)
	}
	return s.FetchRuleByUID(ctx, ruleUID)
}

// DeleteRule removes a rule and its tree.
// No error if the rule doesn't exist.
func (s *PGStore) DeleteRule(ctx context.Context, ruleUID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM reflex_rules WHERE uid = $1`, ruleUID); err != nil {
		return fmt.Errorf("reflex: delete rule: %w", err)
	}
	return nil
}
