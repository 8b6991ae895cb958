package postgres

import "context"

// Every child table carries reflex_rule_uid so a whole tree loads with one
// indexed query per table. Entity uids are unique per rule only, so keys and
// parent references include the rule. ordinal keeps slice order.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS reflex_rules (
    uid         TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active   BOOLEAN NOT NULL DEFAULT FALSE,
    priority    INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reflex_triggers (
    uid             TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL REFERENCES reflex_rules(uid) ON DELETE CASCADE,
    level           INTEGER NOT NULL,
    description     TEXT NOT NULL,
    sample_type_uid TEXT NOT NULL DEFAULT '',
    pos_x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    pos_y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (reflex_rule_uid, uid)
);

CREATE TABLE IF NOT EXISTS reflex_trigger_analyses (
    trigger_uid     TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL,
    analysis_uid    TEXT NOT NULL,
    ordinal         INTEGER NOT NULL,
    FOREIGN KEY (reflex_rule_uid, trigger_uid)
        REFERENCES reflex_triggers(reflex_rule_uid, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS reflex_decisions (
    uid             TEXT NOT NULL,
    trigger_uid     TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL,
    description     TEXT NOT NULL,
    priority        INTEGER NOT NULL DEFAULT 0,
    pos_x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    pos_y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (reflex_rule_uid, uid),
    FOREIGN KEY (reflex_rule_uid, trigger_uid)
        REFERENCES reflex_triggers(reflex_rule_uid, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS reflex_rule_groups (
    uid             TEXT NOT NULL,
    decision_uid    TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    priority        INTEGER NOT NULL DEFAULT 0,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (reflex_rule_uid, uid),
    FOREIGN KEY (reflex_rule_uid, decision_uid)
        REFERENCES reflex_decisions(reflex_rule_uid, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS reflex_rule_criteria (
    uid             TEXT NOT NULL,
    rule_group_uid  TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL,
    analysis_uid    TEXT NOT NULL,
    operator        TEXT NOT NULL,
    value           TEXT NOT NULL,
    priority        INTEGER NOT NULL DEFAULT 0,
    pos_x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    pos_y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (reflex_rule_uid, uid),
    FOREIGN KEY (reflex_rule_uid, rule_group_uid)
        REFERENCES reflex_rule_groups(reflex_rule_uid, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS reflex_add_analyses (
    uid             TEXT NOT NULL,
    decision_uid    TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL,
    analysis_uid    TEXT NOT NULL,
    count           INTEGER NOT NULL CHECK (count >= 1),
    pos_x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    pos_y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (reflex_rule_uid, uid),
    FOREIGN KEY (reflex_rule_uid, decision_uid)
        REFERENCES reflex_decisions(reflex_rule_uid, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS reflex_finalize_analyses (
    uid             TEXT NOT NULL,
    decision_uid    TEXT NOT NULL,
    reflex_rule_uid TEXT NOT NULL,
    analysis_uid    TEXT NOT NULL,
    value           TEXT NOT NULL,
    pos_x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    pos_y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (reflex_rule_uid, uid),
    FOREIGN KEY (reflex_rule_uid, decision_uid)
        REFERENCES reflex_decisions(reflex_rule_uid, uid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_reflex_triggers_rule  ON reflex_triggers(reflex_rule_uid);
CREATE INDEX IF NOT EXISTS idx_reflex_analyses_rule  ON reflex_trigger_analyses(reflex_rule_uid);
CREATE INDEX IF NOT EXISTS idx_reflex_decisions_rule ON reflex_decisions(reflex_rule_uid);
CREATE INDEX IF NOT EXISTS idx_reflex_groups_rule    ON reflex_rule_groups(reflex_rule_uid);
CREATE INDEX IF NOT EXISTS idx_reflex_criteria_rule  ON reflex_rule_criteria(reflex_rule_uid);
CREATE INDEX IF NOT EXISTS idx_reflex_add_rule       ON reflex_add_analyses(reflex_rule_uid);
CREATE INDEX IF NOT EXISTS idx_reflex_finalize_rule  ON reflex_finalize_analyses(reflex_rule_uid);
`

// CreateSchema creates the reflex tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops all reflex tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS
		reflex_finalize_analyses, reflex_add_analyses, reflex_rule_criteria,
		reflex_rule_groups, reflex_decisions, reflex_trigger_analyses,
		reflex_triggers, reflex_rules CASCADE;`)
	return err
}
