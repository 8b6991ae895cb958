// Package memory implements reflex.Store in process memory. It follows the
// same semantics as the postgres store and suits tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/reflex"
)

// Store keeps reflex rules in a map. Rules are copied on the way in and out.
type Store struct {
	mu     sync.RWMutex
	rules  map[string]*reflex.ReflexRule
	now    func() time.Time
	newUID func() string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		rules:  make(map[string]*reflex.ReflexRule),
		now:    time.Now,
		newUID: uuid.NewString,
	}
}

var _ reflex.Store = (*Store)(nil)

// CreateSchema is a no-op; the map needs no schema.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema forgets every rule.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make(map[string]*reflex.ReflexRule)
	return nil
}

// CreateRule stores a new rule. A missing uid is generated and any
// triggers are normalised the way a graph save would store them.
func (s *Store) CreateRule(ctx context.Context, r *reflex.ReflexRule) (*reflex.ReflexRule, error) {
	c := r.Clone()
	if c == nil {
		c = &reflex.ReflexRule{}
	}
	if c.UID == "" {
		c.UID = s.newUID()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Triggers = reflex.BuildTriggers(reflex.ToPayload(c.UID, reflex.ToGraph(c)), s.newUID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[c.UID] = c
	return c.Clone(), nil
}

// FetchRuleByUID returns nil, nil if the rule does not exist.
func (s *Store) FetchRuleByUID(ctx context.Context, ruleUID string) (*reflex.ReflexRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules[ruleUID].Clone(), nil
}

// ListRules returns rules without their triggers, ordered by priority, then name.
func (s *Store) ListRules(ctx context.Context) ([]reflex.ReflexRule, error) {
	s.mu.RLock()
	out := make([]reflex.ReflexRule, 0, len(s.rules))
	for _, r := range s.rules {
		c := *r
		c.Triggers = nil
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// UpdateRule changes name, description and publish state only.
func (s *Store) UpdateRule(ctx context.Context, ruleUID string, u reflex.RuleUpdate) (*reflex.ReflexRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleUID]
	if !ok {
		return nil, reflex.RuleNotFound(ruleUID)
	}
	r.Name, r.Description, r.IsActive = u.Name, u.Description, u.IsActive
	r.UpdatedAt = s.now()
	return r.Clone(), nil
}

// SaveRuleGraph replaces the trigger tree of a rule with the one drawn in g.
func (s *Store) SaveRuleGraph(ctx context.Context, ruleUID string, g reflex.Graph) (*reflex.ReflexRule, error) {
	triggers, err := reflex.PrepareSave(ruleUID, g, s.newUID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleUID]
	if !ok {
		return nil, reflex.RuleNotFound(ruleUID)
	}
	r.Triggers = triggers
	r.UpdatedAt = s.now()
	return r.Clone(), nil
}

// DeleteRule removes a rule. No error if it doesn't exist.
func (s *Store) DeleteRule(ctx context.Context, ruleUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, ruleUID)
	return nil
}
