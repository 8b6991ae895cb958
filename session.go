package reflex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultAutosaveInterval = 30 * time.Second
	DefaultDebounce         = 300 * time.Millisecond
)

// SaveStatus is the outcome of a save attempt.
type SaveStatus int

const (
	SaveOK SaveStatus = iota
	SaveSkippedInFlight
	SaveSkippedEmpty
	SaveBlocked
	SaveFailed
)

func (s SaveStatus) String() string {
	switch s {
	case SaveOK:
		return "ok"
	case SaveSkippedInFlight:
		return "skipped_in_flight"
	case SaveSkippedEmpty:
		return "skipped_empty"
	case SaveBlocked:
		return "blocked"
	case SaveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SaveError describes why the last save did not go through. Rejected is set
// for business rejections and validation blocks, unset for transport faults.
type SaveError struct {
	Message    string
	Suggestion string
	Rejected   bool
}

// UnloadResult tells the host what happened when the editor is closing.
type UnloadResult struct {
	// Attempted is set when a final save was started.
	Attempted bool
	// UnsavedChanges is set when the last successful save is older than the
	// autosave interval; the host should warn before closing.
	UnsavedChanges bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutosaveInterval sets how often dirty graphs are saved.
func WithAutosaveInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.autosave = d
		}
	}
}

// WithDebounce sets the quiet period before a change is validated.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithValidateOnChange turns debounced validation on changes on or off.
func WithValidateOnChange(on bool) SessionOption {
	return func(s *Session) { s.validateOnChange = on }
}

// WithUpdateNodeClasses turns per-node error and warning classes on or off.
func WithUpdateNodeClasses(on bool) SessionOption {
	return func(s *Session) { s.updateNodeClasses = on }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) SessionOption {
	return func(s *Session) { s.historyLimit = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// OnValidated registers a callback run after every validation pass with
// the result and, when node classes are enabled, the node statuses.
func OnValidated(fn func(Result, map[string]string)) SessionOption {
	return func(s *Session) { s.onValidated = fn }
}

// Session is one open editor of one reflex rule. It owns a copy of the
// graph, its undo history, the debounced validation timer, the autosave
// ticker and the single in-flight save guard. Sessions share nothing, so
// several editors can be open at once.
type Session struct {
	ruleUID string
	backend GraphSaver
	logger  *slog.Logger
	now     func() time.Time

	autosave          time.Duration
	debounce          time.Duration
	validateOnChange  bool
	updateNodeClasses bool
	historyLimit      int
	onValidated       func(Result, map[string]string)

	mu        sync.Mutex
	graph     Graph
	history   *History
	result    Result
	statuses  map[string]string
	saving    bool
	lastSaved time.Time
	lastErr   *SaveError
	rule      *ReflexRule
	closed    bool

	validator *Debouncer
	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewSession opens an editor session for ruleUID saving through backend.
// The backend may also implement RuleUpdater to support SetActive.
func NewSession(ruleUID string, backend GraphSaver, opts ...SessionOption) *Session {
	s := &Session{
		ruleUID:           ruleUID,
		backend:           backend,
		logger:            slog.Default(),
		now:               time.Now,
		autosave:          DefaultAutosaveInterval,
		debounce:          DefaultDebounce,
		validateOnChange:  true,
		updateNodeClasses: true,
		historyLimit:      DefaultHistoryLimit,
		stop:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("rule_uid", ruleUID)
	s.history = NewHistory(s.historyLimit)
	s.validator = NewDebouncer(s.debounce, func() { s.Validate() })
	return s
}

// Load installs g as the session graph and resets the history to it.
func (s *Session) Load(g Graph) {
	s.mu.Lock()
	s.graph = g.Clone()
	s.history.Initialize(NewSnapshot(g, s.now()))
	s.mu.Unlock()
	s.scheduleValidation()
}

// LoadRule installs the graph of a persisted rule. The loaded state counts
// as saved.
func (s *Session) LoadRule(rule *ReflexRule) {
	s.Load(ToGraph(rule))
	s.mu.Lock()
	s.rule = rule.Clone()
	s.lastSaved = s.now()
	s.mu.Unlock()
}

// Commit records a finished edit: the session keeps a copy of g, pushes it
// onto the history and schedules validation. Call it once per completed
// gesture, not on every intermediate frame.
func (s *Session) Commit(g Graph) {
	s.mu.Lock()
	s.graph = g.Clone()
	s.history.PushState(NewSnapshot(g, s.now()))
	s.mu.Unlock()
	s.scheduleValidation()
}

// Graph returns a copy of the current graph.
func (s *Session) Graph() Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// Undo restores the previous state and returns it.
func (s *Session) Undo() (Graph, bool) {
	return s.step((*History).Undo)
}

// Redo restores the next state and returns it.
func (s *Session) Redo() (Graph, bool) {
	return s.step((*History).Redo)
}

func (s *Session) step(move func(*History) (Snapshot, bool)) (Graph, bool) {
	s.mu.Lock()
	snap, ok := move(s.history)
	if ok {
		s.graph = snap.Graph()
	}
	s.mu.Unlock()
	if !ok {
		return Graph{}, false
	}
	s.scheduleValidation()
	return snap.Graph(), true
}

// HandleKey applies an undo or redo shortcut. It reports the action taken.
func (s *Session) HandleKey(ev KeyEvent) HistoryAction {
	switch a := ResolveShortcut(ev); a {
	case HistoryUndo:
		if _, ok := s.Undo(); ok {
			return a
		}
	case HistoryRedo:
		if _, ok := s.Redo(); ok {
			return a
		}
	}
	return HistoryNone
}

// CanUndo reports whether Undo would change the graph.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would change the graph.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

func (s *Session) scheduleValidation() {
	if s.validateOnChange {
		s.validator.Trigger()
	}
}

// Validate checks the current graph now, records the result and returns it.
func (s *Session) Validate() Result {
	g := s.Graph()
	return s.recordValidation(g, Validate(g))
}

func (s *Session) recordValidation(g Graph, res Result) Result {
	var statuses map[string]string
	if s.updateNodeClasses {
		statuses = NodeStatuses(g, res)
	}
	s.mu.Lock()
	s.result = res
	if statuses != nil {
		s.statuses = statuses
	}
	cb := s.onValidated
	s.mu.Unlock()

	s.logger.Debug("graph validated", "errors", len(res.Errors), "warnings", len(res.Warnings))
	if cb != nil {
		cb(res, statuses)
	}
	return res
}

// LastResult returns the most recent validation result.
func (s *Session) LastResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// NodeStatuses returns the status class of every node from the last pass.
func (s *Session) NodeStatuses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// SaveNow saves the current graph unless a save is already in flight.
func (s *Session) SaveNow(ctx context.Context) SaveStatus {
	return s.save(ctx, false)
}

// save runs one save. Automatic saves skip an empty graph so an editor that
// has not finished loading never overwrites real data.
func (s *Session) save(ctx context.Context, auto bool) SaveStatus {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		s.logger.Debug("save skipped, another save in flight", "auto", auto)
		return SaveSkippedInFlight
	}
	if auto && len(s.graph.Nodes) == 0 {
		s.mu.Unlock()
		return SaveSkippedEmpty
	}
	g := s.graph.Clone()
	s.saving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	res := s.recordValidation(g, Validate(g))
	if !res.IsValid() {
		s.setError(&SaveError{
			Message:    fmt.Sprintf("graph has %d validation errors", len(res.Errors)),
			Suggestion: res.Errors[0].Message,
			Rejected:   true,
		})
		s.logger.Info("save blocked by validation", "errors", len(res.Errors), "auto", auto)
		return SaveBlocked
	}

	rule, err := s.backend.SaveRuleGraph(ctx, s.ruleUID, g)
	if err != nil {
		if oe, ok := AsOperationError(err); ok {
			s.setError(&SaveError{Message: oe.Message, Suggestion: oe.Suggestion, Rejected: true})
			s.logger.Warn("save rejected", "error", oe.Message, "suggestion", oe.Suggestion)
		} else {
			s.setError(&SaveError{Message: err.Error()})
			s.logger.Error("save failed", "error", err)
		}
		return SaveFailed
	}

	var ids map[string]entityUIDs
	if rule != nil {
		ids = savedUIDs(g, rule.Triggers)
	}
	s.mu.Lock()
	s.lastSaved = s.now()
	s.lastErr = nil
	s.rule = rule.Clone()
	// Stored uids go back into the live graph and every history state so the
	// next save updates the same rows.
	if len(ids) > 0 {
		adopt := func(n Node) Node {
			if e, ok := ids[n.ID]; ok {
				return e.apply(n)
			}
			return n
		}
		for i := range s.graph.Nodes {
			s.graph.Nodes[i] = adopt(s.graph.Nodes[i])
		}
		s.history.MapNodes(adopt)
	}
	s.mu.Unlock()
	s.logger.Info("graph saved", "nodes", len(g.Nodes), "edges", len(g.Edges), "auto", auto)
	return SaveOK
}

func (s *Session) setError(e *SaveError) {
	s.mu.Lock()
	s.lastErr = e
	s.mu.Unlock()
}

// LastError returns why the last save failed, or nil after a success.
func (s *Session) LastError() *SaveError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	e := *s.lastErr
	return &e
}

// LastSaved returns when the last successful save finished.
func (s *Session) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Rule returns the rule as last returned by the backend.
func (s *Session) Rule() *ReflexRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rule.Clone()
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Start runs the autosave ticker until ctx ends or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			t := time.NewTicker(s.autosave)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.stop:
					return
				case <-t.C:
					s.save(ctx, true)
				}
			}
		}()
	})
}

// Unload handles the host closing the editor. When there is something to
// save and no save is running, one save is started in the background.
func (s *Session) Unload(ctx context.Context) UnloadResult {
	s.mu.Lock()
	hasNodes := len(s.graph.Nodes) > 0
	saving := s.saving
	stale := s.lastSaved.IsZero() || s.now().Sub(s.lastSaved) > s.autosave
	res := UnloadResult{UnsavedChanges: hasNodes && stale}
	if hasNodes && !saving && !s.closed {
		res.Attempted = true
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.save(context.WithoutCancel(ctx), true)
		}()
	}
	s.mu.Unlock()

	if res.UnsavedChanges {
		s.logger.Warn("editor closing with unsaved changes", "last_saved", s.LastSaved())
	}
	return res
}

// Close stops the timers, waits for background saves and performs one
// final save when the graph has nodes.
func (s *Session) Close(ctx context.Context) SaveStatus {
	status := SaveSkippedEmpty
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
		s.validator.Stop()
		s.wg.Wait()
		status = s.save(ctx, true)
	})
	return status
}

// SetActive publishes or unpublishes the rule. It is independent of saving
// the graph: a save never changes the publish state.
func (s *Session) SetActive(ctx context.Context, name, description string, active bool) (*ReflexRule, error) {
	updater, ok := s.backend.(RuleUpdater)
	if !ok {
		return nil, ErrNoUpdater
	}
	rule, err := updater.UpdateRule(ctx, s.ruleUID, RuleUpdate{Name: name, Description: description, IsActive: active})
	if err != nil {
		if oe, ok := AsOperationError(err); ok {
			s.logger.Warn("publish rejected", "error", oe.Message)
		} else {
			s.logger.Error("publish failed", "error", err)
		}
		return nil, err
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	s.mu.Lock()
	if s.rule != nil {
		s.rule.Name, s.rule.Description, s.rule.IsActive = rule.Name, rule.Description, rule.IsActive
	}
	s.mu.Unlock()
	s.logger.Info("rule publish state changed", "active", rule.IsActive)
	return rule, nil
}
