package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/meikuraledutech/reflex"
	"github.com/meikuraledutech/reflex/memory"
	"github.com/meikuraledutech/reflex/postgres"
)

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := reflex.LoadConfig(os.Getenv("REFLEX_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Use postgres when configured, the in-memory store otherwise.
	var store reflex.Store = memory.New()
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rule, err := store.CreateRule(ctx, &reflex.ReflexRule{Name: "Repeat high glucose", Priority: 1})
	if err != nil {
		log.Fatalf("create rule: %v", err)
	}
	fmt.Printf("rule created: %s\n", rule.UID)

	// ── Draw a graph: trigger → decision → rule chain → actions ──────
	prio := 0
	g := reflex.Graph{
		Nodes: []reflex.Node{
			reflex.NewNode("t1", reflex.Position{X: 0, Y: 0}, reflex.TriggerData{
				Level: 1, Description: "Glucose result verified",
				Analyses: []reflex.AnalysisRef{{UID: "glucose"}},
			}),
			reflex.NewNode("d1", reflex.Position{X: 200, Y: 0}, reflex.DecisionData{Description: "Glucose too high", Priority: &prio}),
			reflex.NewNode("r1", reflex.Position{X: 400, Y: 0}, reflex.RuleData{AnalysisUID: "glucose", Operator: reflex.OpGreater, Value: "11.1"}),
			reflex.NewNode("r2", reflex.Position{X: 600, Y: 0}, reflex.RuleData{AnalysisUID: "glucose", Operator: reflex.OpLess, Value: "30"}),
			reflex.NewNode("a1", reflex.Position{X: 400, Y: 200}, reflex.ActionData{ActionType: reflex.ActionAdd, AnalysisUID: "hba1c", Count: 1}),
		},
		Edges: []reflex.Edge{
			{ID: "e1", Source: "t1", Target: "d1"},
			{ID: "e2", Source: "d1", Target: "r1"},
			{ID: "e3", Source: "r1", Target: "r2"},
			{ID: "e4", Source: "d1", Target: "a1"},
		},
	}

	res := reflex.Validate(g)
	fmt.Printf("\nvalid: %v, errors: %d, warnings: %d\n", res.IsValid(), len(res.Errors), len(res.Warnings))
	printJSON(reflex.ToPayload(rule.UID, g))

	// ── Drive an editor session ───────────────────────────────────────
	opts := append(cfg.Editor.SessionOptions(),
		reflex.WithAutosaveInterval(5*time.Second),
		reflex.WithLogger(slog.Default()),
	)
	session := reflex.NewSession(rule.UID, store, opts...)
	session.Load(reflex.Graph{})
	session.Commit(g)
	session.Start(ctx)

	fmt.Printf("\nsave: %s\n", session.SaveNow(ctx))

	// Undo back to the empty graph and redo the edit.
	if _, ok := session.Undo(); ok {
		fmt.Printf("undo: %d nodes\n", len(session.Graph().Nodes))
	}
	if _, ok := session.Redo(); ok {
		fmt.Printf("redo: %d nodes\n", len(session.Graph().Nodes))
	}

	if _, err := session.SetActive(ctx, rule.Name, "published from example", true); err != nil {
		log.Fatalf("publish: %v", err)
	}
	fmt.Printf("close: %s\n", session.Close(ctx))

	// ── Retrieve ──────────────────────────────────────────────────────
	saved, err := store.FetchRuleByUID(ctx, rule.UID)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	fmt.Println("\nrule retrieved:")
	printJSON(saved)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteRule(ctx, rule.UID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\nrule deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
