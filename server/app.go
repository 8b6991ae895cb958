package main

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/meikuraledutech/reflex"
)

// newApp wires the reflex HTTP API over store.
func newApp(store reflex.Store, logger *slog.Logger) *fiber.App {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(func(c fiber.Ctx) error {
		err := c.Next()
		logger.Debug("request", "method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode())
		return err
	})

	// failure maps a store error to a response: business rejections are 422
	// with error/suggestion, everything else is a 500.
	failure := func(c fiber.Ctx, err error) error {
		if oe, ok := reflex.AsOperationError(err); ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(oe)
		}
		logger.Error("store call failed", "path", c.Path(), "error", err)
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return failure(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return failure(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Rules ─────────────────────────────────────────────────────────
	app.Post("/rules", func(c fiber.Ctx) error {
		var r reflex.ReflexRule
		if err := c.Bind().JSON(&r); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if r.Name == "" {
			return c.Status(400).JSON(fiber.Map{"error": "name is required"})
		}
		created, err := store.CreateRule(c.Context(), &r)
		if err != nil {
			return failure(c, err)
		}
		return c.Status(201).JSON(created)
	})

	app.Get("/rules", func(c fiber.Ctx) error {
		rules, err := store.ListRules(c.Context())
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(rules)
	})

	app.Get("/rules/:uid", func(c fiber.Ctx) error {
		r, err := store.FetchRuleByUID(c.Context(), c.Params("uid"))
		if err != nil {
			return failure(c, err)
		}
		if r == nil {
			return c.Status(404).JSON(fiber.Map{"error": "rule not found"})
		}
		return c.JSON(r)
	})

	// Publish toggle. Never touches the graph.
	app.Patch("/rules/:uid", func(c fiber.Ctx) error {
		var u reflex.RuleUpdate
		if err := c.Bind().JSON(&u); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		r, err := store.UpdateRule(c.Context(), c.Params("uid"), u)
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(r)
	})

	app.Delete("/rules/:uid", func(c fiber.Ctx) error {
		if err := store.DeleteRule(c.Context(), c.Params("uid")); err != nil {
			return failure(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Graph ─────────────────────────────────────────────────────────
	app.Get("/rules/:uid/graph", func(c fiber.Ctx) error {
		r, err := store.FetchRuleByUID(c.Context(), c.Params("uid"))
		if err != nil {
			return failure(c, err)
		}
		if r == nil {
			return c.Status(404).JSON(fiber.Map{"error": "rule not found"})
		}
		w, err := reflex.NewWireGraph(reflex.ToGraph(r))
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(w)
	})

	app.Put("/rules/:uid/graph", func(c fiber.Ctx) error {
		g, err := bindGraph(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		r, err := store.SaveRuleGraph(c.Context(), c.Params("uid"), g)
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(r)
	})

	app.Post("/validate", func(c fiber.Ctx) error {
		g, err := bindGraph(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		res := reflex.Validate(g)
		return c.JSON(fiber.Map{
			"valid":    res.IsValid(),
			"errors":   res.Errors,
			"warnings": res.Warnings,
			"statuses": reflex.NodeStatuses(g, res),
		})
	})

	return app
}

var errInvalidBody = errors.New("invalid body")

func bindGraph(c fiber.Ctx) (reflex.Graph, error) {
	var w reflex.WireGraph
	if err := c.Bind().JSON(&w); err != nil {
		return reflex.Graph{}, errInvalidBody
	}
	return w.Graph()
}
