package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/app/usecases"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/metrics"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// server holds the handler dependencies
type server struct {
	service  usecases.RuleEditorService
	readOnly bool
	logger   *slog.Logger
}

func newApp(service usecases.RuleEditorService, m *metrics.Metrics, readOnly bool, logger *slog.Logger) *fiber.App {
	s := &server{service: service, readOnly: readOnly, logger: logger}
	app := fiber.New()

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Rule editor server is running. See /healthz, /metrics, /operators, /rules")
	})
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// ── Catalog ───────────────────────────────────────────────────────
	app.Get("/operators", s.listOperators)

	// ── Rules ─────────────────────────────────────────────────────────
	app.Get("/rules", s.listRules)
	app.Post("/rules/validate", s.validateRule)
	app.Get("/projects/:project/tasks/:task/rule", s.fetchRule)
	app.Put("/projects/:project/tasks/:task/rule", s.saveRule)
	app.Delete("/projects/:project/tasks/:task/rule", s.deleteRule)

	return app
}

func ruleRequest(c fiber.Ctx) dto.RuleRequest {
	return dto.RuleRequest{ProjectID: c.Params("project"), TaskID: c.Params("task")}
}

func (s *server) listOperators(c fiber.Ctx) error {
	catalog := s.service.Catalog()
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		return c.JSON(catalog.Search(q))
	}
	tab := c.Query("tab", "all")
	for _, t := range operator.SidebarTabs() {
		if t.ID == tab {
			ops := t.FilterAndSort(catalog.Operators())
			if ops == nil {
				ops = []operator.RuleOperator{}
			}
			return c.JSON(ops)
		}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown tab"})
}

func (s *server) listRules(c fiber.Ctx) error {
	filter := store.Filter{
		ProjectID: c.Query("project"),
		Limit:     fiber.Query[int](c, "limit", 0),
		Offset:    fiber.Query[int](c, "offset", 0),
	}
	rules, err := s.service.ListRules(c.Context(), filter)
	if errors.Is(err, store.ErrInvalidLimit) || errors.Is(err, store.ErrInvalidOffset) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rules)
}

func (s *server) fetchRule(c fiber.Ctx) error {
	resp, err := s.service.FetchRule(c.Context(), ruleRequest(c))
	if errors.Is(err, store.ErrRuleNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "rule not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(resp)
}

func (s *server) saveRule(c fiber.Ctx) error {
	if s.readOnly {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "server is read-only"})
	}
	var r ruletree.Rule
	if err := c.Bind().JSON(&r); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	res := s.service.SaveRule(c.Context(), dto.SaveRuleRequest{RuleRequest: ruleRequest(c), Rule: &r})
	if !res.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	return c.JSON(res)
}

func (s *server) deleteRule(c fiber.Ctx) error {
	if s.readOnly {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "server is read-only"})
	}
	err := s.service.DeleteRule(c.Context(), ruleRequest(c))
	if errors.Is(err, store.ErrRuleNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "rule not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("rule deleted", slog.String("project", c.Params("project")), slog.String("task", c.Params("task")))
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) validateRule(c fiber.Ctx) error {
	var r ruletree.Rule
	if err := c.Bind().JSON(&r); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	return c.JSON(s.service.ValidateRule(c.Context(), &r))
}
