package main

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/meikuraledutech/dataflow"
	"github.com/meikuraledutech/dataflow/graphviz"
)

var errBadParam = errors.New("invalid path or query parameter")

type handler struct {
	repo dataflow.Repository
	log  *slog.Logger
}

func newApp(repo dataflow.Repository, log *slog.Logger) *fiber.App {
	h := &handler{repo: repo, log: log}

	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(logger.New())

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := repo.CreateSchema(c.Context()); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := repo.DropSchema(c.Context()); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Flows ─────────────────────────────────────────────────────────
	app.Post("/flows", h.createFlow)
	app.Get("/flows", h.listFlows)
	app.Get("/flows/:id", h.getFlow)
	app.Put("/flows/:id", h.replaceFlow)
	app.Delete("/flows/:id", func(c fiber.Ctx) error {
		if err := repo.DeleteFlow(c.Context(), c.Params("id")); err != nil {
			return h.fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/flows/:id/compiled", h.compiled)
	app.Get("/flows/:id/dot", h.dot)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/flows/:id/nodes", h.addNode)
	app.Put("/flows/:id/nodes/:node", h.updateNodeConfig)
	app.Put("/flows/:id/nodes/:node/meta", h.updateNodeMeta)
	app.Delete("/flows/:id/nodes/:node", h.deleteNode)

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/flows/:id/edges", h.addEdge)
	app.Delete("/flows/:id/edges", h.deleteEdge)

	return app
}

func (h *handler) createFlow(c fiber.Ctx) error {
	var f dataflow.Flow
	if err := c.Bind().JSON(&f); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := canonicalize(&f); err != nil {
		return h.fail(c, err)
	}
	created, err := h.repo.CreateFlow(c.Context(), &f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handler) listFlows(c fiber.Ctx) error {
	flows, err := h.repo.ListFlows(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(flows)
}

func (h *handler) getFlow(c fiber.Ctx) error {
	f, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

func (h *handler) replaceFlow(c fiber.Ctx) error {
	var f dataflow.Flow
	if err := c.Bind().JSON(&f); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	f.ID = c.Params("id")
	if err := canonicalize(&f); err != nil {
		return h.fail(c, err)
	}
	if err := h.repo.UpdateFlow(c.Context(), &f); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

func (h *handler) compiled(c fiber.Ctx) error {
	f, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	m, err := dataflow.Load(f.Compiled, f.Source, dataflow.WithLogger(h.log))
	if err != nil {
		return h.fail(c, err)
	}
	if err := m.Validate(); err != nil {
		return h.fail(c, err)
	}
	def, _ := m.Compile()
	return c.JSON(def)
}

func (h *handler) dot(c fiber.Ctx) error {
	f, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	out, err := graphviz.Render(f.Compiled)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/vnd.graphviz; charset=utf-8")
	return c.SendString(out)
}

func (h *handler) addNode(c fiber.Ctx) error {
	var pos dataflow.Position
	if err := c.Bind().JSON(&pos); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	var id dataflow.NodeID
	f, err := h.edit(c, func(m *dataflow.Manager) (err error) {
		id, err = m.AddNode(pos)
		return err
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "flow": f})
}

func (h *handler) updateNodeConfig(c fiber.Ctx) error {
	id, err := nodeParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	var cfg dataflow.NodeConfig
	if err := c.Bind().JSON(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	f, err := h.edit(c, func(m *dataflow.Manager) error { return m.UpdateConfig(id, cfg) })
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

func (h *handler) updateNodeMeta(c fiber.Ctx) error {
	id, err := nodeParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	var meta dataflow.NodeMeta
	if err := c.Bind().JSON(&meta); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	f, err := h.edit(c, func(m *dataflow.Manager) error { return m.UpdateMeta(id, meta) })
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

func (h *handler) deleteNode(c fiber.Ctx) error {
	id, err := nodeParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	f, err := h.edit(c, func(m *dataflow.Manager) error { return m.DeleteNode(id) })
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

func (h *handler) addEdge(c fiber.Ctx) error {
	var e dataflow.Edge
	if err := c.Bind().JSON(&e); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	f, err := h.edit(c, func(m *dataflow.Manager) error { return m.AddEdge(e.From, e.To, e.Name) })
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(f)
}

func (h *handler) deleteEdge(c fiber.Ctx) error {
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil {
		return h.fail(c, errBadParam)
	}
	to, err := strconv.Atoi(c.Query("to"))
	if err != nil {
		return h.fail(c, errBadParam)
	}
	f, err := h.edit(c, func(m *dataflow.Manager) error {
		return m.DeleteEdge(dataflow.NodeID(from), dataflow.NodeID(to))
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

// load fetches the flow named by the :id parameter.
func (h *handler) load(c fiber.Ctx) (*dataflow.Flow, error) {
	f, err := h.repo.GetFlow(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, dataflow.ErrFlowNotFound
	}
	return f, nil
}

// edit loads the flow into a Manager, applies op, and stores the compiled
// result.
func (h *handler) edit(c fiber.Ctx, op func(m *dataflow.Manager) error) (*dataflow.Flow, error) {
	f, err := h.load(c)
	if err != nil {
		return nil, err
	}
	m, err := dataflow.Load(f.Compiled, f.Source, dataflow.WithLogger(h.log))
	if err != nil {
		return nil, err
	}
	if err := op(m); err != nil {
		return nil, err
	}
	f.Compiled, f.Source = m.Compile()
	if err := h.repo.UpdateFlow(c.Context(), f); err != nil {
		return nil, err
	}
	return f, nil
}

func (h *handler) fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam), errors.Is(err, dataflow.ErrUnknownEndpoint):
		return fiber.StatusBadRequest
	case errors.Is(err, dataflow.ErrFlowNotFound), errors.Is(err, dataflow.ErrNodeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, dataflow.ErrCycleDetected),
		errors.Is(err, dataflow.ErrDuplicateName),
		errors.Is(err, dataflow.ErrEmptyName):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func nodeParam(c fiber.Ctx) (dataflow.NodeID, error) {
	id, err := strconv.Atoi(c.Params("node"))
	if err != nil {
		return 0, errBadParam
	}
	return dataflow.NodeID(id), nil
}

// canonicalize runs client-supplied artifacts through Load so that stale
// edges are dropped and the execution order is recomputed before storage.
func canonicalize(f *dataflow.Flow) error {
	m, err := dataflow.Load(f.Compiled, f.Source)
	if err != nil {
		return err
	}
	f.Compiled, f.Source = m.Compile()
	return nil
}
