// Package main provides the Zini API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/subseq/zini/pkg/eventbus"
	"github.com/subseq/zini/pkg/notify"
	"github.com/subseq/zini/pkg/persistence"
	"github.com/subseq/zini/pkg/services"
	"github.com/subseq/zini/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	hub         *notify.Hub
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		hub:         notify.NewHub(logger),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	graphService := services.NewGraph(a.persistence)
	flowService := services.NewFlow(a.persistence, a.eventBus)
	trackerService := services.NewTracker(a.persistence, a.eventBus)
	jobService := services.NewJob(a.persistence, trackerService, a.eventBus)
	escalationService := services.NewEscalation(a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(
		graphService,
		flowService,
		trackerService,
		jobService,
		escalationService,
		a.validate,
	)
	watchHandlers := web.NewWatchHandlers(a.hub)

	// Handlers pass route params straight to the services, which hold on to
	// them past the request; Immutable detaches them from fiber's buffers.
	app := fiber.New(fiber.Config{Immutable: true})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Zini API")
	})

	n := app.Group("/nodes")
	n.Post("/", handlers.CreateNode)
	n.Get("/", handlers.GetNodes)
	n.Get("/:id", handlers.GetNode)
	n.Get("/:id/neighbors", handlers.GetNodeNeighbors)

	e := app.Group("/edges")
	e.Post("/", handlers.CreateEdge)
	e.Get("/", handlers.GetEdges)

	f := app.Group("/flows")
	f.Post("/", handlers.CreateFlow)
	f.Get("/", handlers.GetFlows)
	f.Get("/:id", handlers.GetFlow)
	f.Post("/:id/nodes", handlers.AssignNode)
	f.Put("/:id/entry", handlers.SetEntry)
	f.Post("/:id/exits", handlers.MarkExit)
	f.Put("/:id/exits", handlers.ReplaceExits)
	f.Get("/:id/graph", handlers.GetFlowGraph)
	f.Post("/:id/graph", handlers.ImportGraph)
	f.Get("/:id/validate", handlers.ValidateFlow)

	tk := app.Group("/tasks")
	tk.Get("/:taskId/positions", handlers.GetPositions)
	tk.Post("/:taskId/flows/:flowId", handlers.EnrollTask)
	tk.Get("/:taskId/flows/:flowId", handlers.GetPosition)
	tk.Post("/:taskId/flows/:flowId/advance", handlers.AdvancePosition)

	j := app.Group("/jobs")
	j.Post("/", handlers.DispatchJob)
	j.Get("/", handlers.QueryJobs)
	j.Get("/:id", handlers.GetJob)
	j.Post("/:id/complete", handlers.CompleteJob)
	j.Post("/:id/help", handlers.RaiseHelp)
	j.Get("/:id/help/next", handlers.GetNextOpenHelp)

	h := app.Group("/help")
	h.Get("/:id", handlers.GetHelp)
	h.Post("/:id/resolve", handlers.ResolveHelp)
	h.Post("/:id/actions", handlers.RecordAction)

	ac := app.Group("/actions")
	ac.Put("/:id", handlers.UpdateAction)
	ac.Delete("/:id", handlers.DeleteAction)
	ac.Post("/:id/files", handlers.AttachFile)

	app.Get("/watch", watchHandlers.Watch)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// StartNotifications bridges lifecycle events from the bus into the hub
// consumed by /watch and begins consuming.
func (a *API) StartNotifications(ctx context.Context) error {
	err := notify.BridgeEventBus(a.eventBus, a.hub)
	if err != nil {
		return err
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
