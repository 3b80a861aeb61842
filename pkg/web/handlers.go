package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/subseq/zini/pkg/persistence"
	"github.com/subseq/zini/pkg/services"
)

type APIHandlers struct {
	graphService      *services.Graph
	flowService       *services.Flow
	trackerService    *services.Tracker
	jobService        *services.Job
	escalationService *services.Escalation
	validator         *validator.Validate
}

func NewAPIHandlers(
	graphService *services.Graph,
	flowService *services.Flow,
	trackerService *services.Tracker,
	jobService *services.Job,
	escalationService *services.Escalation,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		graphService:      graphService,
		flowService:       flowService,
		trackerService:    trackerService,
		jobService:        jobService,
		escalationService: escalationService,
		validator:         validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.graphService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Zini API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Zini API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Graph handlers

func (h *APIHandlers) CreateNode(c fiber.Ctx) error {
	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.graphService.CreateNode(c.Context(), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	nodes, err := h.graphService.ListNodes(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"nodes": nodes})
}

func (h *APIHandlers) GetNode(c fiber.Ctx) error {
	node, err := h.graphService.FetchNode(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) GetNodeNeighbors(c fiber.Ctx) error {
	neighbors, err := h.graphService.Neighbors(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"neighbors": neighbors})
}

func (h *APIHandlers) CreateEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.graphService.AddEdge(c.Context(), req.FromNodeID, req.ToNodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) GetEdges(c fiber.Ctx) error {
	edges, err := h.graphService.ListEdges(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"edges": edges})
}

// Flow handlers

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.Create(c.Context(), services.CreateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) AssignNode(c fiber.Ctx) error {
	var req AssignNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.flowService.AssignNode(c.Context(), c.Params("id"), req.NodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetEntry(c fiber.Ctx) error {
	var req AssignNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.flowService.SetEntry(c.Context(), c.Params("id"), req.NodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) MarkExit(c fiber.Ctx) error {
	var req AssignNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.flowService.MarkExit(c.Context(), c.Params("id"), req.NodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReplaceExits(c fiber.Ctx) error {
	var req ReplaceExitsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.flowService.ReplaceExits(c.Context(), c.Params("id"), req.NodeIDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetFlowGraph(c fiber.Ctx) error {
	snapshot, err := h.flowService.Graph(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	validation, err := h.flowService.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(validation)
}

// ImportGraph builds a complete scoped graph in one call. The payload is
// checked against a JSON schema before binding so shape errors carry the
// schema's message rather than a decode failure.
func (h *APIHandlers) ImportGraph(c fiber.Ctx) error {
	if err := validateGraphImport(c.Body()); err != nil {
		return badRequest(c, err.Error())
	}

	var req services.ImportGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	snapshot, err := h.flowService.ImportGraph(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(snapshot)
}

// Tracker handlers

func (h *APIHandlers) EnrollTask(c fiber.Ctx) error {
	position, err := h.trackerService.Enroll(c.Context(), c.Params("taskId"), c.Params("flowId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(position)
}

func (h *APIHandlers) GetPosition(c fiber.Ctx) error {
	position, err := h.trackerService.Position(c.Context(), c.Params("taskId"), c.Params("flowId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(position)
}

func (h *APIHandlers) GetPositions(c fiber.Ctx) error {
	positions, err := h.trackerService.Positions(c.Context(), c.Params("taskId"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"positions": positions})
}

func (h *APIHandlers) AdvancePosition(c fiber.Ctx) error {
	var req AdvanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	position, err := h.trackerService.Advance(c.Context(), c.Params("taskId"), c.Params("flowId"), req.ToNodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(position)
}

// Job handlers

func (h *APIHandlers) DispatchJob(c fiber.Ctx) error {
	var req DispatchJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.jobService.Dispatch(c.Context(), services.DispatchJobRequest{
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Name:      req.Name,
		CreatedBy: req.CreatedBy,
		Assignee:  req.Assignee,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	view, err := h.jobService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) QueryJobs(c fiber.Ctx) error {
	opts, err := h.parseJobQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	items, err := h.jobService.Query(c.Context(), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"jobs": items,
		"pagination": fiber.Map{
			"page":      opts.Page,
			"page_size": opts.PageSize,
		},
	})
}

// parseJobQuery parses filter and pagination query parameters.
func (h *APIHandlers) parseJobQuery(c fiber.Ctx) (*persistence.JobQueryOptions, error) {
	opts := &persistence.JobQueryOptions{
		ProjectID: c.Query("project_id"),
		TaskID:    c.Query("task_id"),
		CreatedBy: c.Query("created_by"),
		Assignee:  c.Query("assignee"),
		Name:      c.Query("name"),
	}

	if runningStr := c.Query("running"); runningStr != "" {
		running, err := strconv.ParseBool(runningStr)
		if err != nil {
			return nil, err
		}

		opts.Running = &running
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, err
		}

		opts.Page = page
	}

	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		pageSize, err := strconv.Atoi(pageSizeStr)
		if err != nil {
			return nil, err
		}

		opts.PageSize = pageSize
	}

	return opts, nil
}

func (h *APIHandlers) CompleteJob(c fiber.Ctx) error {
	var req CompleteJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	completion := services.CompleteJobRequest{
		JobID:     c.Params("id"),
		Succeeded: req.Succeeded,
		Log:       req.Log,
	}

	if req.Advance != nil {
		completion.Advance = &services.AdvanceTarget{
			FlowID:   req.Advance.FlowID,
			ToNodeID: req.Advance.ToNodeID,
		}
	}

	view, err := h.jobService.Complete(c.Context(), completion)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// Escalation handlers

func (h *APIHandlers) RaiseHelp(c fiber.Ctx) error {
	var req RaiseHelpRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	help, err := h.escalationService.RaiseHelp(c.Context(), c.Params("id"), req.Request)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(help)
}

func (h *APIHandlers) GetNextOpenHelp(c fiber.Ctx) error {
	help, err := h.escalationService.NextOpenHelp(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(help)
}

func (h *APIHandlers) GetHelp(c fiber.Ctx) error {
	view, err := h.escalationService.FetchHelp(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) ResolveHelp(c fiber.Ctx) error {
	var req ResolveHelpRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resolution, err := h.escalationService.Resolve(c.Context(), c.Params("id"), req.Result)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resolution)
}

func (h *APIHandlers) RecordAction(c fiber.Ctx) error {
	var req RecordActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action, err := h.escalationService.RecordAction(c.Context(), c.Params("id"), req.ActionTaken, req.Files)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(action)
}

func (h *APIHandlers) UpdateAction(c fiber.Ctx) error {
	var req UpdateActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	action, err := h.escalationService.UpdateAction(c.Context(), c.Params("id"), req.ActionTaken, req.Files)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(action)
}

func (h *APIHandlers) AttachFile(c fiber.Ctx) error {
	var req AttachFileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	file, err := h.escalationService.AttachFile(c.Context(), c.Params("id"), req.FileName)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(file)
}

func (h *APIHandlers) DeleteAction(c fiber.Ctx) error {
	err := h.escalationService.DeleteAction(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
