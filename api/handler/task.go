package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/api/transport"
	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/httpcontext"
	"github.com/fastygo/tasktracker/usecase/query"
	taskUC "github.com/fastygo/tasktracker/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Param page query int false "1-based page"
// @Param size query int false "page size, at most 20"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	if _, ok := h.identity(ctx); !ok {
		return
	}

	params, err := parseListParams(ctx.QueryArgs())
	if err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), err.Error(), nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, params)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(tasks, listMeta(params, len(tasks))))
}

// listMeta reports the page that was served, with defaults applied.
func listMeta(p query.Params, count int) transport.ListMeta {
	meta := transport.ListMeta{Page: 1, Size: query.DefaultPageSize, Count: count}
	if p.Page != nil {
		meta.Page = *p.Page
	}
	if p.Size != nil {
		meta.Size = min(*p.Size, query.MaxPageSize)
	}
	return meta
}

// @Summary Get a task with its people expanded
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	if _, ok := h.identity(ctx); !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	var req transport.CreateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, caller, taskUC.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        domain.TaskType(req.Type),
		Attachments: req.Attachments,
	})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task title, description or status
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	if _, ok := h.identity(ctx); !ok {
		return
	}

	var req transport.UpdateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	in := taskUC.UpdateInput{Title: req.Title, Description: req.Description}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		in.Status = &status
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateTask(stdCtx, pathID(ctx), in)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Assign a task to a user
// @Tags tasks
// @Router /api/v1/tasks/assign [put]
func (h *TaskHandler) AssignTask(ctx *fasthttp.RequestCtx) {
	if _, ok := h.identity(ctx); !ok {
		return
	}

	var req transport.AssignTaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	outcome, err := h.uc.AssignTask(stdCtx, req.TaskID, req.UserID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, outcome)
}

// @Summary Comment on a task
// @Tags tasks
// @Router /api/v1/tasks/{id}/comment [put]
func (h *TaskHandler) AddComment(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	var req transport.CommentRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.AddComment(stdCtx, caller, pathID(ctx), req.Text)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	if _, ok := h.identity(ctx); !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, pathID(ctx)); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary Caller's completed tasks per month over the last year
// @Tags tasks
// @Router /api/v1/tasks/completed-stats-monthly [get]
func (h *TaskHandler) MonthlyStats(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.uc.MonthlyStats(stdCtx, caller)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}

func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func parseListParams(args *fasthttp.Args) (query.Params, error) {
	params := query.Params{
		SortBy:      string(args.Peek("sortBy")),
		Sort:        string(args.Peek("sort")),
		DateCreated: string(args.Peek("dateCreated")),
		DateUpdated: string(args.Peek("dateUpdated")),
		User:        string(args.Peek("user")),
		Status:      string(args.Peek("status")),
		Search:      string(args.Peek("search")),
	}
	var err error
	if params.Page, err = optionalInt(args, "page"); err != nil {
		return params, err
	}
	if params.Size, err = optionalInt(args, "size"); err != nil {
		return params, err
	}
	return params, nil
}

func optionalInt(args *fasthttp.Args, key string) (*int, error) {
	if !args.Has(key) {
		return nil, nil
	}
	v, err := strconv.Atoi(string(args.Peek(key)))
	if err != nil {
		return nil, domain.NewError(domain.ErrCodeInvalid, key+" must be an integer")
	}
	return &v, nil
}
