package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/history"
	"github.com/yungbote/artforge-backend/internal/http/response"
	"github.com/yungbote/artforge-backend/internal/orchestrator"
	"github.com/yungbote/artforge-backend/internal/platform/apierr"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

// Generations is the control surface the handler drives. *orchestrator.Runner satisfies it.
type Generations interface {
	Start(ctx context.Context) (uuid.UUID, error)
	Stop(taskID uuid.UUID) error
	Status() orchestrator.StatusView
	Task(ctx context.Context, id uuid.UUID) (*types.GenerationTask, error)
	History(ctx context.Context) ([]*types.GenerationTask, error)
	ClearHistory(ctx context.Context) error
	Collection(ctx context.Context) (history.CollectionStatus, error)
}

type GenerationHandler struct {
	log  *logger.Logger
	runs Generations
}

func NewGenerationHandler(runs Generations, log *logger.Logger) *GenerationHandler {
	return &GenerationHandler{runs: runs, log: log.With("handler", "GenerationHandler")}
}

// POST /api/generations
func (h *GenerationHandler) Start(c *gin.Context) {
	id, err := h.runs.Start(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, mapRunError(err))
		return
	}
	response.RespondAccepted(c, gin.H{"taskId": id, "status": types.TaskPending})
}

// POST /api/generations/:id/stop
func (h *GenerationHandler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_task_id", err))
		return
	}
	if err := h.runs.Stop(id); err != nil {
		response.RespondAPIError(c, mapRunError(err))
		return
	}
	response.RespondAccepted(c, gin.H{"taskId": id, "stopRequested": true})
}

// GET /api/generations/status
func (h *GenerationHandler) Status(c *gin.Context) {
	response.RespondOK(c, h.runs.Status())
}

// GET /api/generations/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_task_id", err))
		return
	}
	task, err := h.runs.Task(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "task_lookup_failed", err)
		return
	}
	if task == nil {
		response.RespondAPIError(c, apierr.NotFound("task_not_found", orchestrator.ErrTaskNotFound))
		return
	}
	response.RespondOK(c, gin.H{"task": task})
}

// GET /api/generations/history
func (h *GenerationHandler) History(c *gin.Context) {
	tasks, err := h.runs.History(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": tasks, "count": len(tasks)})
}

// DELETE /api/generations/history
func (h *GenerationHandler) ClearHistory(c *gin.Context) {
	if err := h.runs.ClearHistory(c.Request.Context()); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "clear_history_failed", err)
		return
	}
	h.log.Info("History cleared via API")
	c.Status(http.StatusNoContent)
}

// GET /api/collection
func (h *GenerationHandler) Collection(c *gin.Context) {
	st, err := h.runs.Collection(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "collection_failed", err)
		return
	}
	response.RespondOK(c, st)
}

func mapRunError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrTaskInProgress):
		return apierr.Conflict("task_in_progress", err)
	case errors.Is(err, orchestrator.ErrTaskNotStoppable):
		return apierr.Conflict("task_not_stoppable", err)
	case errors.Is(err, orchestrator.ErrTaskNotFound):
		return apierr.NotFound("task_not_found", err)
	default:
		return apierr.Internal(err)
	}
}
