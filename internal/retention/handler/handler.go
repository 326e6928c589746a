package handler

import (
	"context"
	"time"

	"valdi_backend/internal/retention/service"
	"valdi_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Runner executes a guarded retention run.
type Runner interface {
	Run(ctx context.Context) (service.RunResult, error)
}

type Handler struct {
	runner Runner
}

func New(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// CleanupResponse is returned by the cron trigger.
type CleanupResponse struct {
	Success   bool      `json:"success"`
	Deleted   int       `json:"deleted"`
	Errors    int       `json:"errors"`
	Skipped   bool      `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`
}

// Cleanup handles GET|POST /api/v1/cron/retention
func (h *Handler) Cleanup(c *gin.Context) {
	run, err := h.runner.Run(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, CleanupResponse{
		Success:   true,
		Deleted:   run.Deleted,
		Errors:    run.Errors,
		Skipped:   run.Skipped,
		Timestamp: time.Now().UTC(),
	})
}
