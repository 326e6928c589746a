package handler

import (
	"context"
	"net/http"
	"strconv"

	"valdi_backend/internal/audit/repository"
	"valdi_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Reader lists audit entries.
type Reader interface {
	ListEntries(ctx context.Context, filter repository.ListFilter) ([]repository.Entry, error)
}

type Handler struct {
	reader Reader
}

func New(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// List handles GET /api/v1/admin/audit-logs
func (h *Handler) List(c *gin.Context) {
	filter := repository.ListFilter{
		ResourceType: c.Query("resourceType"),
		Limit:        defaultLimit,
	}

	for param, dst := range map[string]**uuid.UUID{
		"resourceId": &filter.ResourceID,
		"userId":     &filter.UserID,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid "+param, nil)
			return
		}
		*dst = &id
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		filter.Limit = min(limit, maxLimit)
	}

	entries, err := h.reader.ListEntries(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": entries})
}
