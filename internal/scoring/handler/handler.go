package handler

import (
	"net/http"

	"valdi_backend/internal/scoring/service"
	"valdi_backend/internal/scoring/transport"
	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for qualification scoring
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new scoring handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Score handles POST /api/v1/admin/scoring
func (h *Handler) Score(c *gin.Context) {
	var req transport.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	if req.CallRecordingID == nil && req.MeetingID == nil {
		httpkit.Error(c, http.StatusBadRequest, "call_recording_id or meeting_id is required", nil)
		return
	}

	var (
		result service.Result
		err    error
	)
	if req.CallRecordingID != nil {
		result, err = h.svc.ScoreRecording(c.Request.Context(), uuid.MustParse(*req.CallRecordingID))
	} else {
		result, err = h.svc.ScoreMeeting(c.Request.Context(), uuid.MustParse(*req.MeetingID))
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ScoreResponse{ScoreID: result.ScoreID, Score: result.Score})
}
