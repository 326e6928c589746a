package handler

import (
	"net/http"

	"valdi_backend/internal/recordings/service"
	"valdi_backend/internal/recordings/transport"
	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid recording id"
)

// Handler handles HTTP requests for call recordings
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new recordings handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Upload handles POST /api/v1/recordings (multipart: file, campaignId, meetingId)
func (h *Handler) Upload(c *gin.Context) {
	var req transport.UploadRecordingRequest
	if err := c.ShouldBind(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "failed to open upload", nil)
		return
	}
	defer file.Close()

	in := service.UploadInput{
		CampaignID:  uuid.MustParse(req.CampaignID),
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	}
	if req.MeetingID != "" {
		meetingID := uuid.MustParse(req.MeetingID)
		in.MeetingID = &meetingID
	}

	rec, err := h.svc.Upload(c.Request.Context(), identity.UserID(), in)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToRecordingResponse(rec))
}

// GetAudio handles GET /api/v1/recordings/:id/audio. ?redirect=1 answers with a 302.
func (h *Handler) GetAudio(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	url, err := h.svc.AudioURL(c.Request.Context(), identity.UserID(), identity.IsAdmin(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, url.URL)
		return
	}
	httpkit.OK(c, transport.AudioURLResponse{URL: url.URL, ExpiresAt: url.ExpiresAt})
}

// ExpirationStats handles GET /api/v1/admin/recordings/expiration-stats
func (h *Handler) ExpirationStats(c *gin.Context) {
	stats, err := h.svc.ExpirationStats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ExpirationStatsResponse{
		Total:        stats.Total,
		ExpiringSoon: stats.ExpiringSoon,
		Expired:      stats.Expired,
	})
}
