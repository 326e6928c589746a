package handler

import (
	"net/http"

	"valdi_backend/internal/meetings/domain"
	"valdi_backend/internal/meetings/service"
	"valdi_backend/internal/meetings/transport"
	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for meetings and disputes
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new meetings handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func actorOf(identity httpkit.Identity) service.Actor {
	return service.Actor{UserID: identity.UserID(), Roles: identity.Roles()}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// bindJSON binds and validates a request body, writing the 400 itself on failure.
func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

// Create handles POST /api/v1/meetings
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateMeetingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	m, err := h.svc.CreateMeeting(c.Request.Context(), identity.UserID(), service.CreateMeetingInput{
		CampaignID:             uuid.MustParse(req.CampaignID),
		ContactName:            req.ContactName,
		ContactEmail:           req.ContactEmail,
		ContactPhone:           req.ContactPhone,
		MeetingDate:            req.MeetingDate,
		Notes:                  req.Notes,
		QualificationChecklist: req.QualificationChecklist,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToMeetingResponse(m))
}

// Get handles GET /api/v1/meetings/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	m, err := h.svc.GetMeeting(c.Request.Context(), actorOf(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToMeetingResponse(m))
}

// History handles GET /api/v1/meetings/:id/history
func (h *Handler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	entries, err := h.svc.ListMeetingHistory(c.Request.Context(), actorOf(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToHistoryResponse(entries))
}

// ListDisputes handles GET /api/v1/meetings/:id/disputes
func (h *Handler) ListDisputes(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	disputes, err := h.svc.ListDisputes(c.Request.Context(), actorOf(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, transport.ToDisputeResponse(d))
	}
	httpkit.OK(c, out)
}

// Review handles POST /api/v1/meetings/:id/review
func (h *Handler) Review(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.SubmitReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	in := service.ReviewInput{
		Decision:           domain.ReviewDecision(req.ReviewDecision),
		Notes:              req.ReviewNotes,
		QualificationScore: req.QualificationScore,
		QualityScore:       req.QualityScore,
	}
	if req.CallRecordingID != nil {
		recordingID := uuid.MustParse(*req.CallRecordingID)
		in.CallRecordingID = &recordingID
	}

	res, err := h.svc.SubmitReview(c.Request.Context(), id, identity.UserID(), in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ReviewResponse{
		ReviewID: res.Review.ID,
		Applied:  res.Transition.Applied,
		Meeting:  transport.ToMeetingResponse(res.Meeting),
	})
}

// Approve handles POST /api/v1/meetings/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.SubmitApprovalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	m, err := h.svc.SubmitApproval(c.Request.Context(), id, identity.UserID(), service.ApprovalInput{
		Approved:        *req.Approved,
		RejectionReason: req.RejectionReason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToMeetingResponse(m))
}

// CreateDispute handles POST /api/v1/disputes
func (h *Handler) CreateDispute(c *gin.Context) {
	var req transport.CreateDisputeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	d, err := h.svc.CreateDispute(c.Request.Context(), actorOf(identity), service.DisputeInput{
		MeetingID:   uuid.MustParse(req.MeetingID),
		DisputeType: req.DisputeType,
		Reason:      req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToDisputeResponse(d))
}

// ResolveDispute handles POST /api/v1/disputes/:id/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ResolveDisputeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	d, err := h.svc.ResolveDispute(c.Request.Context(), id, identity.UserID(), service.ResolveInput{
		Resolution: req.Resolution,
		Status:     req.Status,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDisputeResponse(d))
}
