package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"valdi_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestValidation(t *testing.T) {
	h := New(nil, validator.New())
	engine := gin.New()
	engine.POST("/disputes", h.CreateDispute)
	engine.POST("/meetings/:id/approve", h.Approve)
	engine.POST("/meetings/:id/review", h.Review)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"dispute reason too short", "/disputes", `{"meeting_id":"6f1c2f43-5f7e-4b53-9a55-1e1d8a7c3b10","dispute_type":"quality","reason":"bad"}`},
		{"dispute unknown type", "/disputes", `{"meeting_id":"6f1c2f43-5f7e-4b53-9a55-1e1d8a7c3b10","dispute_type":"refund","reason":"long enough reason"}`},
		{"approval without flag", "/meetings/6f1c2f43-5f7e-4b53-9a55-1e1d8a7c3b10/approve", `{"rejection_reason":"no"}`},
		{"approval bad id", "/meetings/not-a-uuid/approve", `{"approved":true}`},
		{"review unknown decision", "/meetings/6f1c2f43-5f7e-4b53-9a55-1e1d8a7c3b10/review", `{"review_decision":"maybe"}`},
		{"malformed json", "/disputes", `{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
