package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeIntegrationStore struct {
	integration Integration
	found       bool
	touched     []uuid.UUID
}

func (f *fakeIntegrationStore) FindActive(_ context.Context, provider, accountKey string) (Integration, error) {
	if !f.found || f.integration.Provider != provider || f.integration.ProviderAccountID != accountKey {
		return Integration{}, apperr.NotFound("dialer integration not found")
	}
	return f.integration, nil
}

func (f *fakeIntegrationStore) TouchLastSync(_ context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeIntegrationStore) ResolveSDRID(context.Context, uuid.UUID) (uuid.UUID, error) {
	return f.integration.SDRID, nil
}

func (f *fakeIntegrationStore) ListBySDR(context.Context, uuid.UUID) ([]Integration, error) {
	return []Integration{f.integration}, nil
}

func (f *fakeIntegrationStore) Upsert(_ context.Context, p UpsertIntegrationParams) (Integration, error) {
	secret := p.WebhookSecret
	return Integration{ID: uuid.New(), SDRID: p.SDRID, Provider: p.Provider, ProviderAccountID: p.ProviderAccountID, WebhookSecret: &secret}, nil
}

func (f *fakeIntegrationStore) Deactivate(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeAcquirer struct {
	calls    int
	seen     map[string]uuid.UUID
	err      error
	lastCall CanonicalCallEvent
}

func (f *fakeAcquirer) Acquire(_ context.Context, event CanonicalCallEvent, _ Integration) (AcquiredRecording, error) {
	f.calls++
	f.lastCall = event
	if f.err != nil {
		return AcquiredRecording{}, f.err
	}
	if f.seen == nil {
		f.seen = map[string]uuid.UUID{}
	}
	key := event.Provider + ":" + event.CallID
	if id, ok := f.seen[key]; ok {
		return AcquiredRecording{ID: id, Created: false}, nil
	}
	id := uuid.New()
	f.seen[key] = id
	return AcquiredRecording{ID: id, Created: true}, nil
}

const endedPayload = `{"provider":"aircall","event_type":"call.ended","call_id":"c-1","call_data":{"id":"c-1","duration":42,"recording_url":"https://cdn/rec.mp3","user_id":"acct-1"}}`

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestService(secret *string) (*Service, *fakeIntegrationStore, *fakeAcquirer) {
	store := &fakeIntegrationStore{
		found: true,
		integration: Integration{
			ID:                uuid.New(),
			SDRID:             uuid.New(),
			Provider:          "aircall",
			ProviderAccountID: "acct-1",
			WebhookSecret:     secret,
			IsActive:          true,
		},
	}
	acq := &fakeAcquirer{}
	return NewService(MustLoadCatalog(), store, acq, logger.New("test")), store, acq
}

func TestIngestVerifiesSignatureWhenSecretSet(t *testing.T) {
	secret := "s3cret"
	svc, store, acq := newTestService(&secret)

	_, err := svc.Ingest(context.Background(), []byte(endedPayload), "bad")
	if !apperr.HasCode(err, apperr.CodeAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if acq.calls != 0 {
		t.Fatal("acquisition must not run for an unauthenticated delivery")
	}

	res, err := svc.Ingest(context.Background(), []byte(endedPayload), sign(endedPayload, secret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.RecordingID == nil || res.Duplicate {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(store.touched) != 1 {
		t.Fatalf("expected last sync to be updated once, got %d", len(store.touched))
	}
}

func TestIngestMissingSignatureIsRejected(t *testing.T) {
	secret := "s3cret"
	svc, _, _ := newTestService(&secret)
	_, err := svc.Ingest(context.Background(), []byte(endedPayload), "")
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("expected 401-class error, got %v", err)
	}
}

func TestIngestWithoutSecretSkipsVerification(t *testing.T) {
	svc, _, acq := newTestService(nil)
	if _, err := svc.Ingest(context.Background(), []byte(endedPayload), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acq.calls != 1 {
		t.Fatalf("expected one acquisition, got %d", acq.calls)
	}
}

func TestIngestUnknownIntegrationIsNotFound(t *testing.T) {
	svc, store, _ := newTestService(nil)
	store.found = false
	_, err := svc.Ingest(context.Background(), []byte(endedPayload), "")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIngestSkipsNonActionableEvents(t *testing.T) {
	svc, _, acq := newTestService(nil)
	cases := []string{
		`{"provider":"aircall","event_type":"call.started","call_data":{"id":"c-2","recording_url":"https://x","user_id":"acct-1"}}`,
		`{"provider":"aircall","event_type":"call.ended","call_data":{"id":"c-3","user_id":"acct-1"}}`,
	}
	for _, body := range cases {
		res, err := svc.Ingest(context.Background(), []byte(body), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Success || res.Message != msgEventSkipped {
			t.Fatalf("expected skipped acknowledgement, got %+v", res)
		}
	}
	if acq.calls != 0 {
		t.Fatalf("expected no acquisition, got %d", acq.calls)
	}
}

func TestIngestReplayIsAcknowledgedAsDuplicate(t *testing.T) {
	svc, _, _ := newTestService(nil)
	first, err := svc.Ingest(context.Background(), []byte(endedPayload), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Ingest(context.Background(), []byte(endedPayload), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first.RecordingID != *second.RecordingID || !second.Duplicate {
		t.Fatalf("expected replay to return the same recording, got %+v / %+v", first, second)
	}
}

func TestHandleDialerWebhookMapsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		acqErr  error
		body    string
		want    int
		noLeaks string
	}{
		{"accepted", nil, endedPayload, http.StatusOK, ""},
		{"acquisition failure", apperr.Acquisition("download", errors.New("dial tcp 10.1.2.3:443: timeout")), endedPayload, http.StatusInternalServerError, "10.1.2.3"},
		{"no active campaign", apperr.NoActiveCampaign("no active campaign found"), endedPayload, http.StatusBadRequest, ""},
		{"bad provider", nil, `{"provider":"skype","call_data":{"id":"1"}}`, http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, acq := newTestService(nil)
			acq.err = tc.acqErr
			h := NewHandler(svc, validator.New(), "https://app.example")

			engine := gin.New()
			engine.POST("/webhooks/dialer", h.HandleDialerWebhook)

			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/dialer", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
			if tc.noLeaks != "" && strings.Contains(rec.Body.String(), tc.noLeaks) {
				t.Fatalf("response leaked internal detail: %s", rec.Body.String())
			}
		})
	}
}

func TestSaveIntegrationGeneratesSecret(t *testing.T) {
	svc, _, _ := newTestService(nil)
	in, err := svc.SaveIntegration(context.Background(), uuid.New(), UpsertIntegrationParams{Provider: "Kixie", ProviderAccountID: "+4681234567"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.WebhookSecret == nil || len(*in.WebhookSecret) != 64 {
		t.Fatalf("expected a 32-byte hex secret, got %v", in.WebhookSecret)
	}
	if in.Provider != "kixie" {
		t.Fatalf("expected normalized provider, got %s", in.Provider)
	}
}
