package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/events"
	"valdi_backend/internal/recordings/repository"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu            sync.Mutex
	rows          map[string]repository.CallRecording
	campaign      repository.ActiveCampaign
	campaignErr   error
	insertErr     error
	precheckMiss  bool
	referenced    bool
	referencedSeq []bool
	access        repository.RecordingAccess
	findCalls     int
	insertedCount int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rows:     map[string]repository.CallRecording{},
		campaign: repository.ActiveCampaign{CampaignID: uuid.New(), CompanyID: uuid.New()},
	}
}

func rowKey(provider, callID string) string { return provider + "|" + callID }

func (f *fakeRepo) FindByProviderCall(_ context.Context, provider, callID string) (*repository.CallRecording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.precheckMiss && f.findCalls == 1 {
		return nil, nil
	}
	rec, ok := f.rows[rowKey(provider, callID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeRepo) ResolveActiveCampaign(context.Context, uuid.UUID) (repository.ActiveCampaign, error) {
	return f.campaign, f.campaignErr
}

func (f *fakeRepo) ApprovedCampaign(_ context.Context, _, campaignID uuid.UUID) (repository.ActiveCampaign, error) {
	if campaignID != f.campaign.CampaignID {
		return repository.ActiveCampaign{}, apperr.Forbidden("campaign not approved")
	}
	return f.campaign, nil
}

func (f *fakeRepo) MeetingOwnedBy(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

func (f *fakeRepo) ResolveSDRID(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (f *fakeRepo) InsertIfAbsent(_ context.Context, rec repository.CallRecording) (repository.CallRecording, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return repository.CallRecording{}, false, f.insertErr
	}
	if rec.DialerProvider != nil && rec.DialerCallID != nil {
		key := rowKey(*rec.DialerProvider, *rec.DialerCallID)
		if _, exists := f.rows[key]; exists {
			return repository.CallRecording{}, false, nil
		}
		rec.ID = uuid.New()
		f.rows[key] = rec
	} else {
		rec.ID = uuid.New()
	}
	f.insertedCount++
	return rec, true, nil
}

func (f *fakeRepo) StoragePathReferenced(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.referencedSeq) > 0 {
		next := f.referencedSeq[0]
		f.referencedSeq = f.referencedSeq[1:]
		return next, nil
	}
	return f.referenced, nil
}

func (f *fakeRepo) GetAccess(context.Context, uuid.UUID) (repository.RecordingAccess, error) {
	return f.access, nil
}

func (f *fakeRepo) GetExpirationStats(context.Context, time.Time, time.Duration) (repository.ExpirationStats, error) {
	return repository.ExpirationStats{Total: 3, ExpiringSoon: 1, Expired: 1}, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (f *fakeStorage) PutObject(_ context.Context, _, fileKey, _ string, reader io.Reader, _ int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[fileKey] = data
	return nil
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, _, fileKey string, ttl time.Duration) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://storage.test/" + fileKey, FileKey: fileKey, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (f *fakeStorage) DownloadFile(_ context.Context, _, fileKey string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.objects[fileKey])), nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, _, fileKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, fileKey)
	f.deleted = append(f.deleted, fileKey)
	return nil
}

func (f *fakeStorage) DeleteObjects(ctx context.Context, bucket string, fileKeys []string) (map[string]error, error) {
	for _, key := range fileKeys {
		_ = f.DeleteObject(ctx, bucket, key)
	}
	return map[string]error{}, nil
}

func (f *fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }

type fakeDownloader struct {
	calls int32
	fails int32
	err   error
	data  []byte
}

func (f *fakeDownloader) Download(context.Context, DownloadRequest) ([]byte, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if n <= f.fails {
		return nil, errors.New("connection reset")
	}
	return f.data, nil
}

type fakeLeads struct {
	leadID   uuid.UUID
	err      error
	attempts []OutreachAttempt
}

func (f *fakeLeads) FindOrCreate(context.Context, uuid.UUID, uuid.UUID, ContactInfo) (uuid.UUID, error) {
	return f.leadID, f.err
}

func (f *fakeLeads) RecordOutreachAttempt(_ context.Context, attempt OutreachAttempt) error {
	f.attempts = append(f.attempts, attempt)
	return nil
}

type testConfig struct{}

func (testConfig) GetRecordingMaxBytes() int64          { return 1 << 20 }
func (testConfig) GetUploadTimeout() time.Duration      { return time.Second }
func (testConfig) GetAcquisitionMaxAttempts() int       { return 3 }
func (testConfig) GetAcquisitionBackoff() time.Duration { return time.Millisecond }
func (testConfig) GetRecordingURLTTL() time.Duration    { return 15 * time.Minute }
func (testConfig) GetRetentionPeriod() time.Duration    { return 30 * 24 * time.Hour }

type harness struct {
	svc        *Service
	repo       *fakeRepo
	storage    *fakeStorage
	downloader *fakeDownloader
	leads      *fakeLeads
	bus        *events.InMemoryBus
}

func newHarness() *harness {
	log := logger.New("development")
	h := &harness{
		repo:       newFakeRepo(),
		storage:    newFakeStorage(),
		downloader: &fakeDownloader{data: []byte("ID3-audio")},
		leads:      &fakeLeads{leadID: uuid.New()},
		bus:        events.NewInMemoryBus(log),
	}
	h.svc = New(h.repo, h.storage, "call-recordings", h.downloader, h.leads, h.bus, testConfig{}, log)
	return h
}

func sampleCall() (DialerCall, DialerIntegration) {
	call := DialerCall{
		Provider:        "aircall",
		CallID:          "call-123",
		RecordingURL:    "https://recordings.test/call-123.mp3",
		DurationSeconds: 95,
		To:              "+46701234567",
		Contact:         ContactInfo{Name: "Anna Svensson", Phone: "+46701234567"},
	}
	integration := DialerIntegration{ID: uuid.New(), SDRID: uuid.New(), AccessToken: "tok", BearerDownload: true}
	return call, integration
}

func TestAcquireStoresAndPublishes(t *testing.T) {
	h := newHarness()
	var imported int32
	h.bus.Subscribe(events.CallRecordingImported{}.EventName(), events.HandlerFunc(func(context.Context, events.Event) error {
		atomic.AddInt32(&imported, 1)
		return nil
	}))

	call, integration := sampleCall()
	res, err := h.svc.Acquire(context.Background(), call, integration)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.bus.Wait()

	if !res.Created {
		t.Fatalf("expected a new recording")
	}
	key := StorageKey(integration.SDRID, h.repo.campaign.CampaignID, "aircall", "call-123")
	if res.Recording.StoragePath == nil || *res.Recording.StoragePath != key {
		t.Fatalf("expected storage path %q, got %v", key, res.Recording.StoragePath)
	}
	if res.Recording.FileName != "call-123.mp3" || res.Recording.MimeType != "audio/mpeg" {
		t.Fatalf("unexpected file metadata: %+v", res.Recording)
	}
	if res.Recording.LeadID == nil || *res.Recording.LeadID != h.leads.leadID {
		t.Fatalf("expected correlated lead on recording")
	}
	if len(h.leads.attempts) != 1 || h.leads.attempts[0].CallRecordingID != res.Recording.ID {
		t.Fatalf("expected one outreach attempt for the recording, got %+v", h.leads.attempts)
	}
	if atomic.LoadInt32(&imported) != 1 {
		t.Fatalf("expected one import event, got %d", imported)
	}
	if _, ok := h.storage.objects[key]; !ok {
		t.Fatalf("expected object at %q", key)
	}
}

func TestAcquireIsIdempotentForRedelivery(t *testing.T) {
	h := newHarness()
	call, integration := sampleCall()

	first, err := h.svc.Acquire(context.Background(), call, integration)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	second, err := h.svc.Acquire(context.Background(), call, integration)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	if second.Created || second.Recording.ID != first.Recording.ID {
		t.Fatalf("expected redelivery to return the existing row")
	}
	if h.downloader.calls != 1 {
		t.Fatalf("expected a single download, got %d", h.downloader.calls)
	}
	if h.repo.insertedCount != 1 {
		t.Fatalf("expected one row, got %d", h.repo.insertedCount)
	}
}

func TestAcquireConcurrentDeliveriesConverge(t *testing.T) {
	h := newHarness()
	call, integration := sampleCall()

	var wg sync.WaitGroup
	results := make([]AcquireResult, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Acquire(context.Background(), call, integration)
		}(i)
	}
	wg.Wait()

	created := 0
	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("delivery %d failed: %v", i, errs[i])
		}
		if res.Created {
			created++
		}
		if res.Recording.ID != results[0].Recording.ID {
			t.Fatalf("deliveries returned different rows")
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one creating delivery, got %d", created)
	}
	if len(h.storage.deleted) != 0 {
		t.Fatalf("losing deliveries must not delete the shared object, deleted %v", h.storage.deleted)
	}
	if len(h.storage.objects) != 1 {
		t.Fatalf("expected one stored object, got %d", len(h.storage.objects))
	}
}

func TestAcquireInsertConflictSkipsCompensation(t *testing.T) {
	h := newHarness()
	call, integration := sampleCall()
	existing, err := h.svc.Acquire(context.Background(), call, integration)
	if err != nil {
		t.Fatalf("seed delivery failed: %v", err)
	}

	h.repo.findCalls = 0
	h.repo.precheckMiss = true
	res, err := h.svc.Acquire(context.Background(), call, integration)
	if err != nil {
		t.Fatalf("expected conflict to be absorbed, got %v", err)
	}
	if res.Created || res.Recording.ID != existing.Recording.ID {
		t.Fatalf("expected existing row after conflict")
	}
	if len(h.storage.deleted) != 0 {
		t.Fatalf("conflict must not trigger a compensating delete")
	}
}

func TestAcquireInsertFailureCompensates(t *testing.T) {
	h := newHarness()
	h.repo.insertErr = errors.New("connection lost")
	call, integration := sampleCall()

	_, err := h.svc.Acquire(context.Background(), call, integration)
	if !apperr.HasCode(err, apperr.CodeAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Op != StageInsert {
		t.Fatalf("expected insert stage, got %+v", appErr)
	}
	if len(h.storage.deleted) != 1 || len(h.storage.objects) != 0 {
		t.Fatalf("expected the uploaded object to be removed, deleted=%v", h.storage.deleted)
	}
}

func TestAcquireInsertFailureKeepsReferencedObject(t *testing.T) {
	h := newHarness()
	h.repo.insertErr = errors.New("connection lost")
	h.repo.referenced = true
	call, integration := sampleCall()

	if _, err := h.svc.Acquire(context.Background(), call, integration); err == nil {
		t.Fatalf("expected error")
	}
	if len(h.storage.deleted) != 0 {
		t.Fatalf("referenced object must survive, deleted=%v", h.storage.deleted)
	}
}

func TestAcquireInsertFailureRestoresObjectClaimedMeanwhile(t *testing.T) {
	h := newHarness()
	h.repo.insertErr = errors.New("connection lost")
	// A redelivery commits its row for the same key between the check and the delete.
	h.repo.referencedSeq = []bool{false, true}
	call, integration := sampleCall()

	if _, err := h.svc.Acquire(context.Background(), call, integration); err == nil {
		t.Fatalf("expected error")
	}
	key := StorageKey(integration.SDRID, h.repo.campaign.CampaignID, call.Provider, call.CallID)
	if len(h.storage.deleted) != 1 {
		t.Fatalf("expected one compensating delete, got %v", h.storage.deleted)
	}
	if got, ok := h.storage.objects[key]; !ok || string(got) != "ID3-audio" {
		t.Fatalf("expected the object to be restored for the live row, got %q (present=%v)", got, ok)
	}
}

func TestAcquireRetriesTransientDownloadFailures(t *testing.T) {
	h := newHarness()
	h.downloader.fails = 2
	call, integration := sampleCall()

	if _, err := h.svc.Acquire(context.Background(), call, integration); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if h.downloader.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", h.downloader.calls)
	}
}

func TestAcquireDownloadExhaustionPublishesFailure(t *testing.T) {
	h := newHarness()
	h.downloader.fails = 10
	var failed int32
	h.bus.Subscribe(events.AcquisitionFailed{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if ev, ok := e.(events.AcquisitionFailed); ok && ev.Stage == StageDownload {
			atomic.AddInt32(&failed, 1)
		}
		return nil
	}))
	call, integration := sampleCall()

	_, err := h.svc.Acquire(context.Background(), call, integration)
	h.bus.Wait()
	if !apperr.HasCode(err, apperr.CodeAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if h.repo.insertedCount != 0 {
		t.Fatalf("no row may be written after a failed download")
	}
	if atomic.LoadInt32(&failed) != 1 {
		t.Fatalf("expected one failure event")
	}
}

func TestAcquireNoActiveCampaign(t *testing.T) {
	h := newHarness()
	h.repo.campaignErr = apperr.NoActiveCampaign("no active campaign")
	call, integration := sampleCall()

	_, err := h.svc.Acquire(context.Background(), call, integration)
	if !apperr.HasCode(err, apperr.CodeNoActiveCampaign) {
		t.Fatalf("expected no_active_campaign, got %v", err)
	}
	if h.downloader.calls != 0 {
		t.Fatalf("download must not start without a campaign")
	}
}

func TestAcquireContinuesWhenLeadCorrelationFails(t *testing.T) {
	h := newHarness()
	h.leads.err = errors.New("leads table locked")
	call, integration := sampleCall()

	res, err := h.svc.Acquire(context.Background(), call, integration)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Recording.LeadID != nil {
		t.Fatalf("expected no lead on recording")
	}
	if len(h.leads.attempts) != 0 {
		t.Fatalf("no outreach attempt without a lead")
	}
}

func TestStorageKeyIsDeterministic(t *testing.T) {
	sdr, campaign := uuid.New(), uuid.New()
	a := StorageKey(sdr, campaign, "twilio", "CA12/../x")
	b := StorageKey(sdr, campaign, "twilio", "CA12/../x")
	if a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}
	want := sdr.String() + "/" + campaign.String() + "/twilio-CA12_.._x.mp3"
	if a != want {
		t.Fatalf("expected %q, got %q", want, a)
	}
}

func TestAudioURLAccess(t *testing.T) {
	sdrUser, companyUser := uuid.New(), uuid.New()
	path := "a/b/c.mp3"

	cases := []struct {
		name    string
		userID  uuid.UUID
		admin   bool
		path    *string
		wantErr apperr.Kind
	}{
		{"sdr owner", sdrUser, false, &path, apperr.KindUnknown},
		{"company owner", companyUser, false, &path, apperr.KindUnknown},
		{"admin", uuid.New(), true, &path, apperr.KindUnknown},
		{"stranger", uuid.New(), false, &path, apperr.KindForbidden},
		{"deleted media", sdrUser, false, nil, apperr.KindGone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.repo.access = repository.RecordingAccess{
				Recording:     repository.CallRecording{ID: uuid.New(), StoragePath: tc.path},
				SDRUserID:     sdrUser,
				CompanyUserID: companyUser,
			}
			url, err := h.svc.AudioURL(context.Background(), tc.userID, tc.admin, uuid.New())
			if tc.wantErr == apperr.KindUnknown {
				if err != nil || url == nil || url.FileKey != path {
					t.Fatalf("expected signed url, got %v, %v", url, err)
				}
				return
			}
			if !apperr.Is(err, tc.wantErr) {
				t.Fatalf("expected kind %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Upload(context.Background(), uuid.New(), UploadInput{
		CampaignID:  h.repo.campaign.CampaignID,
		FileName:    "notes.pdf",
		ContentType: "application/pdf",
		Size:        10,
		Reader:      bytes.NewReader([]byte("0123456789")),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadStoresRecording(t *testing.T) {
	h := newHarness()
	rec, err := h.svc.Upload(context.Background(), uuid.New(), UploadInput{
		CampaignID:  h.repo.campaign.CampaignID,
		FileName:    "demo.mp3",
		ContentType: "audio/mpeg",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.StoragePath == nil || len(h.storage.objects) != 1 {
		t.Fatalf("expected stored object and path")
	}
	if rec.AutoDeletedAt.Before(time.Now().Add(29 * 24 * time.Hour)) {
		t.Fatalf("expected retention deadline ~30 days out, got %v", rec.AutoDeletedAt)
	}
}

func TestHTTPDownloaderStatusHandling(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		terminal bool
		wantErr  bool
	}{
		{"ok", http.StatusOK, "audio", false, false},
		{"not found", http.StatusNotFound, "", true, true},
		{"rate limited", http.StatusTooManyRequests, "", false, true},
		{"server error", http.StatusBadGateway, "", false, true},
		{"too large", http.StatusOK, "0123456789abcdef", true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth, gotUA string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotUA = r.Header.Get("User-Agent")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			d := NewHTTPDownloader(server.Client(), 8, time.Second)
			_, err := d.Download(context.Background(), DownloadRequest{URL: server.URL, BearerToken: "tok"})
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			var terminal terminalError
			if errors.As(err, &terminal) != tc.terminal {
				t.Fatalf("expected terminal=%v, got %v", tc.terminal, err)
			}
			if gotAuth != "Bearer tok" || gotUA != userAgent {
				t.Fatalf("unexpected request headers: auth=%q ua=%q", gotAuth, gotUA)
			}
		})
	}
}

func TestWithRetryStopsOnTerminal(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return terminalError{errTooLarge}
	})
	if !errors.Is(err, errTooLarge) || calls != 1 {
		t.Fatalf("expected one call ending in errTooLarge, got %d calls, %v", calls, err)
	}
}
