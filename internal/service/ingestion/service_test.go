package ingestion

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/logger"
	"github.com/neuroshield/scan-api/pkg/metrics"

	"github.com/neuroshield/scan-api/internal/model"
)

// Registered once; promauto panics on duplicate registration.
var testMetrics = metrics.NewMetrics("test", "ingestion")

type fakeScanRepo struct {
	created     []*model.Scan
	results     map[uuid.UUID]*model.Result
	failCreates int
	notes       map[uuid.UUID]string
}

func (f *fakeScanRepo) Create(ctx context.Context, s *model.Scan) error {
	if f.failCreates > 0 {
		f.failCreates--
		return apperrors.Storage("insert failed", nil)
	}
	f.created = append(f.created, s)
	return nil
}

func (f *fakeScanRepo) Get(ctx context.Context, id uuid.UUID) (*model.Scan, error) {
	return nil, apperrors.NotFound("scan", nil)
}

func (f *fakeScanRepo) AttachResult(ctx context.Context, scanID uuid.UUID, r *model.Result) error {
	if f.results == nil {
		f.results = make(map[uuid.UUID]*model.Result)
	}
	f.results[scanID] = r
	return nil
}

func (f *fakeScanRepo) ScansFor(ctx context.Context, patientID uuid.UUID) ([]*model.Scan, error) {
	return nil, nil
}

func (f *fakeScanRepo) LatestScanFor(ctx context.Context, patientID uuid.UUID) (*model.Scan, error) {
	return nil, apperrors.NotFound("scan", nil)
}

func (f *fakeScanRepo) RecentScans(ctx context.Context, limit int) ([]*model.ScanWithPatient, error) {
	return nil, nil
}

func (f *fakeScanRepo) UpdateDoctorNotes(ctx context.Context, scanID uuid.UUID, notes string) error {
	if f.notes == nil {
		f.notes = make(map[uuid.UUID]string)
	}
	f.notes[scanID] = notes
	return nil
}

func (f *fakeScanRepo) DashboardStats(ctx context.Context, threshold float64) (*model.DashboardStats, error) {
	return &model.DashboardStats{}, nil
}

type fakePatientRepo struct {
	patient *model.Patient
}

func (f *fakePatientRepo) Create(ctx context.Context, p *model.Patient) error { return nil }

func (f *fakePatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if f.patient != nil && f.patient.ID == id {
		return f.patient, nil
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (f *fakePatientRepo) List(ctx context.Context) ([]*model.Patient, error) { return nil, nil }

func (f *fakePatientRepo) Search(ctx context.Context, q string, limit int) ([]*model.Patient, error) {
	return nil, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, msg string) error { return nil }

type fakeBlobStore struct {
	saved     map[string][]byte
	deleted   []string
	failSaves int
}

func (f *fakeBlobStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if f.failSaves > 0 {
		f.failSaves--
		return "", apperrors.Storage("disk full", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	key := uuid.New().String() + ".png"
	f.saved[key] = data
	return key, nil
}

func (f *fakeBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.saved[key]
	if !ok {
		return nil, apperrors.NotFound("image", nil)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

type fakePredictor struct {
	probability float64
	err         error
	calls       int
}

func (f *fakePredictor) Predict(ctx context.Context, imageKey string, image io.Reader) (*model.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	riskLevel := model.RiskLevelFor(f.probability)
	return &model.Result{
		AnalysisResult:    riskLevel + " Risk",
		StrokeProbability: f.probability,
		ModelConfidence:   92,
		Recommendations:   model.RecommendationFor(riskLevel),
	}, nil
}

type fakeNotifier struct {
	alerts int
}

func (f *fakeNotifier) HighRiskAlert(ctx context.Context, to, patientName string, result *model.Result) error {
	f.alerts++
	return nil
}

type testDeps struct {
	scans     *fakeScanRepo
	patients  *fakePatientRepo
	outbox    *fakeOutboxRepo
	blobs     *fakeBlobStore
	predictor *fakePredictor
	notifier  *fakeNotifier
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()

	deps := &testDeps{
		scans: &fakeScanRepo{},
		patients: &fakePatientRepo{patient: &model.Patient{
			Base:     model.Base{ID: uuid.New()},
			FullName: "Alice Smith",
			Age:      61,
		}},
		outbox:    &fakeOutboxRepo{},
		blobs:     &fakeBlobStore{},
		predictor: &fakePredictor{probability: 20},
		notifier:  &fakeNotifier{},
	}

	svc := NewService(
		deps.scans,
		deps.patients,
		deps.outbox,
		deps.blobs,
		deps.predictor,
		deps.notifier,
		testMetrics,
		logger.NewLogger(nil),
		time.Second,
	)
	return svc, deps
}

func uploadRequest(patientID uuid.UUID, n int) *UploadRequest {
	req := &UploadRequest{
		PatientID: patientID,
		ScanDate:  time.Now(),
		ScanType:  "CT",
	}
	for i := 0; i < n; i++ {
		req.Images = append(req.Images, Image{
			FileName: fmt.Sprintf("scan_%d.png", i),
			Reader:   strings.NewReader("imagebytes"),
		})
	}
	return req
}

func doctor() *model.Identity {
	return &model.Identity{UserID: uuid.New(), Email: "doc@example.com", Role: model.RoleDoctor}
}

func TestUploadRequiresDoctor(t *testing.T) {
	svc, deps := newTestService(t)

	ident := &model.Identity{UserID: uuid.New(), Role: model.RolePatient}
	_, err := svc.Upload(context.Background(), ident, uploadRequest(deps.patients.patient.ID, 1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestUploadRequiresImages(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 0))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestUploadUnknownPatient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), doctor(), uploadRequest(uuid.New(), 1))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestUploadAllImagesSucceed(t *testing.T) {
	svc, deps := newTestService(t)

	resp, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 3))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Outcomes, 3)
	for _, o := range resp.Outcomes {
		require.NotNil(t, o.ScanID)
		assert.Equal(t, model.PredictionOK, o.PredictionStatus)
		require.NotNil(t, o.Result)
	}
	assert.Len(t, deps.scans.created, 3)
	assert.Len(t, deps.scans.results, 3)
}

func TestUploadPartialFailure(t *testing.T) {
	svc, deps := newTestService(t)
	deps.blobs.failSaves = 1

	resp, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 3))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Outcomes, 3)
	assert.Nil(t, resp.Outcomes[0].ScanID)
	assert.NotEmpty(t, resp.Outcomes[0].Error)
	assert.NotNil(t, resp.Outcomes[1].ScanID)
	assert.NotNil(t, resp.Outcomes[2].ScanID)
	assert.Len(t, deps.scans.created, 2)
}

func TestUploadAllImagesFail(t *testing.T) {
	svc, deps := newTestService(t)
	deps.blobs.failSaves = 2

	resp, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 2))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.Outcomes, 2)
}

func TestUploadScanPersistsWhenPredictionFails(t *testing.T) {
	svc, deps := newTestService(t)
	deps.predictor.err = apperrors.Prediction("model unreachable", nil)

	resp, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 1))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Outcomes, 1)
	assert.NotNil(t, resp.Outcomes[0].ScanID)
	assert.Equal(t, model.PredictionFailed, resp.Outcomes[0].PredictionStatus)
	assert.Nil(t, resp.Outcomes[0].Result)
	assert.Len(t, deps.scans.created, 1)
	assert.Empty(t, deps.scans.results)
}

func TestUploadBlobDeletedWhenRecordFails(t *testing.T) {
	svc, deps := newTestService(t)
	deps.scans.failCreates = 1

	resp, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 1))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Len(t, deps.blobs.deleted, 1)
	assert.Empty(t, deps.blobs.saved)
}

func TestUploadHighRiskTriggersAlert(t *testing.T) {
	svc, deps := newTestService(t)
	deps.predictor.probability = 85

	resp, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 1))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 1, deps.notifier.alerts)
}

func TestUploadLowRiskNoAlert(t *testing.T) {
	svc, deps := newTestService(t)
	deps.predictor.probability = 20

	_, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 1))
	require.NoError(t, err)

	assert.Equal(t, 0, deps.notifier.alerts)
}

func TestUploadQueuesOutboxEvents(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.Upload(context.Background(), doctor(), uploadRequest(deps.patients.patient.ID, 1))
	require.NoError(t, err)

	require.Len(t, deps.outbox.events, 2)
	assert.Equal(t, model.EventScanIngested, deps.outbox.events[0].EventType)
	assert.Equal(t, model.EventResultAttached, deps.outbox.events[1].EventType)
}

func TestUploadCanceledContext(t *testing.T) {
	svc, deps := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := svc.Upload(ctx, doctor(), uploadRequest(deps.patients.patient.ID, 2))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.Outcomes, 2)
	for _, o := range resp.Outcomes {
		assert.Nil(t, o.ScanID)
		assert.NotEmpty(t, o.Error)
	}
	assert.Empty(t, deps.scans.created)
}

func TestUpdateDoctorNotes(t *testing.T) {
	svc, deps := newTestService(t)
	scanID := uuid.New()

	err := svc.UpdateDoctorNotes(context.Background(), doctor(), scanID, "follow up in 3 months")
	require.NoError(t, err)
	assert.Equal(t, "follow up in 3 months", deps.scans.notes[scanID])
}

func TestUpdateDoctorNotesRequiresDoctor(t *testing.T) {
	svc, _ := newTestService(t)

	ident := &model.Identity{UserID: uuid.New(), Role: model.RoleAdmin}
	err := svc.UpdateDoctorNotes(context.Background(), ident, uuid.New(), "notes")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}
