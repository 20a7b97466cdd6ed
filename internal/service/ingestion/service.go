package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/logger"
	"github.com/neuroshield/scan-api/pkg/metrics"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/notifier"
	"github.com/neuroshield/scan-api/internal/predictor"
	"github.com/neuroshield/scan-api/internal/repository"
	"github.com/neuroshield/scan-api/internal/storage"
)

// Image is one uploaded CT image within a request.
type Image struct {
	FileName string
	Reader   io.Reader
}

type UploadRequest struct {
	PatientID   uuid.UUID
	ScanDate    time.Time
	ScanType    string
	Notes       string
	DoctorNotes string
	Images      []Image
}

// Service turns a doctor's multi-file upload into persisted scan+result
// pairs. Images are processed independently: one image's failure never rolls
// back or blocks another's, and the response enumerates every outcome.
type Service struct {
	scans     repository.ScanRepository
	patients  repository.PatientRepository
	outbox    repository.OutboxRepository
	blobs     storage.BlobStore
	predictor predictor.Client
	notifier  notifier.Notifier
	metrics   *metrics.Metrics
	log       *logger.Logger

	predictionTimeout time.Duration
}

func NewService(
	scans repository.ScanRepository,
	patients repository.PatientRepository,
	outbox repository.OutboxRepository,
	blobs storage.BlobStore,
	predictorClient predictor.Client,
	alertNotifier notifier.Notifier,
	m *metrics.Metrics,
	log *logger.Logger,
	predictionTimeout time.Duration,
) *Service {
	if predictionTimeout <= 0 {
		predictionTimeout = 30 * time.Second
	}
	return &Service{
		scans:             scans,
		patients:          patients,
		outbox:            outbox,
		blobs:             blobs,
		predictor:         predictorClient,
		notifier:          alertNotifier,
		metrics:           m,
		log:               log,
		predictionTimeout: predictionTimeout,
	}
}

func (s *Service) Upload(ctx context.Context, ident *model.Identity, req *UploadRequest) (*model.UploadResponse, error) {
	if ident.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("only doctors can upload scans")
	}
	if len(req.Images) == 0 {
		return nil, apperrors.Validation("ct_images", "at least one image is required")
	}

	// Fail the whole request early when the patient does not exist; the
	// scans FK still guards against the patient disappearing mid-request.
	patient, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	resp := &model.UploadResponse{
		Outcomes: make([]*model.UploadOutcome, 0, len(req.Images)),
	}

	for _, img := range req.Images {
		if ctx.Err() != nil {
			// Aborted request: already-persisted scans stay put, the
			// rest are reported as not processed.
			resp.Outcomes = append(resp.Outcomes, &model.UploadOutcome{
				FileName: img.FileName,
				Error:    "request canceled before processing",
			})
			continue
		}
		outcome := s.processImage(ctx, ident, patient, req, img)
		if outcome.ScanID != nil {
			resp.Success = true
		}
		resp.Outcomes = append(resp.Outcomes, outcome)
	}

	return resp, nil
}

// processImage runs the store -> record -> predict -> attach sequence for a
// single image. Storage failure skips the image; prediction failure leaves
// the scan persisted without a result.
func (s *Service) processImage(ctx context.Context, ident *model.Identity, patient *model.Patient, req *UploadRequest, img Image) *model.UploadOutcome {
	timer := prometheus.NewTimer(s.metrics.IngestionLatency)
	defer timer.ObserveDuration()

	outcome := &model.UploadOutcome{FileName: img.FileName}

	key, err := s.blobs.Save(ctx, img.FileName, img.Reader)
	if err != nil {
		s.metrics.ImagesSkipped.Inc()
		s.log.Error(err, "image storage failed", "file", img.FileName)
		outcome.Error = err.Error()
		return outcome
	}

	scan := &model.Scan{
		Base:        model.Base{ID: uuid.New()},
		PatientID:   patient.ID,
		DoctorID:    ident.UserID,
		ScanDate:    req.ScanDate,
		ScanType:    req.ScanType,
		ImagePath:   key,
		Notes:       req.Notes,
		DoctorNotes: req.DoctorNotes,
	}
	if err := s.scans.Create(ctx, scan); err != nil {
		s.metrics.ImagesSkipped.Inc()
		s.log.Error(err, "scan record creation failed", "file", img.FileName)
		s.blobs.Delete(ctx, key)
		outcome.Error = err.Error()
		return outcome
	}

	s.metrics.ImagesIngested.Inc()
	outcome.ScanID = &scan.ID
	s.queueEvent(ctx, model.EventScanIngested, scan)

	outcome.PredictionStatus, outcome.Result = s.predict(ctx, ident, patient, scan, key)
	return outcome
}

// predict calls the model collaborator for an already-persisted scan.
func (s *Service) predict(ctx context.Context, ident *model.Identity, patient *model.Patient, scan *model.Scan, key string) (model.PredictionStatus, *model.Result) {
	image, err := s.blobs.Open(ctx, key)
	if err != nil {
		s.metrics.PredictionResults.WithLabelValues("failed").Inc()
		s.log.Error(err, "failed to reopen stored image", "scan_id", scan.ID.String())
		return model.PredictionFailed, nil
	}
	defer image.Close()

	pctx, cancel := context.WithTimeout(ctx, s.predictionTimeout)
	defer cancel()

	result, err := s.predictor.Predict(pctx, key, image)
	if err != nil {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			s.metrics.PredictionResults.WithLabelValues("pending").Inc()
			s.log.Warn("prediction timed out, scan persisted without result", "scan_id", scan.ID.String())
			return model.PredictionPending, nil
		}
		s.metrics.PredictionResults.WithLabelValues("failed").Inc()
		s.log.Error(err, "prediction failed, scan persisted without result", "scan_id", scan.ID.String())
		return model.PredictionFailed, nil
	}

	if err := s.scans.AttachResult(ctx, scan.ID, result); err != nil {
		s.metrics.PredictionResults.WithLabelValues("failed").Inc()
		s.log.Error(err, "failed to attach result", "scan_id", scan.ID.String())
		return model.PredictionFailed, nil
	}

	s.metrics.PredictionResults.WithLabelValues("ok").Inc()
	s.queueEvent(ctx, model.EventResultAttached, result)

	if model.RiskLevelFor(result.StrokeProbability) == model.RiskHigh {
		// Best effort; the notifier logs its own failures.
		s.notifier.HighRiskAlert(ctx, ident.Email, patient.FullName, result)
	}

	return model.PredictionOK, result
}

// UpdateDoctorNotes lets a doctor revise their notes on a persisted scan.
func (s *Service) UpdateDoctorNotes(ctx context.Context, ident *model.Identity, scanID uuid.UUID, notes string) error {
	if ident.Role != model.RoleDoctor {
		return apperrors.Forbidden("only doctors can update scan notes")
	}
	if err := s.scans.UpdateDoctorNotes(ctx, scanID, notes); err != nil {
		return err
	}
	s.log.Info("doctor notes updated", "scan_id", scanID.String())
	return nil
}

func (s *Service) queueEvent(ctx context.Context, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error(err, "failed to marshal outbox payload", "event", eventType)
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}); err != nil {
		s.log.Error(err, "failed to queue outbox event", "event", eventType)
	}
}
