package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/logger"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/repository"
)

// Service owns patient record creation and lookup. Demographic validation
// happens here, at the store boundary, not in handlers.
type Service struct {
	repo     repository.PatientRepository
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(repo repository.PatientRepository, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		log:      log,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return nil, apperrors.Validation(first.Field(), fmt.Sprintf("invalid value for %s", first.Field()))
		}
		return nil, apperrors.Validation("", "invalid patient data")
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, apperrors.Validation("date_of_birth", "date_of_birth must be YYYY-MM-DD")
	}

	patient := &model.Patient{
		Base:        model.Base{ID: uuid.New()},
		FullName:    req.FullName,
		Age:         req.Age,
		Gender:      req.Gender,
		DateOfBirth: dob,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.log.Info("patient created", "patient_id", patient.ID.String())
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	return s.repo.List(ctx)
}

func (s *Service) SearchPatients(ctx context.Context, query string, limit int) ([]*model.Patient, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.repo.Search(ctx, query, limit)
}
