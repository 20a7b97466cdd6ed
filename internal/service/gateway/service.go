package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/logger"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/repository"
)

const (
	recentScanLimit    = 5
	recentPatientLimit = 10

	statsCacheKey = "dashboard_stats"
	statsCacheTTL = 30 * time.Second
)

// Service is the role-aware read layer. Every call takes the verified caller
// identity and authorizes before touching the store; no call mutates state.
type Service struct {
	patients repository.PatientRepository
	scans    repository.ScanRepository
	cache    *gocache.Cache
	log      *logger.Logger
}

func NewService(patients repository.PatientRepository, scans repository.ScanRepository, log *logger.Logger) *Service {
	return &Service{
		patients: patients,
		scans:    scans,
		cache:    gocache.New(statsCacheTTL, 2*statsCacheTTL),
		log:      log,
	}
}

// AdminDirectory lists every patient with demographics only. No scan data.
func (s *Service) AdminDirectory(ctx context.Context, ident *model.Identity) ([]*model.DirectoryEntry, error) {
	if ident.Role != model.RoleAdmin {
		return nil, apperrors.Forbidden("admin role required")
	}

	patients, err := s.patients.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*model.DirectoryEntry, 0, len(patients))
	for _, p := range patients {
		entries = append(entries, &model.DirectoryEntry{
			PatientID: p.ID.String(),
			FullName:  p.FullName,
			Age:       p.Age,
			Gender:    p.Gender,
		})
	}
	return entries, nil
}

// DoctorDashboard aggregates over the global patient population; there is no
// doctor-patient assignment relation yet.
func (s *Service) DoctorDashboard(ctx context.Context, ident *model.Identity) (*model.DoctorDashboard, error) {
	if ident.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("doctor role required")
	}

	stats, err := s.dashboardStats(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.scans.RecentScans(ctx, recentPatientLimit)
	if err != nil {
		return nil, err
	}

	recentScans := make([]*model.RecentScan, 0, recentScanLimit)
	recentPatients := make([]*model.RecentPatient, 0, len(recent))
	seen := make(map[uuid.UUID]bool)

	for _, sw := range recent {
		if len(recentScans) < recentScanLimit {
			recentScans = append(recentScans, &model.RecentScan{
				ScanID:      sw.ID,
				PatientID:   sw.PatientID,
				PatientName: sw.PatientName,
				ScanDate:    sw.ScanDate,
				RiskLevel:   riskLevelOf(sw.Result),
			})
		}
		// Rows arrive newest first, so the first occurrence of a patient
		// is their latest scan.
		if !seen[sw.PatientID] {
			seen[sw.PatientID] = true
			recentPatients = append(recentPatients, &model.RecentPatient{
				PatientID: sw.PatientID.String(),
				Name:      sw.PatientName,
				Age:       sw.PatientAge,
				LastVisit: sw.ScanDate,
				RiskLevel: riskLevelOf(sw.Result),
			})
		}
	}

	return &model.DoctorDashboard{
		Stats:          stats,
		RecentPatients: recentPatients,
		RecentScans:    recentScans,
	}, nil
}

// DoctorPatients lists all patients with the risk level of their latest scan.
func (s *Service) DoctorPatients(ctx context.Context, ident *model.Identity) ([]*model.DoctorPatientEntry, error) {
	if ident.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("doctor role required")
	}

	patients, err := s.patients.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*model.DoctorPatientEntry, 0, len(patients))
	for _, p := range patients {
		entry := &model.DoctorPatientEntry{
			PatientID:   p.ID.String(),
			FullName:    p.FullName,
			Age:         p.Age,
			PhoneNumber: p.PhoneNumber,
			RiskLevel:   model.RiskUnknown,
		}
		latest, err := s.scans.LatestScanFor(ctx, p.ID)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.ErrNotFound) {
				return nil, err
			}
		} else {
			entry.RiskLevel = riskLevelOf(latest.Result)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PatientScans is the patient self-view: only the authenticated patient's
// own scans, newest first. The patient id comes from the verified identity,
// never from request input.
func (s *Service) PatientScans(ctx context.Context, ident *model.Identity) ([]*model.PatientScanView, error) {
	patientID, err := s.selfPatientID(ident)
	if err != nil {
		return nil, err
	}

	scans, err := s.scans.ScansFor(ctx, patientID)
	if err != nil {
		return nil, err
	}

	views := make([]*model.PatientScanView, 0, len(scans))
	for _, scan := range scans {
		view := &model.PatientScanView{
			ScanID:      scan.ID,
			ScanDate:    scan.ScanDate,
			ScanType:    scan.ScanType,
			ImagePath:   scan.ImagePath,
			DoctorNotes: scan.DoctorNotes,
			CreatedAt:   scan.CreatedAt,
		}
		if scan.Result != nil {
			prob := scan.Result.StrokeProbability
			conf := scan.Result.ModelConfidence
			view.AnalysisResult = scan.Result.AnalysisResult
			view.StrokeProbability = &prob
			view.ModelConfidence = &conf
			view.Recommendations = scan.Result.Recommendations
		}
		views = append(views, view)
	}
	return views, nil
}

// PatientProfile returns the authenticated patient's own demographics.
func (s *Service) PatientProfile(ctx context.Context, ident *model.Identity) (*model.Patient, error) {
	patientID, err := s.selfPatientID(ident)
	if err != nil {
		return nil, err
	}
	return s.patients.Get(ctx, patientID)
}

func (s *Service) selfPatientID(ident *model.Identity) (uuid.UUID, error) {
	if ident.Role != model.RolePatient {
		return uuid.Nil, apperrors.Forbidden("patient role required")
	}
	if ident.PatientID == nil {
		return uuid.Nil, apperrors.Forbidden("no patient record bound to this account")
	}
	return *ident.PatientID, nil
}

func (s *Service) dashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	if cached, ok := s.cache.Get(statsCacheKey); ok {
		return cached.(*model.DashboardStats), nil
	}

	stats, err := s.scans.DashboardStats(ctx, model.HighRiskThreshold)
	if err != nil {
		return nil, err
	}

	s.cache.Set(statsCacheKey, stats, statsCacheTTL)
	return stats, nil
}

func riskLevelOf(result *model.Result) string {
	if result == nil {
		return model.RiskUnknown
	}
	return model.RiskLevelFor(result.StrokeProbability)
}
