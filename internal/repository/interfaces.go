package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/neuroshield/scan-api/internal/model"
)

// PatientRepository persists patient demographic records.
type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	// List returns every patient in insertion order.
	List(ctx context.Context) ([]*model.Patient, error)
	Search(ctx context.Context, query string, limit int) ([]*model.Patient, error)
}

// ScanRepository persists scans and their attached results. A scan can never
// reference a missing patient, and a result can never reference a missing
// scan; both are enforced here, not left to callers.
type ScanRepository interface {
	Create(ctx context.Context, scan *model.Scan) error
	Get(ctx context.Context, id uuid.UUID) (*model.Scan, error)
	// AttachResult upserts: at most one result per scan, latest wins.
	AttachResult(ctx context.Context, scanID uuid.UUID, result *model.Result) error
	// ScansFor returns a patient's scans, scan_date descending, later
	// insertions first on equal dates.
	ScansFor(ctx context.Context, patientID uuid.UUID) ([]*model.Scan, error)
	LatestScanFor(ctx context.Context, patientID uuid.UUID) (*model.Scan, error)
	RecentScans(ctx context.Context, limit int) ([]*model.ScanWithPatient, error)
	UpdateDoctorNotes(ctx context.Context, scanID uuid.UUID, notes string) error
	DashboardStats(ctx context.Context, highRiskThreshold float64) (*model.DashboardStats, error)
}

// UserRepository persists login identities.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// OutboxRepository queues domain events for the outbox processor.
type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}
