package model

import (
	"time"

	"github.com/google/uuid"
)

// Scan is one uploaded CT image plus its clinical metadata. Immutable once
// stored except DoctorNotes. Seq orders scans with equal ScanDate: the
// later-inserted scan wins "latest".
type Scan struct {
	Base
	Seq         int64     `db:"seq" json:"-"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	ScanDate    time.Time `db:"scan_date" json:"scan_date"`
	ScanType    string    `db:"scan_type" json:"scan_type"`
	ImagePath   string    `db:"image_path" json:"image_path"`
	Notes       string    `db:"notes" json:"notes"`
	DoctorNotes string    `db:"doctor_notes" json:"doctor_notes"`

	// Result is nil while the prediction collaborator has not responded.
	Result *Result `db:"-" json:"result,omitempty"`
}

// Result is the prediction outcome attached to a scan, at most one per scan,
// latest write wins. StrokeProbability and ModelConfidence are percentages
// in [0,100].
type Result struct {
	ScanID            uuid.UUID `db:"scan_id" json:"scan_id"`
	AnalysisResult    string    `db:"analysis_result" json:"analysis_result"`
	StrokeProbability float64   `db:"stroke_probability" json:"stroke_probability"`
	ModelConfidence   float64   `db:"model_confidence" json:"model_confidence"`
	Recommendations   string    `db:"recommendations" json:"recommendations"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// PredictionStatus reports, per ingested image, whether the prediction step
// completed. A scan persists even when its prediction does not.
type PredictionStatus string

const (
	PredictionOK      PredictionStatus = "ok"
	PredictionPending PredictionStatus = "pending"
	PredictionFailed  PredictionStatus = "failed"
)

// ScanWithPatient joins a scan with its owning patient's name, read in a
// single query so the pair reflects one snapshot.
type ScanWithPatient struct {
	Scan
	PatientName string `db:"patient_name" json:"patient_name"`
	PatientAge  int    `db:"patient_age" json:"patient_age"`
}

// UploadOutcome is the per-image result of an ingestion request. Images are
// processed independently; callers must not assume all-or-nothing.
type UploadOutcome struct {
	FileName         string           `json:"file_name"`
	ScanID           *uuid.UUID       `json:"scan_id,omitempty"`
	PredictionStatus PredictionStatus `json:"prediction_status,omitempty"`
	Result           *Result          `json:"result,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// UploadResponse enumerates every submitted image. Success is derived:
// true iff at least one image was fully ingested.
type UploadResponse struct {
	Success  bool             `json:"success"`
	Outcomes []*UploadOutcome `json:"outcomes"`
}

// PatientScanView is the patient self-view row; index 0 is the latest scan.
type PatientScanView struct {
	ScanID            uuid.UUID `json:"scan_id"`
	ScanDate          time.Time `json:"scan_date"`
	ScanType          string    `json:"scan_type"`
	ImagePath         string    `json:"image_path"`
	AnalysisResult    string    `json:"analysis_result"`
	StrokeProbability *float64  `json:"stroke_probability,omitempty"`
	ModelConfidence   *float64  `json:"model_confidence,omitempty"`
	Recommendations   string    `json:"recommendations"`
	DoctorNotes       string    `json:"doctor_notes"`
	CreatedAt         time.Time `json:"created_at"`
}

// DashboardStats are the doctor dashboard aggregates. AppointmentsToday is
// reported as zero until an appointment model exists.
type DashboardStats struct {
	TotalPatients     int `db:"total_patients" json:"total_patients"`
	TotalScans        int `db:"total_scans" json:"total_scans"`
	HighRiskPatients  int `db:"high_risk_patients" json:"high_risk_patients"`
	AppointmentsToday int `db:"appointments_today" json:"appointments_today"`
}

// RecentPatient is a dashboard row: a patient with their latest scan.
type RecentPatient struct {
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	LastVisit time.Time `json:"last_visit"`
	RiskLevel string    `json:"risk_level"`
}

// RecentScan is a dashboard row: a scan joined with its patient's name.
type RecentScan struct {
	ScanID      uuid.UUID `json:"scan_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	ScanDate    time.Time `json:"scan_date"`
	RiskLevel   string    `json:"risk_level"`
}

// DoctorDashboard is the full doctor dashboard payload.
type DoctorDashboard struct {
	Stats          *DashboardStats  `json:"stats"`
	RecentPatients []*RecentPatient `json:"recent_patients"`
	RecentScans    []*RecentScan    `json:"recent_scans"`
}

type UpdateScanNotesRequest struct {
	DoctorNotes string `json:"doctor_notes" binding:"required"`
}
