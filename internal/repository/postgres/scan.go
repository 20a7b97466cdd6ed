package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/repository"
)

const pgForeignKeyViolation = "23503"

type scanRepository struct {
	db *sqlx.DB
}

func NewScanRepository(db *sqlx.DB) repository.ScanRepository {
	return &scanRepository{db: db}
}

// scanRow carries a scan joined with its (possibly absent) result.
type scanRow struct {
	model.Scan
	ResAnalysis        sql.NullString  `db:"r_analysis_result"`
	ResProbability     sql.NullFloat64 `db:"r_stroke_probability"`
	ResConfidence      sql.NullFloat64 `db:"r_model_confidence"`
	ResRecommendations sql.NullString  `db:"r_recommendations"`
	ResCreatedAt       sql.NullTime    `db:"r_created_at"`
}

func (row *scanRow) toScan() *model.Scan {
	s := row.Scan
	if row.ResAnalysis.Valid {
		s.Result = &model.Result{
			ScanID:            s.ID,
			AnalysisResult:    row.ResAnalysis.String,
			StrokeProbability: row.ResProbability.Float64,
			ModelConfidence:   row.ResConfidence.Float64,
			Recommendations:   row.ResRecommendations.String,
			CreatedAt:         row.ResCreatedAt.Time,
		}
	}
	return &s
}

const scanColumns = `
	s.id, s.seq, s.patient_id, s.doctor_id, s.scan_date, s.scan_type,
	s.image_path, s.notes, s.doctor_notes, s.created_at, s.updated_at,
	r.analysis_result AS r_analysis_result,
	r.stroke_probability AS r_stroke_probability,
	r.model_confidence AS r_model_confidence,
	r.recommendations AS r_recommendations,
	r.created_at AS r_created_at
`

func (r *scanRepository) Create(ctx context.Context, scan *model.Scan) error {
	query := `
		INSERT INTO ct_scans (id, patient_id, doctor_id, scan_date, scan_type, image_path, notes, doctor_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`
	scan.CreatedAt = time.Now()
	scan.UpdatedAt = scan.CreatedAt

	err := r.db.QueryRowContext(ctx, query,
		scan.ID,
		scan.PatientID,
		scan.DoctorID,
		scan.ScanDate,
		scan.ScanType,
		scan.ImagePath,
		scan.Notes,
		scan.DoctorNotes,
		scan.CreatedAt,
		scan.UpdatedAt,
	).Scan(&scan.Seq)
	if err != nil {
		// The patients FK is the orphan guard: a scan row cannot be
		// created for a patient id that does not exist, even racing a
		// concurrent lookup.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
			return apperrors.NotFound("patient", err)
		}
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

func (r *scanRepository) Get(ctx context.Context, id uuid.UUID) (*model.Scan, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM ct_scans s
		LEFT JOIN scan_results r ON r.scan_id = s.id
		WHERE s.id = $1
	`
	var row scanRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("scan", err)
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return row.toScan(), nil
}

func (r *scanRepository) AttachResult(ctx context.Context, scanID uuid.UUID, result *model.Result) error {
	query := `
		INSERT INTO scan_results (scan_id, analysis_result, stroke_probability, model_confidence, recommendations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scan_id) DO UPDATE SET
			analysis_result = EXCLUDED.analysis_result,
			stroke_probability = EXCLUDED.stroke_probability,
			model_confidence = EXCLUDED.model_confidence,
			recommendations = EXCLUDED.recommendations,
			created_at = EXCLUDED.created_at
	`
	result.ScanID = scanID
	result.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		result.ScanID,
		result.AnalysisResult,
		result.StrokeProbability,
		result.ModelConfidence,
		result.Recommendations,
		result.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
			return apperrors.NotFound("scan", err)
		}
		return fmt.Errorf("failed to attach result: %w", err)
	}
	return nil
}

func (r *scanRepository) ScansFor(ctx context.Context, patientID uuid.UUID) ([]*model.Scan, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM ct_scans s
		LEFT JOIN scan_results r ON r.scan_id = s.id
		WHERE s.patient_id = $1
		ORDER BY s.scan_date DESC, s.seq DESC
	`
	var rows []scanRow
	if err := r.db.SelectContext(ctx, &rows, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	scans := make([]*model.Scan, 0, len(rows))
	for i := range rows {
		scans = append(scans, rows[i].toScan())
	}
	return scans, nil
}

func (r *scanRepository) LatestScanFor(ctx context.Context, patientID uuid.UUID) (*model.Scan, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM ct_scans s
		LEFT JOIN scan_results r ON r.scan_id = s.id
		WHERE s.patient_id = $1
		ORDER BY s.scan_date DESC, s.seq DESC
		LIMIT 1
	`
	var row scanRow
	if err := r.db.GetContext(ctx, &row, query, patientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("scan", err)
		}
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return row.toScan(), nil
}

func (r *scanRepository) RecentScans(ctx context.Context, limit int) ([]*model.ScanWithPatient, error) {
	// Single query so each scan and its patient name come from one snapshot.
	query := `
		SELECT ` + scanColumns + `, p.full_name AS patient_name, p.age AS patient_age
		FROM ct_scans s
		JOIN patients p ON p.id = s.patient_id
		LEFT JOIN scan_results r ON r.scan_id = s.id
		ORDER BY s.created_at DESC, s.seq DESC
		LIMIT $1
	`
	var rows []struct {
		scanRow
		PatientName string `db:"patient_name"`
		PatientAge  int    `db:"patient_age"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent scans: %w", err)
	}

	scans := make([]*model.ScanWithPatient, 0, len(rows))
	for i := range rows {
		scans = append(scans, &model.ScanWithPatient{
			Scan:        *rows[i].toScan(),
			PatientName: rows[i].PatientName,
			PatientAge:  rows[i].PatientAge,
		})
	}
	return scans, nil
}

func (r *scanRepository) UpdateDoctorNotes(ctx context.Context, scanID uuid.UUID, notes string) error {
	query := `UPDATE ct_scans SET doctor_notes = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, notes, time.Now(), scanID)
	if err != nil {
		return fmt.Errorf("failed to update doctor notes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update doctor notes: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("scan", sql.ErrNoRows)
	}
	return nil
}

func (r *scanRepository) DashboardStats(ctx context.Context, highRiskThreshold float64) (*model.DashboardStats, error) {
	// High-risk counts patients by their latest scan only, so a patient who
	// improved since an old high-risk scan is not counted.
	query := `
		SELECT
			(SELECT COUNT(*) FROM patients) AS total_patients,
			(SELECT COUNT(*) FROM ct_scans) AS total_scans,
			(SELECT COUNT(*) FROM (
				SELECT DISTINCT ON (s.patient_id) r.stroke_probability
				FROM ct_scans s
				JOIN scan_results r ON r.scan_id = s.id
				ORDER BY s.patient_id, s.scan_date DESC, s.seq DESC
			) latest WHERE latest.stroke_probability >= $1) AS high_risk_patients,
			0 AS appointments_today
	`
	var stats model.DashboardStats
	if err := r.db.GetContext(ctx, &stats, query, highRiskThreshold); err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}
	return &stats, nil
}
