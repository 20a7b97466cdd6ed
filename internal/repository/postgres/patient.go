package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/repository"
)

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, full_name, age, gender, date_of_birth, phone_number, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	err := r.db.QueryRowContext(ctx, query,
		patient.ID,
		patient.FullName,
		patient.Age,
		patient.Gender,
		patient.DateOfBirth,
		patient.PhoneNumber,
		patient.Address,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Scan(&patient.Seq)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT * FROM patients ORDER BY seq ASC`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Search(ctx context.Context, q string, limit int) ([]*model.Patient, error) {
	query := `
		SELECT * FROM patients
		WHERE full_name ILIKE '%' || $1 || '%' OR id::text ILIKE '%' || $1 || '%'
		ORDER BY seq ASC
		LIMIT $2
	`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, q, limit); err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}
