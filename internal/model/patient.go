package model

import (
	"time"
)

// Patient is a demographic record. Created by admins only, never deleted.
// Seq is a server-side insertion counter used for stable directory ordering
// and for breaking scan-date ties.
type Patient struct {
	Base
	Seq         int64     `db:"seq" json:"-"`
	FullName    string    `db:"full_name" json:"full_name"`
	Age         int       `db:"age" json:"age"`
	Gender      string    `db:"gender" json:"gender"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Address     string    `db:"address" json:"address"`
}

type CreatePatientRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	Age         int    `json:"age" validate:"required,gt=0,lte=150"`
	Gender      string `json:"gender" validate:"required,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164|numeric"`
	Address     string `json:"address"`
}

// DirectoryEntry is the admin view of a patient: demographics only,
// no scan data.
type DirectoryEntry struct {
	PatientID string `db:"id" json:"patient_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Age       int    `db:"age" json:"age"`
	Gender    string `db:"gender" json:"gender"`
}

// DoctorPatientEntry is the doctor's list view: demographics plus the risk
// level of the latest scan, or "Unknown" when the patient has none.
type DoctorPatientEntry struct {
	PatientID   string `json:"patient_id"`
	FullName    string `json:"full_name"`
	Age         int    `json:"age"`
	PhoneNumber string `json:"phone_number"`
	RiskLevel   string `json:"risk_level"`
}
