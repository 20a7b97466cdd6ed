package model

import (
	"github.com/google/uuid"
)

// Role is the fixed set of user roles. There is no tenancy or grant model:
// routes are gated on role alone.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// User is a login identity. Patient users carry the id of the patient
// record they are allowed to read; doctors and admins do not.
type User struct {
	Base
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         Role       `db:"role" json:"role"`
	PatientID    *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
}

// Identity is the verified caller context threaded through every gateway
// call. It is derived from the session token, never from request input.
type Identity struct {
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	// For patient users: the patient record this login is bound to.
	PatientID string `json:"patient_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	Role      Role       `json:"role"`
	UserID    uuid.UUID  `json:"user_id"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}
