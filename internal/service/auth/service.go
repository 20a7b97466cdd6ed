package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neuroshield/scan-api/pkg/auth"
	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/security"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/repository"
)

type Service struct {
	users    repository.UserRepository
	patients repository.PatientRepository
	hasher   security.PasswordHasher
	jwt      auth.JWTService
}

func NewService(users repository.UserRepository, patients repository.PatientRepository, hasher security.PasswordHasher, jwt auth.JWTService) *Service {
	return &Service{
		users:    users,
		patients: patients,
		hasher:   hasher,
		jwt:      jwt,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	role := model.Role(req.Role)
	if !role.Valid() {
		return nil, apperrors.Validation("role", "role must be admin, doctor or patient")
	}

	user := &model.User{
		Base:     model.Base{ID: uuid.New()},
		Email:    req.Email,
		FullName: req.FullName,
		Role:     role,
	}

	// A patient login must be bound to an existing patient record; that
	// binding is the only thing the self-view trusts.
	if role == model.RolePatient {
		if req.PatientID == "" {
			return nil, apperrors.Validation("patient_id", "patient_id is required for patient users")
		}
		pid, err := uuid.Parse(req.PatientID)
		if err != nil {
			return nil, apperrors.Validation("patient_id", "invalid patient_id")
		}
		if _, err := s.patients.Get(ctx, pid); err != nil {
			return nil, err
		}
		user.PatientID = &pid
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Validation("password", err.Error())
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		// Do not leak whether the email exists.
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.LoginResponse{
		Token:     token,
		Role:      user.Role,
		UserID:    user.ID,
		PatientID: user.PatientID,
	}, nil
}
