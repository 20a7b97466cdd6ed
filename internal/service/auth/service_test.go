package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroshield/scan-api/pkg/auth"
	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/security"

	"github.com/neuroshield/scan-api/internal/model"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *model.User) error {
	if f.users == nil {
		f.users = make(map[string]*model.User)
	}
	if _, ok := f.users[u.Email]; ok {
		return apperrors.Validation("email", "email already registered")
	}
	f.users[u.Email] = u
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return u, nil
}

type fakePatientRepo struct {
	known map[uuid.UUID]bool
}

func (f *fakePatientRepo) Create(ctx context.Context, p *model.Patient) error { return nil }

func (f *fakePatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if f.known[id] {
		return &model.Patient{Base: model.Base{ID: id}}, nil
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (f *fakePatientRepo) List(ctx context.Context) ([]*model.Patient, error) { return nil, nil }

func (f *fakePatientRepo) Search(ctx context.Context, q string, limit int) ([]*model.Patient, error) {
	return nil, nil
}

func newTestService(patients *fakePatientRepo) (*Service, *fakeUserRepo) {
	users := &fakeUserRepo{}
	jwt := auth.NewJWTService("test-secret", time.Hour)
	svc := NewService(users, patients, security.NewBcryptHasher(4), jwt)
	return svc, users
}

func TestRegisterDoctor(t *testing.T) {
	svc, users := newTestService(&fakePatientRepo{})

	user, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "doc@example.com",
		Password: "correcthorse",
		FullName: "Dr. Example",
		Role:     "doctor",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleDoctor, user.Role)
	assert.Nil(t, user.PatientID)
	assert.NotEqual(t, "correcthorse", user.PasswordHash)
	assert.Len(t, users.users, 1)
}

func TestRegisterInvalidRole(t *testing.T) {
	svc, _ := newTestService(&fakePatientRepo{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "x@example.com",
		Password: "correcthorse",
		FullName: "X",
		Role:     "superuser",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestRegisterPatientRequiresBinding(t *testing.T) {
	svc, _ := newTestService(&fakePatientRepo{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "p@example.com",
		Password: "correcthorse",
		FullName: "P",
		Role:     "patient",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestRegisterPatientUnknownRecord(t *testing.T) {
	svc, _ := newTestService(&fakePatientRepo{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:     "p@example.com",
		Password:  "correcthorse",
		FullName:  "P",
		Role:      "patient",
		PatientID: uuid.New().String(),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestRegisterPatientBindsRecord(t *testing.T) {
	pid := uuid.New()
	svc, _ := newTestService(&fakePatientRepo{known: map[uuid.UUID]bool{pid: true}})

	user, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:     "p@example.com",
		Password:  "correcthorse",
		FullName:  "P",
		Role:      "patient",
		PatientID: pid.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, user.PatientID)
	assert.Equal(t, pid, *user.PatientID)
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	pid := uuid.New()
	svc, _ := newTestService(&fakePatientRepo{known: map[uuid.UUID]bool{pid: true}})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:     "p@example.com",
		Password:  "correcthorse",
		FullName:  "P",
		Role:      "patient",
		PatientID: pid.String(),
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "p@example.com",
		Password: "correcthorse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.RolePatient, resp.Role)

	ident, err := auth.NewJWTService("test-secret", time.Hour).ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, ident.Role)
	require.NotNil(t, ident.PatientID)
	assert.Equal(t, pid, *ident.PatientID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(&fakePatientRepo{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "doc@example.com",
		Password: "correcthorse",
		FullName: "Doc",
		Role:     "doctor",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &model.LoginRequest{
		Email:    "doc@example.com",
		Password: "wrongpassword",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestService(&fakePatientRepo{})

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}
