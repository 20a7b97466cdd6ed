package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/neuroshield/scan-api/internal/model"
)

// JWTService issues and validates session tokens. The patient id claim is
// what scopes the patient self-view; it is set at issue time from the user
// record and never from request input.
type JWTService interface {
	GenerateAccessToken(user *model.User) (string, error)
	ValidateToken(token string) (*model.Identity, error)
}

type Claims struct {
	Role      string `json:"role"`
	Email     string `json:"email"`
	PatientID string `json:"patient_id,omitempty"`
	jwt.RegisteredClaims
}

type jwtService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(secret string, expiry time.Duration) JWTService {
	return &jwtService{secret: []byte(secret), expiry: expiry}
}

func (s *jwtService) GenerateAccessToken(user *model.User) (string, error) {
	claims := Claims{
		Role:  string(user.Role),
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
		},
	}
	if user.PatientID != nil {
		claims.PatientID = user.PatientID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtService) ValidateToken(tokenString string) (*model.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	identity := &model.Identity{
		UserID: userID,
		Email:  claims.Email,
		Role:   model.Role(claims.Role),
	}
	if claims.PatientID != "" {
		pid, err := uuid.Parse(claims.PatientID)
		if err != nil {
			return nil, fmt.Errorf("invalid patient claim: %w", err)
		}
		identity.PatientID = &pid
	}
	return identity, nil
}
