package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ajali-app/backend/internal/apperror"
	"github.com/ajali-app/backend/internal/models"
)

// tokenTTL is the fixed validity window. The window is counted from issuance
// and is not refreshed by use.
const tokenTTL = 24 * time.Hour

type TokenService struct {
	DB     *gorm.DB
	Secret []byte
}

// Issue replaces any live token for the user with a fresh one. Delete and
// create run in one transaction; the unique constraint on user_id closes the
// race between two concurrent logins.
func (s *TokenService) Issue(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", apperror.NewInternal("could not create token", err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.APIToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.APIToken{Token: signed, UserID: userID, CreatedAt: now}).Error
	})
	if err != nil {
		return "", apperror.NewDatabase("could not store token", err)
	}

	return signed, nil
}

// Revoke deletes the matching token record. Revoking a token that is already
// gone is not an error.
func (s *TokenService) Revoke(userID, token string) error {
	if err := s.DB.Where("user_id = ? AND token = ?", userID, token).Delete(&models.APIToken{}).Error; err != nil {
		return apperror.NewDatabase("could not revoke token", err)
	}
	return nil
}

// Lookup returns the stored record for a token, or nil if there is none.
func (s *TokenService) Lookup(token string) (*models.APIToken, error) {
	var stored models.APIToken
	if err := s.DB.Where("token = ?", token).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.NewDatabase("could not look up token", err)
	}
	return &stored, nil
}

// Validate checks a bearer token and returns the owning user id. The stored
// row is authoritative: a token is live only while its record exists and its
// issuance is within the validity window. Both timestamps are normalized to
// UTC and truncated to whole seconds before comparison, so representation
// skew between the storage layer and the runtime clock cannot flip the
// result.
func (s *TokenService) Validate(token string) (string, error) {
	if token == "" {
		return "", apperror.NewAuth("Token is missing!")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", apperror.NewAuth("Token is invalid or expired!")
	}

	stored, err := s.Lookup(token)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", apperror.NewAuth("Token is invalid or expired!")
	}

	now := time.Now().UTC().Truncate(time.Second)
	issued := stored.CreatedAt.UTC().Truncate(time.Second)
	if now.Sub(issued) > tokenTTL {
		return "", apperror.NewAuth("Token is invalid or expired!")
	}

	return stored.UserID, nil
}
