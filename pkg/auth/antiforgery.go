package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid anti-forgery token")
	ErrExpiredToken     = errors.New("anti-forgery token has expired")
	ErrInvalidSignature = errors.New("invalid anti-forgery token signature")
	ErrMissingToken     = errors.New("missing anti-forgery token")
	ErrSubjectMismatch  = errors.New("anti-forgery token was issued for another subject")
)

// DefaultFieldName is the form field the anti-forgery token is posted in.
const DefaultFieldName = "idsrv.xsrf"

// AntiForgeryClaims are the claims carried by an anti-forgery token
type AntiForgeryClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// AntiForgeryConfig holds anti-forgery token configuration
type AntiForgeryConfig struct {
	SecretKey string        // HS256 signing key
	Issuer    string        // Token issuer, checked on validation
	FieldName string        // Form field name
	TTL       time.Duration // Token lifetime
}

// AntiForgery issues and validates HS256 anti-forgery tokens.
type AntiForgery struct {
	secretKey []byte
	issuer    string
	fieldName string
	ttl       time.Duration
	now       func() time.Time
}

// NewAntiForgery creates a new anti-forgery token service
func NewAntiForgery(config AntiForgeryConfig) (*AntiForgery, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key required for HS256")
	}
	if config.TTL <= 0 {
		return nil, fmt.Errorf("invalid anti-forgery token ttl: %s", config.TTL)
	}

	fieldName := config.FieldName
	if fieldName == "" {
		fieldName = DefaultFieldName
	}

	return &AntiForgery{
		secretKey: []byte(config.SecretKey),
		issuer:    config.Issuer,
		fieldName: fieldName,
		ttl:       config.TTL,
		now:       time.Now,
	}, nil
}

// FieldName returns the form field the token is expected in
func (a *AntiForgery) FieldName() string {
	return a.fieldName
}

// Generate issues a token bound to subject, usually a session or client id.
func (a *AntiForgery) Generate(subject, purpose string) (string, error) {
	now := a.now()
	claims := &AntiForgeryClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// Validate checks the token signature, expiry, issuer, subject and purpose.
func (a *AntiForgery) Validate(tokenString, subject, purpose string) (*AntiForgeryClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &AntiForgeryClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return a.secretKey, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AntiForgeryClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidToken)
	}
	if claims.Subject != subject {
		return nil, ErrSubjectMismatch
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: invalid purpose", ErrInvalidToken)
	}

	return claims, nil
}
