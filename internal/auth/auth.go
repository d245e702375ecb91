package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cnsr/cta-inspection/internal/models"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrMissingSecret      = errors.New("jwt secret is required")
	ErrWeakPassword       = errors.New("password must be at least 8 characters long")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// Issuer is set on every access token and required when validating.
const Issuer = "cta-inspection"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// accessClaims is the signed payload. The user id travels as the subject.
type accessClaims struct {
	Email  string      `json:"email"`
	Name   string      `json:"name,omitempty"`
	Role   models.Role `json:"role"`
	Center string      `json:"centre,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and checks access tokens and passwords.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	now       func() time.Time
}

// NewService creates an authentication service signing with secret.
// A non-positive tokenExp defaults to 24 hours.
func NewService(secret string, tokenExp time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if tokenExp <= 0 {
		tokenExp = 24 * time.Hour
	}
	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  tokenExp,
		now:       time.Now,
	}, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken signs an access token carrying the user's role, display
// name and centre.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := accessClaims{
		Email:  user.Email,
		Name:   user.DisplayName(),
		Role:   user.Role,
		Center: user.Center,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExp)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// GenerateRefreshToken returns 32 random bytes, url-safe encoded.
func (s *Service) GenerateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// ValidateToken checks signature, issuer and expiry of a raw token and
// returns its identity. Tokens without a subject, an email or a known role
// are invalid.
func (s *Service) ValidateToken(token string) (*models.Claims, error) {
	var ac accessClaims
	_, err := jwt.ParseWithClaims(token, &ac,
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}
	if ac.Subject == "" || ac.Email == "" || !models.IsValidRole(ac.Role) {
		return nil, ErrInvalidToken
	}
	return &models.Claims{
		UserID:    ac.Subject,
		Email:     ac.Email,
		Name:      ac.Name,
		Role:      ac.Role,
		Center:    ac.Center,
		ExpiresAt: ac.ExpiresAt.Time,
	}, nil
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidToken
	}
	return token, nil
}

// ValidatePassword enforces the minimum password length.
func (s *Service) ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// ValidateEmail checks the address shape.
func (s *Service) ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so lookups match.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
