// Package session holds the authenticated identity used by the field
// workflows. A Session is created at login and cleared at logout, and is
// passed explicitly into every remote call.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cnsr/cta-inspection/internal/models"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrCredentialsMissing = errors.New("email and password are required")
)

// Session is an authenticated user and its bearer token.
type Session struct {
	Token     string
	User      models.User
	CreatedAt time.Time
}

// Valid reports whether the session can authenticate remote calls.
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}

// HasRole reports whether the session user has one of roles.
func (s *Session) HasRole(roles ...models.Role) bool {
	if !s.Valid() {
		return false
	}
	for _, r := range roles {
		if s.User.Role == r {
			return true
		}
	}
	return false
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

// Manager owns the session lifecycle.
type Manager struct {
	auth  Authenticator
	store *Store
	now   func() time.Time
}

// NewManager returns a manager. store may be nil, in which case sessions
// live only as long as the returned value.
func NewManager(auth Authenticator, store *Store) *Manager {
	return &Manager{auth: auth, store: store, now: time.Now}
}

// Login authenticates and persists the new session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrCredentialsMissing
	}
	resp, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess := &Session{Token: resp.Token, User: resp.User, CreatedAt: m.now()}
	if m.store != nil {
		if err := m.store.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	log.WithFields(log.Fields{
		"email": sess.User.Email,
		"role":  sess.User.Role,
	}).Info("Logged in")
	return sess, nil
}

// Current returns the persisted session or ErrNotLoggedIn.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	if m.store == nil {
		return nil, ErrNotLoggedIn
	}
	return m.store.Load(ctx)
}

// Logout forgets the persisted session.
func (m *Manager) Logout(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Clear(ctx)
}

type storedSession struct {
	ID        uint `gorm:"primaryKey"`
	Token     string
	User      models.User `gorm:"serializer:json"`
	CreatedAt time.Time
}

func (storedSession) TableName() string {
	return "sessions"
}

// Store keeps at most one session on the device.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the session table on db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&storedSession{}); err != nil {
		return nil, fmt.Errorf("migrate session store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	row := storedSession{ID: 1, Token: sess.Token, User: sess.User, CreatedAt: sess.CreatedAt}
	return s.db.WithContext(ctx).Save(&row).Error
}

// Load returns the stored session.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	var row storedSession
	err := s.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	return &Session{Token: row.Token, User: row.User, CreatedAt: row.CreatedAt}, nil
}

// Clear removes the stored session.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&storedSession{}).Error
}
