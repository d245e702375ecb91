package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cnsr/cta-inspection/internal/models"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginResponse), args.Error(1)
}

func setupTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "session.db")), &gorm.Config{})
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func TestManager_LoginPersistsSession(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("Login", mock.Anything, "tech@cnsr.bj", "secret").Return(&models.LoginResponse{
		Token: "jwt",
		User:  models.User{Email: "tech@cnsr.bj", FirstName: "Kokouvi", Role: models.RoleTechnician},
	}, nil)

	store := setupTestStore(t)
	m := NewManager(auth, store)
	m.now = func() time.Time { return time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC) }

	sess, err := m.Login(context.Background(), " tech@cnsr.bj ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", sess.Token)
	assert.True(t, sess.HasRole(models.RoleTechnician))
	assert.False(t, sess.HasRole(models.RoleSupervisor))

	loaded, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jwt", loaded.Token)
	assert.Equal(t, "Kokouvi", loaded.User.FirstName)
	assert.True(t, loaded.CreatedAt.Equal(sess.CreatedAt))
	auth.AssertExpectations(t)
}

func TestManager_LoginRequiresCredentials(t *testing.T) {
	auth := new(MockAuthenticator)
	m := NewManager(auth, nil)

	_, err := m.Login(context.Background(), "  ", "secret")
	assert.ErrorIs(t, err, ErrCredentialsMissing)
	_, err = m.Login(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, ErrCredentialsMissing)
	auth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_LoginFailureKeepsPreviousState(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("Login", mock.Anything, "a@b.c", "bad").Return(nil, errors.New("Identifiants invalides"))

	m := NewManager(auth, setupTestStore(t))
	_, err := m.Login(context.Background(), "a@b.c", "bad")
	assert.EqualError(t, err, "Identifiants invalides")

	_, err = m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestManager_Logout(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(&models.LoginResponse{Token: "jwt"}, nil)

	m := NewManager(auth, setupTestStore(t))
	_, err := m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background()))
	_, err = m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestStore_SaveReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Session{Token: "one"}))
	require.NoError(t, s.Save(ctx, &Session{Token: "two"}))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", loaded.Token)
}

func TestSession_NilIsInvalid(t *testing.T) {
	var s *Session
	assert.False(t, s.Valid())
	assert.False(t, s.HasRole(models.RoleAdmin))
}
