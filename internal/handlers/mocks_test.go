package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cnsr/cta-inspection/internal/auth"
	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/notify"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockInspectionCollection is a mock implementation of InspectionCollection
type MockInspectionCollection struct {
	mock.Mock
}

func (m *MockInspectionCollection) InsertInspection(ctx context.Context, rec models.InspectionRecord) (models.InspectionRecord, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(models.InspectionRecord), args.Error(1)
}

func (m *MockInspectionCollection) FindInspections(ctx context.Context, filter db.InspectionFilter) ([]models.InspectionRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InspectionRecord), args.Error(1)
}

func (m *MockInspectionCollection) FindInspectionByID(ctx context.Context, id string) (*models.InspectionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionRecord), args.Error(1)
}

func (m *MockInspectionCollection) FindByPlate(ctx context.Context, plate string) ([]models.InspectionRecord, error) {
	args := m.Called(ctx, plate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InspectionRecord), args.Error(1)
}

func (m *MockInspectionCollection) UpdateStatus(ctx context.Context, id string, update db.StatusUpdate) (*models.InspectionRecord, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionRecord), args.Error(1)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStatus(ctx context.Context, e notify.StatusEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) Close() {}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	s, err := auth.NewService("test-secret", 0)
	require.NoError(t, err)
	return s
}

func withClaims(r *http.Request, role models.Role) *http.Request {
	claims := &models.Claims{
		UserID: primitive.NewObjectID().Hex(),
		Email:  string(role) + "@cnsr.bj",
		Role:   role,
	}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}
