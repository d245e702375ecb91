package db

import (
	"context"
	"errors"
	"time"

	"github.com/cnsr/cta-inspection/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotPending     = errors.New("record is no longer pending validation")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrNilCollection  = errors.New("mongo collection is nil")
)

// InspectionFilter narrows FindInspections. Zero fields match everything.
type InspectionFilter struct {
	Status       models.ValidationStatus
	CTAID        string
	TechnicianID string
	Limit        int64
}

// StatusUpdate is a supervisor decision applied to a pending record.
type StatusUpdate struct {
	Status     models.ValidationStatus
	Comment    string
	ReviewedBy string
	ReviewedAt time.Time
}

// InspectionCollection defines the operations on stored inspection records.
type InspectionCollection interface {
	InsertInspection(ctx context.Context, rec models.InspectionRecord) (models.InspectionRecord, error)
	FindInspections(ctx context.Context, filter InspectionFilter) ([]models.InspectionRecord, error)
	FindInspectionByID(ctx context.Context, id string) (*models.InspectionRecord, error)
	FindByPlate(ctx context.Context, plate string) ([]models.InspectionRecord, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*models.InspectionRecord, error)
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	DeleteUser(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
}
