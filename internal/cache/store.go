// Package cache is the on-device copy of submitted inspection records.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cnsr/cta-inspection/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found in local cache")
	ErrDuplicateID = errors.New("record id already cached")
	ErrMissingID   = errors.New("record id is required")
)

// Entry is the cached row for one inspection record.
type Entry struct {
	ID             string `gorm:"primaryKey;size:64"`
	RemoteID       string `gorm:"index;size:64"`
	CTAID          string `gorm:"index;size:64"`
	LicensePlate   string `gorm:"index;size:32"`
	VehicleType    string `gorm:"size:16"`
	Center         string `gorm:"size:64"`
	VisitDate      time.Time
	ValidityDate   time.Time
	PhotoURI       string
	PhotoBase64    string
	Results        []models.ControlResult `gorm:"serializer:json"`
	Latitude       *float64
	Longitude      *float64
	Address        string
	PhotoTimestamp time.Time
	ReportHTML     string
	ReportPDF      string
	TechnicianID   string
	TechnicianName string
	Status         string `gorm:"index;size:16"`
	ReviewComment  string
	ReviewedBy     string
	ReviewedAt     *time.Time
	CreatedAt      time.Time
}

// TableName keeps the storage key the mobile app used.
func (Entry) TableName() string {
	return "cta_photos"
}

// Store is a keyed collection of inspection records backed by SQLite.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate local cache: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the connection so other device stores can share the file.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewID returns a time-ordered identifier with a random suffix.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Add appends a record. The record id must be set and unused.
func (s *Store) Add(ctx context.Context, rec models.InspectionRecord) error {
	if rec.ID == "" {
		return ErrMissingID
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Where("id = ?", rec.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateID
	}
	if err := s.db.WithContext(ctx).Create(toEntry(rec)).Error; err != nil {
		return fmt.Errorf("cache record: %w", err)
	}
	log.WithFields(log.Fields{
		"id":         rec.ID,
		"plate":      rec.LicensePlate,
		"photo_size": len(rec.PhotoBase64),
	}).Info("Record cached locally")
	return nil
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id string) (models.InspectionRecord, error) {
	var e Entry
	err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.InspectionRecord{}, ErrNotFound
	}
	if err != nil {
		return models.InspectionRecord{}, err
	}
	return e.toRecord(), nil
}

// GetByRemoteID returns the record the backend stored under remoteID.
func (s *Store) GetByRemoteID(ctx context.Context, remoteID string) (models.InspectionRecord, error) {
	if remoteID == "" {
		return models.InspectionRecord{}, ErrNotFound
	}
	var e Entry
	err := s.db.WithContext(ctx).First(&e, "remote_id = ?", remoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.InspectionRecord{}, ErrNotFound
	}
	if err != nil {
		return models.InspectionRecord{}, err
	}
	return e.toRecord(), nil
}

// List returns every cached record, oldest first.
func (s *Store) List(ctx context.Context) ([]models.InspectionRecord, error) {
	return s.find(ctx, s.db.WithContext(ctx))
}

// ListByCTA returns the records of one inspection session.
func (s *Store) ListByCTA(ctx context.Context, ctaID string) ([]models.InspectionRecord, error) {
	return s.find(ctx, s.db.WithContext(ctx).Where("cta_id = ?", ctaID))
}

// SearchByPlate returns records whose plate contains term, ignoring case.
func (s *Store) SearchByPlate(ctx context.Context, term string) ([]models.InspectionRecord, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return s.find(ctx, s.db.WithContext(ctx).Where(`LOWER(license_plate) LIKE ? ESCAPE '\'`, pattern))
}

// Delete removes a record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Entry{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	log.WithField("id", id).Info("Record removed from local cache")
	return nil
}

// Patch lists the fields Update may change. Nil fields are left alone.
type Patch struct {
	LicensePlate  *string
	VehicleType   *models.VehicleType
	Center        *string
	Status        *models.ValidationStatus
	ReviewComment *string
	ReviewedBy    *string
	ReviewedAt    *time.Time
	Address       *string
	ReportPDF     *string
}

func (p Patch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.LicensePlate != nil {
		cols["license_plate"] = *p.LicensePlate
	}
	if p.VehicleType != nil {
		cols["vehicle_type"] = string(*p.VehicleType)
	}
	if p.Center != nil {
		cols["center"] = *p.Center
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.ReviewComment != nil {
		cols["review_comment"] = *p.ReviewComment
	}
	if p.ReviewedBy != nil {
		cols["reviewed_by"] = *p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		cols["reviewed_at"] = *p.ReviewedAt
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.ReportPDF != nil {
		cols["report_pdf"] = *p.ReportPDF
	}
	return cols
}

// Update merges patch into the record and returns the result.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (models.InspectionRecord, error) {
	cols := patch.columns()
	if len(cols) > 0 {
		res := s.db.WithContext(ctx).Model(&Entry{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return models.InspectionRecord{}, res.Error
		}
		if res.RowsAffected == 0 {
			return models.InspectionRecord{}, ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

// Clear removes every cached record.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Entry{}).Error
}

// Stats summarizes the cache.
type Stats struct {
	Total         int
	ByCTA         map[string]int
	ByVehicleType map[string]int
	Recent        []models.InspectionRecord
}

// Stats counts records per session and per vehicle type and returns the
// ten most recent.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Total:         len(records),
		ByCTA:         map[string]int{},
		ByVehicleType: map[string]int{},
	}
	for _, r := range records {
		st.ByCTA[r.CTAID]++
		st.ByVehicleType[string(r.VehicleType)]++
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > 10 {
		records = records[:10]
	}
	st.Recent = records
	return st, nil
}

func (s *Store) find(ctx context.Context, q *gorm.DB) ([]models.InspectionRecord, error) {
	var entries []Entry
	if err := q.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	out := make([]models.InspectionRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toRecord())
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toEntry(r models.InspectionRecord) *Entry {
	return &Entry{
		ID:             r.ID,
		RemoteID:       r.RemoteID,
		CTAID:          r.CTAID,
		LicensePlate:   r.LicensePlate,
		VehicleType:    string(r.VehicleType),
		Center:         r.Center,
		VisitDate:      r.VisitDate,
		ValidityDate:   r.ValidityDate,
		PhotoURI:       r.PhotoURI,
		PhotoBase64:    r.PhotoBase64,
		Results:        r.Results,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		Address:        r.Address,
		PhotoTimestamp: r.PhotoTimestamp,
		ReportHTML:     r.ReportHTML,
		ReportPDF:      r.ReportPDF,
		TechnicianID:   r.TechnicianID,
		TechnicianName: r.TechnicianName,
		Status:         string(r.Status),
		ReviewComment:  r.ReviewComment,
		ReviewedBy:     r.ReviewedBy,
		ReviewedAt:     r.ReviewedAt,
		CreatedAt:      r.CreatedAt,
	}
}

func (e Entry) toRecord() models.InspectionRecord {
	return models.InspectionRecord{
		ID:       e.ID,
		RemoteID: e.RemoteID,
		CTAID:    e.CTAID,
		VehicleInfo: models.VehicleInfo{
			LicensePlate: e.LicensePlate,
			VehicleType:  models.VehicleType(e.VehicleType),
			Center:       e.Center,
			VisitDate:    e.VisitDate,
			ValidityDate: e.ValidityDate,
		},
		PhotoURI:       e.PhotoURI,
		PhotoBase64:    e.PhotoBase64,
		Results:        e.Results,
		Latitude:       e.Latitude,
		Longitude:      e.Longitude,
		Address:        e.Address,
		PhotoTimestamp: e.PhotoTimestamp,
		ReportHTML:     e.ReportHTML,
		ReportPDF:      e.ReportPDF,
		TechnicianID:   e.TechnicianID,
		TechnicianName: e.TechnicianName,
		Status:         models.ValidationStatus(e.Status),
		ReviewComment:  e.ReviewComment,
		ReviewedBy:     e.ReviewedBy,
		ReviewedAt:     e.ReviewedAt,
		CreatedAt:      e.CreatedAt,
	}
}
