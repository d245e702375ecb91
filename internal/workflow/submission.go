package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/cache"
	"github.com/cnsr/cta-inspection/internal/geo"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/report"
	"github.com/cnsr/cta-inspection/internal/session"
)

// ErrValidation marks input errors that are fixed by the user in place.
// The concrete cause is wrapped alongside it.
var ErrValidation = errors.New("validation failed")

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Draft is an inspection ready to leave the device.
type Draft struct {
	CTAID      string
	Photo      models.Photo
	Vehicle    models.VehicleInfo
	Results    []models.ControlResult
	ReportHTML string
	Technician string
}

// PhotoSubmitter is the remote half of a submission.
type PhotoSubmitter interface {
	SubmitPhoto(ctx context.Context, token string, sub models.PhotoSubmission) (*models.InspectionRecord, error)
}

// RecordStore is the local half of a submission.
type RecordStore interface {
	Add(ctx context.Context, rec models.InspectionRecord) error
}

// Submitter sends a draft to the backend, then caches it on the device.
type Submitter struct {
	remote  PhotoSubmitter
	store   RecordStore
	geo     *geo.Service
	pdf     report.PDFConverter
	centers []string
	now     func() time.Time
}

// NewSubmitter wires a Submitter. geoSvc and pdf are optional.
func NewSubmitter(remote PhotoSubmitter, store RecordStore, geoSvc *geo.Service, pdf report.PDFConverter, centers []string) *Submitter {
	return &Submitter{
		remote:  remote,
		store:   store,
		geo:     geoSvc,
		pdf:     pdf,
		centers: centers,
		now:     time.Now,
	}
}

// Submit validates the draft, posts it and caches it. A failed post caches
// nothing. Location and PDF are best effort.
func (s *Submitter) Submit(ctx context.Context, sess *session.Session, d Draft) (*models.InspectionRecord, error) {
	if err := d.Vehicle.Validate(s.centers); err != nil {
		return nil, validationError(err)
	}
	if d.Photo.IsEmpty() {
		return nil, validationError(ErrNoPhoto)
	}
	if !sess.Valid() {
		return nil, session.ErrNotLoggedIn
	}

	now := s.now()
	rec := models.InspectionRecord{
		ID:          cache.NewID(),
		CTAID:       d.CTAID,
		VehicleInfo: d.Vehicle,
		PhotoURI:    d.Photo.URI,
		PhotoBase64: d.Photo.Base64,
		Results:     d.Results,
		ReportHTML:  d.ReportHTML,
		Status:      models.StatusPending,
		CreatedAt:   now,
	}
	if rec.CTAID == "" {
		rec.CTAID = cache.NewID()
	}
	rec.PhotoTimestamp = d.Photo.CapturedAt
	if rec.PhotoTimestamp.IsZero() {
		rec.PhotoTimestamp = now
	}
	rec.TechnicianName = d.Technician
	if rec.TechnicianName == "" {
		rec.TechnicianName = sess.User.DisplayName()
	}
	if !sess.User.ID.IsZero() {
		rec.TechnicianID = sess.User.ID.Hex()
	}

	rec.SetGeolocation(s.geo.Locate(ctx))

	if s.pdf != nil && rec.ReportHTML != "" {
		pdf, err := report.EncodePDF(ctx, s.pdf, rec.ReportHTML)
		if err != nil {
			log.WithError(err).Warn("PDF conversion failed, submitting without PDF")
		} else {
			rec.ReportPDF = pdf
		}
	}

	stored, err := s.remote.SubmitPhoto(ctx, sess.Token, models.NewPhotoSubmission(rec))
	if err != nil {
		log.WithError(err).WithField("plate", rec.LicensePlate).Error("Submission rejected, nothing cached")
		return nil, err
	}
	if stored != nil {
		rec.RemoteID = stored.ID
	}

	if err := s.store.Add(ctx, rec); err != nil {
		return &rec, fmt.Errorf("record submitted but not cached: %w", err)
	}
	return &rec, nil
}
