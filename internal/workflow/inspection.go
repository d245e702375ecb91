package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cnsr/cta-inspection/internal/cache"
	"github.com/cnsr/cta-inspection/internal/checklist"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/recognition"
	"github.com/cnsr/cta-inspection/internal/report"
	"github.com/cnsr/cta-inspection/internal/session"
)

var (
	ErrWrongState = errors.New("operation not allowed in current step")
	ErrStale      = errors.New("result belongs to a previous capture")
)

// State is a step of the technician flow.
type State int

const (
	StateCapture State = iota
	StatePlateReview
	StateForm
	StateChecklist
	StatePreview
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateCapture:
		return "capture"
	case StatePlateReview:
		return "plate_review"
	case StateForm:
		return "form"
	case StateChecklist:
		return "checklist"
	case StatePreview:
		return "preview"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// IncompleteError reports checklist points still missing a field.
type IncompleteError struct {
	Missing []models.ControlResult
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%d control point(s) incomplete", len(e.Missing))
}

func (e *IncompleteError) Unwrap() error {
	return ErrValidation
}

// FormInput is what the technician enters on the vehicle form. A
// LicensePlate is cleaned like manual entry; an empty one keeps the plate
// chosen at review.
type FormInput struct {
	LicensePlate string
	VehicleType  models.VehicleType
	Center       string
	VisitDate    time.Time
}

// Inspection is one photo taken through capture, form, checklist and
// preview to submission.
type Inspection struct {
	CTAID string

	state      State
	generation uint64
	photo      models.Photo
	analysis   Analysis
	plate      string
	vehicle    models.VehicleInfo
	checklist  *checklist.Engine
	reportHTML string
	technician string
	record     *models.InspectionRecord
	centers    []string
}

// NewInspection starts a flow in the capture step. An empty ctaID gets a
// generated one.
func NewInspection(ctaID string, centers []string) *Inspection {
	if ctaID == "" {
		ctaID = cache.NewID()
	}
	return &Inspection{CTAID: ctaID, centers: centers, checklist: checklist.New()}
}

// State returns the current step.
func (i *Inspection) State() State { return i.state }

// Photo returns the current photo.
func (i *Inspection) Photo() models.Photo { return i.photo }

// Analysis returns the recognition result for the current photo.
func (i *Inspection) Analysis() Analysis { return i.analysis }

// Plate returns the plate chosen so far.
func (i *Inspection) Plate() string { return i.plate }

// Vehicle returns the validated form data.
func (i *Inspection) Vehicle() models.VehicleInfo { return i.vehicle }

// Checklist returns the checklist being filled.
func (i *Inspection) Checklist() *checklist.Engine { return i.checklist }

// Report returns the rendered sheet once previewed.
func (i *Inspection) Report() string { return i.reportHTML }

// Record returns the submitted record.
func (i *Inspection) Record() *models.InspectionRecord { return i.record }

func (i *Inspection) expect(states ...State) error {
	for _, s := range states {
		if i.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrWrongState, i.state)
}

// SetPhoto records a capture and returns its generation. Recognition
// results must be applied with that generation.
func (i *Inspection) SetPhoto(photo models.Photo) (uint64, error) {
	if err := i.expect(StateCapture); err != nil {
		return 0, err
	}
	if photo.IsEmpty() {
		return 0, ErrNoPhoto
	}
	i.generation++
	i.photo = photo
	i.analysis = Analysis{}
	i.plate = ""
	return i.generation, nil
}

// ApplyAnalysis moves past capture. An auto-accepted plate goes straight
// to the form, anything else to plate review. Results for an older
// capture return ErrStale and change nothing.
func (i *Inspection) ApplyAnalysis(gen uint64, a Analysis) error {
	if gen != i.generation || i.photo.IsEmpty() {
		return ErrStale
	}
	if err := i.expect(StateCapture); err != nil {
		return ErrStale
	}
	i.analysis = a
	if a.Decision.Kind == recognition.AutoAccept {
		i.plate = a.Decision.Plate
		i.state = StateForm
		return nil
	}
	i.state = StatePlateReview
	return nil
}

// Capture takes a photo, recognizes it and applies the result.
func (i *Inspection) Capture(ctx context.Context, cam Camera, capturer *Capturer) error {
	photo, err := cam.Capture(ctx)
	if err != nil {
		return err
	}
	gen, err := i.SetPhoto(photo)
	if err != nil {
		return err
	}
	return i.ApplyAnalysis(gen, capturer.Analyze(ctx, photo))
}

// Choose resolves plate review. manual is used with ChoiceManual.
func (i *Inspection) Choose(choice Choice, manual string) error {
	if err := i.expect(StatePlateReview); err != nil {
		return err
	}
	switch choice {
	case ChoiceAccept:
		if i.analysis.Decision.Plate == "" {
			return validationError(models.ErrPlateRequired)
		}
		i.plate = i.analysis.Decision.Plate
	case ChoiceManual:
		plate := recognition.SanitizeManual(manual)
		if plate == "" {
			return validationError(models.ErrPlateRequired)
		}
		i.plate = plate
	case ChoiceRetake:
		return i.Retake()
	default:
		return fmt.Errorf("%w: unknown choice %d", ErrWrongState, choice)
	}
	i.state = StateForm
	return nil
}

// Retake discards the photo and returns to capture. Any recognition still
// running for the old photo becomes stale.
func (i *Inspection) Retake() error {
	if err := i.expect(StateCapture, StatePlateReview, StateForm); err != nil {
		return err
	}
	i.generation++
	i.photo = models.Photo{}
	i.analysis = Analysis{}
	i.plate = ""
	i.state = StateCapture
	return nil
}

// SubmitForm validates the vehicle form and opens the checklist.
func (i *Inspection) SubmitForm(in FormInput) error {
	if err := i.expect(StateForm); err != nil {
		return err
	}
	plate := recognition.SanitizeManual(in.LicensePlate)
	if plate == "" {
		plate = i.plate
	}
	visit := in.VisitDate
	if visit.IsZero() {
		visit = time.Now()
	}
	v := models.NewVehicleInfo(plate, in.VehicleType, in.Center, visit)
	if !v.VehicleType.IsValid() {
		return validationError(models.ErrUnknownVehicleType)
	}
	if err := v.Validate(i.centers); err != nil {
		return validationError(err)
	}
	i.plate = v.LicensePlate
	i.vehicle = v
	i.state = StateChecklist
	return nil
}

// Preview renders the sheet once every point is filled.
func (i *Inspection) Preview(technician, logo string) (string, error) {
	if err := i.expect(StateChecklist); err != nil {
		return "", err
	}
	if missing := i.checklist.Missing(); len(missing) > 0 {
		return "", &IncompleteError{Missing: missing}
	}
	ts := i.photo.CapturedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	html, err := report.Render(report.Input{
		Vehicle:    i.vehicle,
		Results:    i.checklist.Results(),
		Technician: technician,
		Timestamp:  ts,
		Logo:       logo,
	})
	if err != nil {
		return "", err
	}
	i.reportHTML = html
	i.technician = technician
	i.state = StatePreview
	return html, nil
}

// Back goes from checklist to form or from preview to checklist.
func (i *Inspection) Back() error {
	switch i.state {
	case StateChecklist:
		i.state = StateForm
	case StatePreview:
		i.reportHTML = ""
		i.state = StateChecklist
	default:
		return fmt.Errorf("%w: %s", ErrWrongState, i.state)
	}
	return nil
}

// Draft returns the previewed inspection.
func (i *Inspection) Draft() (Draft, error) {
	if err := i.expect(StatePreview); err != nil {
		return Draft{}, err
	}
	return Draft{
		CTAID:      i.CTAID,
		Photo:      i.photo,
		Vehicle:    i.vehicle,
		Results:    i.checklist.Results(),
		ReportHTML: i.reportHTML,
		Technician: i.technician,
	}, nil
}

// Submit sends the previewed inspection. On failure the flow stays in
// preview so the user can retry.
func (i *Inspection) Submit(ctx context.Context, s *Submitter, sess *session.Session) (*models.InspectionRecord, error) {
	d, err := i.Draft()
	if err != nil {
		return nil, err
	}
	rec, err := s.Submit(ctx, sess, d)
	if rec == nil {
		return nil, err
	}
	// the backend accepted it even if caching failed
	i.record = rec
	i.state = StateSubmitted
	return rec, err
}
