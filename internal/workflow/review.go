package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/session"
)

var (
	ErrReasonRequired = errors.New("a rejection reason is required")
	ErrNotSupervisor  = errors.New("supervisor role required")
	ErrCancelled      = errors.New("cancelled by user")
	ErrNotPending     = errors.New("record is not awaiting review")
)

// ReviewService is the remote side of supervisor review.
type ReviewService interface {
	ListPending(ctx context.Context, token string) ([]models.InspectionRecord, error)
	ValidateRecord(ctx context.Context, token, id, comment string) (*models.InspectionRecord, error)
	RejectRecord(ctx context.Context, token, id, reason string) (*models.InspectionRecord, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// ReasonPrompter asks for a rejection reason. attempt starts at 1.
// Returning ErrCancelled stops the prompt loop.
type ReasonPrompter interface {
	PromptReason(ctx context.Context, attempt int) (string, error)
}

// Action is something a supervisor can do on a record.
type Action string

const (
	ActionValidate Action = "valider"
	ActionReject   Action = "rejeter"
)

// Actions returns the decisions still open on rec. Records that left the
// pending state have none.
func Actions(rec models.InspectionRecord) []Action {
	if rec.Status != models.StatusPending {
		return nil
	}
	return []Action{ActionValidate, ActionReject}
}

// Reviewer drives the supervisor dashboard.
type Reviewer struct {
	remote    ReviewService
	confirmer Confirmer
	pending   []models.InspectionRecord
}

// NewReviewer returns a Reviewer.
func NewReviewer(remote ReviewService, confirmer Confirmer) *Reviewer {
	return &Reviewer{remote: remote, confirmer: confirmer}
}

func checkSupervisor(sess *session.Session) error {
	if !sess.Valid() {
		return session.ErrNotLoggedIn
	}
	if !sess.HasRole(models.RoleSupervisor, models.RoleAdmin) {
		return ErrNotSupervisor
	}
	return nil
}

// Pending fetches the records waiting for a decision and keeps them as the
// current list.
func (r *Reviewer) Pending(ctx context.Context, sess *session.Session) ([]models.InspectionRecord, error) {
	if err := checkSupervisor(sess); err != nil {
		return nil, err
	}
	records, err := r.remote.ListPending(ctx, sess.Token)
	if err != nil {
		return nil, err
	}
	pending := make([]models.InspectionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == models.StatusPending {
			pending = append(pending, rec)
		}
	}
	r.pending = pending
	return pending, nil
}

// List returns the last fetched pending list.
func (r *Reviewer) List() []models.InspectionRecord {
	return r.pending
}

// Validate approves a record of the pending list after the user confirms.
// It returns false without calling the backend when the user declines.
func (r *Reviewer) Validate(ctx context.Context, sess *session.Session, id string) (bool, error) {
	if err := checkSupervisor(sess); err != nil {
		return false, err
	}
	if err := r.open(id, ActionValidate); err != nil {
		return false, err
	}
	if r.confirmer != nil {
		ok, err := r.confirmer.Confirm(ctx, fmt.Sprintf("Valider la fiche %s ?", r.describe(id)))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if _, err := r.remote.ValidateRecord(ctx, sess.Token, id, ""); err != nil {
		return false, err
	}
	log.WithFields(log.Fields{"id": id, "by": sess.User.Email}).Info("Record validated")
	r.refresh(ctx, sess)
	return true, nil
}

// Reject rejects a record of the pending list with reason. An empty or
// blank reason is refused before any remote call.
func (r *Reviewer) Reject(ctx context.Context, sess *session.Session, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationError(ErrReasonRequired)
	}
	if err := checkSupervisor(sess); err != nil {
		return err
	}
	if err := r.open(id, ActionReject); err != nil {
		return err
	}
	if _, err := r.remote.RejectRecord(ctx, sess.Token, id, reason); err != nil {
		return err
	}
	log.WithFields(log.Fields{"id": id, "by": sess.User.Email}).Info("Record rejected")
	r.refresh(ctx, sess)
	return nil
}

// RejectInteractive prompts until a non-blank reason is given or the
// prompter cancels, then rejects.
func (r *Reviewer) RejectInteractive(ctx context.Context, sess *session.Session, id string, prompter ReasonPrompter) error {
	if err := checkSupervisor(sess); err != nil {
		return err
	}
	if err := r.open(id, ActionReject); err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		reason, err := prompter.PromptReason(ctx, attempt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(reason) == "" {
			log.WithField("attempt", attempt).Debug("Empty rejection reason, asking again")
			continue
		}
		return r.Reject(ctx, sess, id, reason)
	}
}

func (r *Reviewer) refresh(ctx context.Context, sess *session.Session) {
	if _, err := r.Pending(ctx, sess); err != nil {
		log.WithError(err).Warn("Failed to refresh pending list")
	}
}

// open checks that action is still offered on id in the pending list.
func (r *Reviewer) open(id string, action Action) error {
	for _, rec := range r.pending {
		if rec.ID != id {
			continue
		}
		for _, a := range Actions(rec) {
			if a == action {
				return nil
			}
		}
		break
	}
	return fmt.Errorf("%w: %s", ErrNotPending, id)
}

func (r *Reviewer) describe(id string) string {
	for _, rec := range r.pending {
		if rec.ID == id && rec.LicensePlate != "" {
			return rec.LicensePlate
		}
	}
	return id
}
