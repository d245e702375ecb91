package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/metrics"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/notify"
)

// ReviewHandler serves the supervisor endpoints.
type ReviewHandler struct {
	collection db.InspectionCollection
	publisher  notify.Publisher
	now        func() time.Time
}

// NewReviewHandler creates a ReviewHandler. A nil publisher drops events.
func NewReviewHandler(collection db.InspectionCollection, publisher notify.Publisher) *ReviewHandler {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &ReviewHandler{collection: collection, publisher: publisher, now: time.Now}
}

// Pending lists records awaiting a decision, newest first.
func (h *ReviewHandler) Pending(w http.ResponseWriter, r *http.Request) {
	records, err := h.collection.FindInspections(r.Context(), db.InspectionFilter{Status: models.StatusPending})
	if err != nil {
		log.WithError(err).Error("Failed to list pending records")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la récupération des fiches")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Validate approves a pending record. The comment is optional.
func (h *ReviewHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := readOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	h.decide(w, r, models.StatusApproved, strings.TrimSpace(req.Comment))
}

// Reject rejects a pending record. A non-blank reason is required.
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	reason := strings.TrimSpace(req.Comment)
	if reason == "" {
		writeError(w, http.StatusBadRequest, "Le motif du rejet est obligatoire")
		return
	}
	h.decide(w, r, models.StatusRejected, reason)
}

func (h *ReviewHandler) decide(w http.ResponseWriter, r *http.Request, status models.ValidationStatus, comment string) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Utilisateur non authentifié")
		return
	}
	id := mux.Vars(r)["id"]

	rec, err := h.collection.UpdateStatus(r.Context(), id, db.StatusUpdate{
		Status:     status,
		Comment:    comment,
		ReviewedBy: claims.Email,
		ReviewedAt: h.now().UTC(),
	})
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "Fiche introuvable")
		return
	case errors.Is(err, db.ErrNotPending):
		writeError(w, http.StatusConflict, "Cette fiche a déjà été traitée")
		return
	case err != nil:
		log.WithError(err).WithField("id", id).Error("Failed to update record status")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la mise à jour de la fiche")
		return
	}

	metrics.RecordReview(string(status))
	log.WithFields(log.Fields{
		"id":          rec.ID,
		"status":      rec.Status,
		"reviewed_by": claims.Email,
		"centre":      claims.Center,
	}).Info("Inspection record reviewed")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.publisher.PublishStatus(ctx, notify.EventFromRecord(*rec)); err != nil {
		log.WithError(err).WithField("id", rec.ID).Warn("Failed to publish status event")
	}

	writeJSON(w, http.StatusOK, rec)
}
