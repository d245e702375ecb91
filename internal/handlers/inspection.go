package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/metrics"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
)

// InspectionHandler serves the technician endpoints under /api/cta.
type InspectionHandler struct {
	collection db.InspectionCollection
	centers    []string
}

// NewInspectionHandler creates an InspectionHandler. centers is the list of
// accepted inspection centers.
func NewInspectionHandler(collection db.InspectionCollection, centers []string) *InspectionHandler {
	return &InspectionHandler{collection: collection, centers: centers}
}

// List returns stored records, newest first. Optional query parameters:
// statut, cta_id, limit.
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.InspectionFilter{
		Status: models.ValidationStatus(q.Get("statut")),
		CTAID:  q.Get("cta_id"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "Statut inconnu")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Paramètre limit invalide")
			return
		}
		filter.Limit = limit
	}

	records, err := h.collection.FindInspections(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to list inspection records")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la récupération des fiches")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Get returns a single record.
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.collection.FindInspectionByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Fiche introuvable")
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load inspection record")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la récupération de la fiche")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create stores a submitted record. The record always starts pending.
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Utilisateur non authentifié")
		return
	}

	var sub models.PhotoSubmission
	if err := readJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	rec, err := sub.Record()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Date invalide: "+err.Error())
		return
	}
	if msg := h.validate(rec); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rec.TechnicianID = claims.UserID
	if strings.TrimSpace(rec.TechnicianName) == "" {
		rec.TechnicianName = claims.Name
	}
	if rec.TechnicianName == "" {
		rec.TechnicianName = claims.Email
	}

	stored, err := h.collection.InsertInspection(r.Context(), rec)
	if err != nil {
		log.WithError(err).Error("Failed to store inspection record")
		writeError(w, http.StatusInternalServerError, "Erreur lors de l'enregistrement de la fiche")
		return
	}
	metrics.RecordSubmission(string(stored.VehicleType))

	writeJSON(w, http.StatusCreated, stored)
}

// Search returns records whose plate contains the path parameter,
// ignoring case.
func (h *InspectionHandler) Search(w http.ResponseWriter, r *http.Request) {
	plate := strings.TrimSpace(mux.Vars(r)["immatriculation"])
	if plate == "" {
		writeError(w, http.StatusBadRequest, "Immatriculation requise")
		return
	}

	records, err := h.collection.FindByPlate(r.Context(), plate)
	if err != nil {
		log.WithError(err).WithField("immatriculation", plate).Error("Failed to search inspection records")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la recherche")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *InspectionHandler) validate(rec models.InspectionRecord) string {
	switch err := rec.VehicleInfo.Validate(h.centers); {
	case errors.Is(err, models.ErrPlateRequired):
		return "L'immatriculation est obligatoire"
	case errors.Is(err, models.ErrCenterRequired):
		return "Le centre est obligatoire"
	case errors.Is(err, models.ErrUnknownCenter):
		return "Centre inconnu"
	case errors.Is(err, models.ErrUnknownVehicleType):
		return "Type de véhicule inconnu"
	case err != nil:
		return err.Error()
	}
	if rec.PhotoBase64 == "" {
		return "La photo est obligatoire"
	}
	if rec.VisitDate.IsZero() {
		return "La date de visite est obligatoire"
	}
	return ""
}
