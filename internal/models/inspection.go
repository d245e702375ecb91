package models

import (
	"errors"
	"time"
)

// TimestampLayout is the wire format of the photo capture timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

var ErrInvalidTransition = errors.New("invalid validation status transition")

// ValidationStatus is the supervisor-owned review state of a record.
type ValidationStatus string

const (
	StatusPending  ValidationStatus = "en_attente"
	StatusApproved ValidationStatus = "validée"
	StatusRejected ValidationStatus = "rejetée"
)

// IsValid reports whether s is a known status.
func (s ValidationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s ValidationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a record may move from one status to
// another. Only pending records can be approved or rejected.
func CanTransition(from, to ValidationStatus) bool {
	return from == StatusPending && to.IsTerminal()
}

// Label is the French display text for the status.
func (s ValidationStatus) Label() string {
	switch s {
	case StatusPending:
		return "En attente de validation"
	case StatusApproved:
		return "Validée par le superviseur"
	case StatusRejected:
		return "Rejetée par le superviseur"
	default:
		return "Statut inconnu"
	}
}

// InspectionRecord is the unit persisted after a technician completes the
// capture, checklist and report steps.
type InspectionRecord struct {
	ID    string `bson:"_id,omitempty" json:"id"`
	CTAID string `bson:"cta_id" json:"cta_id"`

	// RemoteID is the backend id of a record cached on the device.
	RemoteID string `bson:"-" json:"-"`

	VehicleInfo `bson:",inline"`

	PhotoURI    string `bson:"photo_uri,omitempty" json:"photo_uri,omitempty"`
	PhotoBase64 string `bson:"photo_base64" json:"photo_base64"`

	Results []ControlResult `bson:"resultats" json:"resultats"`

	Latitude       *float64  `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude      *float64  `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Address        string    `bson:"adresse,omitempty" json:"adresse,omitempty"`
	PhotoTimestamp time.Time `bson:"timestamp_photo" json:"timestamp_photo"`

	ReportHTML string `bson:"fiche_controle_html,omitempty" json:"fiche_controle_html,omitempty"`
	ReportPDF  string `bson:"fiche_controle_pdf,omitempty" json:"fiche_controle_pdf,omitempty"`

	TechnicianID   string `bson:"technicien_id,omitempty" json:"technicien_id,omitempty"`
	TechnicianName string `bson:"technicien_name" json:"technicien_name"`

	Status        ValidationStatus `bson:"statut_validation" json:"statut_validation"`
	ReviewComment string           `bson:"commentaires,omitempty" json:"commentaires,omitempty"`
	ReviewedBy    string           `bson:"valide_par,omitempty" json:"valide_par,omitempty"`
	ReviewedAt    *time.Time       `bson:"date_validation,omitempty" json:"date_validation,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SetGeolocation copies a best-effort fix onto the record. A nil fix
// leaves the location fields unset.
func (r *InspectionRecord) SetGeolocation(g *Geolocation) {
	if g == nil {
		return
	}
	lat, lon := g.Lat, g.Lon
	r.Latitude = &lat
	r.Longitude = &lon
	r.Address = g.Address
}
