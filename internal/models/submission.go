package models

import (
	"fmt"
	"strings"
	"time"
)

// PhotoSubmission is the body of POST /cta/photo.
type PhotoSubmission struct {
	LicensePlate   string          `json:"immatriculation"`
	VisitDate      string          `json:"date_visite"`
	Center         string          `json:"centre"`
	ValidityDate   string          `json:"date_validite"`
	VehicleType    VehicleType     `json:"type_vehicule"`
	PhotoBase64    string          `json:"photo_base64"`
	CTAID          string          `json:"cta_id"`
	Latitude       *float64        `json:"latitude,omitempty"`
	Longitude      *float64        `json:"longitude,omitempty"`
	Address        string          `json:"adresse,omitempty"`
	PhotoTimestamp string          `json:"timestamp_photo,omitempty"`
	ReportPDF      *string         `json:"fiche_controle_pdf"`
	Results        []ControlResult `json:"resultats,omitempty"`
	TechnicianName string          `json:"technicien_name,omitempty"`
}

// NewPhotoSubmission converts a record to its wire form.
func NewPhotoSubmission(r InspectionRecord) PhotoSubmission {
	s := PhotoSubmission{
		LicensePlate:   r.LicensePlate,
		VisitDate:      formatDate(r.VisitDate),
		Center:         r.Center,
		ValidityDate:   formatDate(r.ValidityDate),
		VehicleType:    r.VehicleType,
		PhotoBase64:    r.PhotoBase64,
		CTAID:          r.CTAID,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		Address:        r.Address,
		Results:        r.Results,
		TechnicianName: r.TechnicianName,
	}
	if !r.PhotoTimestamp.IsZero() {
		s.PhotoTimestamp = r.PhotoTimestamp.Format(TimestampLayout)
	}
	if r.ReportPDF != "" {
		pdf := r.ReportPDF
		s.ReportPDF = &pdf
	}
	return s
}

// Record parses the wire form back into a pending record. Dates that are
// empty stay zero; malformed dates are an error.
func (s PhotoSubmission) Record() (InspectionRecord, error) {
	visit, err := parseDate(s.VisitDate)
	if err != nil {
		return InspectionRecord{}, fmt.Errorf("date_visite: %w", err)
	}
	validity, err := parseDate(s.ValidityDate)
	if err != nil {
		return InspectionRecord{}, fmt.Errorf("date_validite: %w", err)
	}
	if validity.IsZero() && !visit.IsZero() {
		validity = ValidityDate(visit, s.VehicleType)
	}
	r := InspectionRecord{
		CTAID: s.CTAID,
		VehicleInfo: VehicleInfo{
			LicensePlate: strings.TrimSpace(s.LicensePlate),
			VehicleType:  s.VehicleType,
			Center:       s.Center,
			VisitDate:    visit,
			ValidityDate: validity,
		},
		PhotoBase64:    s.PhotoBase64,
		Results:        s.Results,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		Address:        s.Address,
		TechnicianName: s.TechnicianName,
		Status:         StatusPending,
	}
	if s.PhotoTimestamp != "" {
		ts, err := time.Parse(TimestampLayout, s.PhotoTimestamp)
		if err != nil {
			return InspectionRecord{}, fmt.Errorf("timestamp_photo: %w", err)
		}
		r.PhotoTimestamp = ts
	}
	if s.ReportPDF != nil {
		r.ReportPDF = *s.ReportPDF
	}
	return r, nil
}

// ReviewRequest carries the supervisor comment of a review decision.
type ReviewRequest struct {
	Comment string `json:"commentaires"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}
