package models

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for visit and validity dates.
const DateLayout = "2006-01-02"

var (
	ErrPlateRequired      = errors.New("license plate is required")
	ErrCenterRequired     = errors.New("inspection center is required")
	ErrUnknownCenter      = errors.New("unknown inspection center")
	ErrUnknownVehicleType = errors.New("unknown vehicle type")
)

// VehicleType is the inspection category of a vehicle.
type VehicleType string

const (
	VehicleLight VehicleType = "CTVL"   // véhicule léger
	VehicleHeavy VehicleType = "CTPL"   // poids lourd
	VehicleTaxi  VehicleType = "CTTAXI" // taxi
)

// DefaultCenters are the inspection centers used when none are configured.
var DefaultCenters = []string{"EKPE", "LOKOSSA", "AGONLI", "POBE", "ALLADA", "OUAIDAH"}

// ValidityMonths returns how long an inspection of this type stays valid.
func (t VehicleType) ValidityMonths() (int, bool) {
	switch t {
	case VehicleLight:
		return 12, true
	case VehicleHeavy:
		return 6, true
	case VehicleTaxi:
		return 3, true
	default:
		return 0, false
	}
}

// IsValid reports whether t is one of the known vehicle types.
func (t VehicleType) IsValid() bool {
	_, ok := t.ValidityMonths()
	return ok
}

// Label is the human readable name shown in pickers and reports.
func (t VehicleType) Label() string {
	switch t {
	case VehicleLight:
		return "Véhicule Léger (CTVL)"
	case VehicleHeavy:
		return "Poids Lourd (CTPL)"
	case VehicleTaxi:
		return "Taxi (CTTAXI)"
	default:
		return string(t)
	}
}

// ValidityDate derives the end of validity from the visit date.
// Unknown types yield the visit date itself.
func ValidityDate(visit time.Time, t VehicleType) time.Time {
	months, ok := t.ValidityMonths()
	if !ok {
		return visit
	}
	return visit.AddDate(0, months, 0)
}

// VehicleInfo describes the vehicle being inspected.
type VehicleInfo struct {
	LicensePlate string      `bson:"immatriculation" json:"immatriculation"`
	VehicleType  VehicleType `bson:"type_vehicule" json:"type_vehicule"`
	Center       string      `bson:"centre" json:"centre"`
	VisitDate    time.Time   `bson:"date_visite" json:"date_visite"`
	ValidityDate time.Time   `bson:"date_validite" json:"date_validite"`
}

// NewVehicleInfo builds a VehicleInfo with its validity date derived from
// the visit date.
func NewVehicleInfo(plate string, t VehicleType, center string, visit time.Time) VehicleInfo {
	visit = truncateDay(visit)
	return VehicleInfo{
		LicensePlate: strings.TrimSpace(plate),
		VehicleType:  t,
		Center:       center,
		VisitDate:    visit,
		ValidityDate: ValidityDate(visit, t),
	}
}

// Validate checks the fields that must be present before a record leaves
// the device: a non-empty plate and a center from the configured set.
func (v VehicleInfo) Validate(centers []string) error {
	if strings.TrimSpace(v.LicensePlate) == "" {
		return ErrPlateRequired
	}
	if v.Center == "" {
		return ErrCenterRequired
	}
	if !IsKnownCenter(v.Center, centers) {
		return ErrUnknownCenter
	}
	if v.VehicleType != "" && !v.VehicleType.IsValid() {
		return ErrUnknownVehicleType
	}
	return nil
}

// IsKnownCenter reports whether center belongs to centers. An empty list
// falls back to DefaultCenters.
func IsKnownCenter(center string, centers []string) bool {
	if len(centers) == 0 {
		centers = DefaultCenters
	}
	for _, c := range centers {
		if c == center {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
