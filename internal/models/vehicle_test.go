package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidityDate(t *testing.T) {
	visit := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		vehicleType VehicleType
		expected    string
	}{
		{VehicleLight, "2025-01-15"},
		{VehicleHeavy, "2024-07-15"},
		{VehicleTaxi, "2024-04-15"},
		{"UNKNOWN", "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(string(tt.vehicleType), func(t *testing.T) {
			got := ValidityDate(visit, tt.vehicleType)
			assert.Equal(t, tt.expected, got.Format(DateLayout))
		})
	}
}

func TestNewVehicleInfo(t *testing.T) {
	visit := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	info := NewVehicleInfo("  AB123CDRB ", VehicleLight, "EKPE", visit)

	assert.Equal(t, "AB123CDRB", info.LicensePlate)
	assert.Equal(t, "2024-01-15", info.VisitDate.Format(DateLayout))
	assert.Equal(t, "2025-01-15", info.ValidityDate.Format(DateLayout))
	assert.Zero(t, info.VisitDate.Hour())
}

func TestVehicleInfo_Validate(t *testing.T) {
	centers := []string{"EKPE", "LOKOSSA"}

	tests := []struct {
		name string
		info VehicleInfo
		err  error
	}{
		{"valid", VehicleInfo{LicensePlate: "AB123CDRB", Center: "EKPE", VehicleType: VehicleLight}, nil},
		{"empty plate", VehicleInfo{LicensePlate: "", Center: "EKPE"}, ErrPlateRequired},
		{"blank plate", VehicleInfo{LicensePlate: "   ", Center: "EKPE"}, ErrPlateRequired},
		{"missing center", VehicleInfo{LicensePlate: "AB123CDRB"}, ErrCenterRequired},
		{"unknown center", VehicleInfo{LicensePlate: "AB123CDRB", Center: "POBE"}, ErrUnknownCenter},
		{"unknown type", VehicleInfo{LicensePlate: "AB123CDRB", Center: "EKPE", VehicleType: "BUS"}, ErrUnknownVehicleType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.info.Validate(centers), tt.err)
		})
	}
}

func TestIsKnownCenter_DefaultsWhenUnconfigured(t *testing.T) {
	assert.True(t, IsKnownCenter("OUAIDAH", nil))
	assert.False(t, IsKnownCenter("COTONOU", nil))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.False(t, CanTransition(StatusPending, StatusPending))
	assert.False(t, CanTransition(StatusApproved, StatusRejected))
	assert.False(t, CanTransition(StatusRejected, StatusPending))
	assert.False(t, CanTransition(StatusApproved, StatusPending))
}

func TestFunctionForPoint(t *testing.T) {
	for _, p := range ControlPoints {
		fn, ok := FunctionForPoint(p.ID)
		assert.True(t, ok, p.ID)
		assert.Equal(t, p.Function, fn, p.ID)
	}
	_, ok := FunctionForPoint("eng_1")
	assert.False(t, ok)
}

func TestPointName(t *testing.T) {
	assert.Equal(t, "Vitrage", PointName("vis_1"))
	assert.Equal(t, "eng_9", PointName("eng_9"))
}
