package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
)

func validSubmission() models.PhotoSubmission {
	return models.PhotoSubmission{
		LicensePlate:   "AB123CDRB",
		VisitDate:      "2024-01-15",
		Center:         "EKPE",
		VehicleType:    models.VehicleLight,
		PhotoBase64:    "aGVsbG8=",
		CTAID:          "1000001",
		PhotoTimestamp: "2024-01-15 10:30:00",
	}
}

func postSubmission(h *InspectionHandler, sub interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(sub)
	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/cta/photo", bytes.NewReader(raw)), models.RoleTechnician)
	w := httptest.NewRecorder()
	h.Create(w, req)
	return w
}

func TestInspectionHandler_Create(t *testing.T) {
	t.Run("stores pending record", func(t *testing.T) {
		coll := new(MockInspectionCollection)
		coll.On("InsertInspection", mock.Anything, mock.MatchedBy(func(r models.InspectionRecord) bool {
			return r.LicensePlate == "AB123CDRB" &&
				r.Status == models.StatusPending &&
				r.TechnicianID != "" &&
				r.TechnicianName == "technicien@cnsr.bj" &&
				r.ValidityDate.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
		})).Return(models.InspectionRecord{ID: "f1", Status: models.StatusPending}, nil)

		w := postSubmission(NewInspectionHandler(coll, nil), validSubmission())
		assert.Equal(t, http.StatusCreated, w.Code)

		var rec models.InspectionRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, "f1", rec.ID)
		coll.AssertExpectations(t)
	})

	t.Run("technician name from token", func(t *testing.T) {
		coll := new(MockInspectionCollection)
		coll.On("InsertInspection", mock.Anything, mock.MatchedBy(func(r models.InspectionRecord) bool {
			return r.TechnicianName == "Koffi Agbo"
		})).Return(models.InspectionRecord{ID: "f2", Status: models.StatusPending}, nil)

		raw, _ := json.Marshal(validSubmission())
		claims := &models.Claims{UserID: "u1", Email: "koffi@cnsr.bj", Name: "Koffi Agbo", Role: models.RoleTechnician}
		req := httptest.NewRequest(http.MethodPost, "/api/cta/photo", bytes.NewReader(raw))
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
		w := httptest.NewRecorder()
		NewInspectionHandler(coll, nil).Create(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		coll.AssertExpectations(t)
	})

	cases := []struct {
		name    string
		mutate  func(*models.PhotoSubmission)
		message string
	}{
		{"missing plate", func(s *models.PhotoSubmission) { s.LicensePlate = "  " }, "L'immatriculation est obligatoire"},
		{"missing center", func(s *models.PhotoSubmission) { s.Center = "" }, "Le centre est obligatoire"},
		{"unknown center", func(s *models.PhotoSubmission) { s.Center = "PARIS" }, "Centre inconnu"},
		{"unknown type", func(s *models.PhotoSubmission) { s.VehicleType = "MOTO" }, "Type de véhicule inconnu"},
		{"missing photo", func(s *models.PhotoSubmission) { s.PhotoBase64 = "" }, "La photo est obligatoire"},
		{"missing visit date", func(s *models.PhotoSubmission) { s.VisitDate = "" }, "La date de visite est obligatoire"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coll := new(MockInspectionCollection)
			sub := validSubmission()
			tc.mutate(&sub)

			w := postSubmission(NewInspectionHandler(coll, nil), sub)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.message, decodeMessage(t, w))
			coll.AssertNotCalled(t, "InsertInspection", mock.Anything, mock.Anything)
		})
	}

	t.Run("malformed date", func(t *testing.T) {
		sub := validSubmission()
		sub.VisitDate = "15/01/2024"
		w := postSubmission(NewInspectionHandler(new(MockInspectionCollection), nil), sub)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		coll := new(MockInspectionCollection)
		coll.On("InsertInspection", mock.Anything, mock.Anything).Return(models.InspectionRecord{}, assert.AnError)
		w := postSubmission(NewInspectionHandler(coll, nil), validSubmission())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestInspectionHandler_List(t *testing.T) {
	coll := new(MockInspectionCollection)
	coll.On("FindInspections", mock.Anything, db.InspectionFilter{Status: models.StatusApproved, Limit: 5}).
		Return([]models.InspectionRecord{{ID: "a"}, {ID: "b"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cta/photos?statut=valid%C3%A9e&limit=5", nil)
	w := httptest.NewRecorder()
	NewInspectionHandler(coll, nil).List(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var records []models.InspectionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	w = httptest.NewRecorder()
	NewInspectionHandler(coll, nil).List(w, httptest.NewRequest(http.MethodGet, "/api/cta/photos?statut=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInspectionHandler_SearchAndGet(t *testing.T) {
	coll := new(MockInspectionCollection)
	coll.On("FindByPlate", mock.Anything, "ab12").Return([]models.InspectionRecord{{ID: "a"}}, nil)
	coll.On("FindInspectionByID", mock.Anything, "missing").Return(nil, db.ErrNotFound)
	h := NewInspectionHandler(coll, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/cta/search/ab12", nil), map[string]string{"immatriculation": "ab12"})
	w := httptest.NewRecorder()
	h.Search(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/cta/photos/missing", nil), map[string]string{"id": "missing"})
	w = httptest.NewRecorder()
	h.Get(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
