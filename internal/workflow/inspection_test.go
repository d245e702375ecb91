package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cnsr/cta-inspection/internal/cache"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/recognition"
)

var testPhoto = models.Photo{URI: "file:///tmp/car.jpg", Base64: "aGVsbG8=", CapturedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}

func fillChecklist(i *Inspection) {
	for _, p := range models.ControlPoints {
		i.Checklist().SetDefectLevel(p.ID, models.DefectMinor)
		i.Checklist().SetResult(p.ID, models.VerdictGood)
	}
}

func TestInspection_EndToEnd(t *testing.T) {
	ctx := context.Background()

	recognizer := new(MockRecognizer)
	recognizer.On("Recognize", mock.Anything, testPhoto).
		Return([]recognition.Candidate{{Plate: "ab123cd", Score: 0.9, DScore: 0.95}}, nil).Once()

	remote := new(MockPhotoSubmitter)
	remote.On("SubmitPhoto", mock.Anything, "jwt", mock.Anything).Return(&models.InspectionRecord{ID: "srv-1"}, nil).Once()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	insp := NewInspection("cta-42", nil)
	require.NoError(t, insp.Capture(ctx, stubCamera{photo: testPhoto}, NewCapturer(recognizer)))
	assert.Equal(t, StateForm, insp.State())
	assert.Equal(t, "AB123CDRB", insp.Plate())

	require.NoError(t, insp.SubmitForm(FormInput{
		VehicleType: models.VehicleLight,
		Center:      "EKPE",
		VisitDate:   time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	}))
	assert.Equal(t, StateChecklist, insp.State())
	assert.Equal(t, "2025-01-15", insp.Vehicle().ValidityDate.Format(models.DateLayout))

	fillChecklist(insp)
	html, err := insp.Preview("Kokouvi Adjovi", "")
	require.NoError(t, err)
	for _, fn := range models.Functions {
		assert.Contains(t, html, "<h3>"+string(fn)+"</h3>")
	}

	rec, err := insp.Submit(ctx, NewSubmitter(remote, store, nil, nil, nil), techSession())
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, insp.State())

	cached, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, rec.ID, cached[0].ID)
	assert.Equal(t, "srv-1", cached[0].RemoteID)
	assert.Equal(t, models.StatusPending, cached[0].Status)
	assert.Equal(t, "AB123CDRB", cached[0].LicensePlate)
	assert.Equal(t, "cta-42", cached[0].CTAID)
	assert.Len(t, cached[0].Results, len(models.ControlPoints))
	recognizer.AssertExpectations(t)
	remote.AssertExpectations(t)
}

func TestInspection_LowConfidenceChoices(t *testing.T) {
	low := Analysis{Decision: recognition.Decision{Kind: recognition.LowConfidence, Plate: "AB123CDRB", Score: 0.65, DScore: 0.9}}

	t.Run("accept suggestion", func(t *testing.T) {
		insp := NewInspection("", nil)
		gen, err := insp.SetPhoto(testPhoto)
		require.NoError(t, err)
		require.NoError(t, insp.ApplyAnalysis(gen, low))
		assert.Equal(t, StatePlateReview, insp.State())

		require.NoError(t, insp.Choose(ChoiceAccept, ""))
		assert.Equal(t, StateForm, insp.State())
		assert.Equal(t, "AB123CDRB", insp.Plate())
	})

	t.Run("manual entry", func(t *testing.T) {
		insp := NewInspection("", nil)
		gen, _ := insp.SetPhoto(testPhoto)
		require.NoError(t, insp.ApplyAnalysis(gen, low))

		require.NoError(t, insp.Choose(ChoiceManual, "xy-999-zz"))
		assert.Equal(t, "XY999ZZ", insp.Plate())
	})

	t.Run("manual entry needs a plate", func(t *testing.T) {
		insp := NewInspection("", nil)
		gen, _ := insp.SetPhoto(testPhoto)
		require.NoError(t, insp.ApplyAnalysis(gen, low))

		err := insp.Choose(ChoiceManual, "")
		assert.ErrorIs(t, err, models.ErrPlateRequired)
		assert.Equal(t, StatePlateReview, insp.State())
		assert.Empty(t, insp.Plate())
	})

	t.Run("retake", func(t *testing.T) {
		insp := NewInspection("", nil)
		gen, _ := insp.SetPhoto(testPhoto)
		require.NoError(t, insp.ApplyAnalysis(gen, low))

		require.NoError(t, insp.Choose(ChoiceRetake, ""))
		assert.Equal(t, StateCapture, insp.State())
		assert.True(t, insp.Photo().IsEmpty())
	})

	t.Run("manual entry required after failure", func(t *testing.T) {
		insp := NewInspection("", nil)
		gen, _ := insp.SetPhoto(testPhoto)
		require.NoError(t, insp.ApplyAnalysis(gen, Analysis{Failed: true}))

		err := insp.Choose(ChoiceAccept, "")
		assert.ErrorIs(t, err, ErrValidation)
		err = insp.Choose(ChoiceManual, " -- ")
		assert.ErrorIs(t, err, models.ErrPlateRequired)
		assert.Equal(t, StatePlateReview, insp.State())
	})
}

func TestInspection_StaleRecognitionDiscarded(t *testing.T) {
	insp := NewInspection("", nil)
	oldGen, err := insp.SetPhoto(testPhoto)
	require.NoError(t, err)

	// user retakes before the first recognition returns
	require.NoError(t, insp.Retake())
	newGen, err := insp.SetPhoto(testPhoto)
	require.NoError(t, err)

	auto := Analysis{Decision: recognition.Decision{Kind: recognition.AutoAccept, Plate: "OLD1RB"}}
	assert.ErrorIs(t, insp.ApplyAnalysis(oldGen, auto), ErrStale)
	assert.Equal(t, StateCapture, insp.State())
	assert.Empty(t, insp.Plate())

	auto.Decision.Plate = "NEW1RB"
	require.NoError(t, insp.ApplyAnalysis(newGen, auto))
	assert.Equal(t, "NEW1RB", insp.Plate())

	assert.ErrorIs(t, insp.ApplyAnalysis(newGen, auto), ErrStale, "a result cannot be applied twice")
}

func TestInspection_FormValidation(t *testing.T) {
	insp := NewInspection("", []string{"EKPE"})
	gen, _ := insp.SetPhoto(testPhoto)
	require.NoError(t, insp.ApplyAnalysis(gen, Analysis{Decision: recognition.Decision{Kind: recognition.AutoAccept, Plate: "AB123CDRB"}}))

	err := insp.SubmitForm(FormInput{VehicleType: models.VehicleTaxi, Center: "LOKOSSA"})
	assert.ErrorIs(t, err, models.ErrUnknownCenter)
	err = insp.SubmitForm(FormInput{VehicleType: "MOTO", Center: "EKPE"})
	assert.ErrorIs(t, err, models.ErrUnknownVehicleType)
	err = insp.SubmitForm(FormInput{VehicleType: models.VehicleTaxi})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StateForm, insp.State())

	require.NoError(t, insp.SubmitForm(FormInput{LicensePlate: "AB123CEDRB", VehicleType: models.VehicleTaxi, Center: "EKPE"}))
	assert.Equal(t, "AB123CEDRB", insp.Vehicle().LicensePlate)
}

func TestInspection_FormPlateIsCleaned(t *testing.T) {
	insp := NewInspection("", []string{"EKPE"})
	gen, _ := insp.SetPhoto(testPhoto)
	require.NoError(t, insp.ApplyAnalysis(gen, Analysis{Failed: true}))
	require.NoError(t, insp.Choose(ChoiceManual, "ab 123-cd"))
	assert.Equal(t, "AB123CD", insp.Plate())

	require.NoError(t, insp.SubmitForm(FormInput{LicensePlate: "ab 123-cd", VehicleType: models.VehicleLight, Center: "EKPE"}))
	assert.Equal(t, "AB123CD", insp.Vehicle().LicensePlate)
	assert.Equal(t, "AB123CD", insp.Plate())
}

func TestInspection_FormPlateOnlyPunctuationKeepsReviewedPlate(t *testing.T) {
	insp := NewInspection("", []string{"EKPE"})
	gen, _ := insp.SetPhoto(testPhoto)
	require.NoError(t, insp.ApplyAnalysis(gen, Analysis{Decision: recognition.Decision{Kind: recognition.AutoAccept, Plate: "AB123CDRB"}}))

	require.NoError(t, insp.SubmitForm(FormInput{LicensePlate: " - ", VehicleType: models.VehicleLight, Center: "EKPE"}))
	assert.Equal(t, "AB123CDRB", insp.Vehicle().LicensePlate)
}

func TestInspection_IncompleteChecklistBlocksPreview(t *testing.T) {
	insp := NewInspection("", nil)
	gen, _ := insp.SetPhoto(testPhoto)
	require.NoError(t, insp.ApplyAnalysis(gen, Analysis{Decision: recognition.Decision{Kind: recognition.AutoAccept, Plate: "AB123CDRB"}}))
	require.NoError(t, insp.SubmitForm(FormInput{VehicleType: models.VehicleHeavy, Center: "POBE"}))

	insp.Checklist().SetDefectLevel("id_1", models.DefectMajor)
	_, err := insp.Preview("tech", "")
	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Len(t, incomplete.Missing, len(models.ControlPoints))
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, strings.HasPrefix(err.Error(), "10 control point"))

	fillChecklist(insp)
	_, err = insp.Preview("tech", "")
	require.NoError(t, err)
	assert.Equal(t, StatePreview, insp.State())

	require.NoError(t, insp.Back())
	assert.Equal(t, StateChecklist, insp.State())
	require.NoError(t, insp.Back())
	assert.Equal(t, StateForm, insp.State())
	assert.ErrorIs(t, insp.Back(), ErrWrongState)
}

func TestInspection_WrongStep(t *testing.T) {
	insp := NewInspection("", nil)
	assert.ErrorIs(t, insp.SubmitForm(FormInput{}), ErrWrongState)
	assert.ErrorIs(t, insp.Choose(ChoiceAccept, ""), ErrWrongState)
	_, err := insp.Draft()
	assert.ErrorIs(t, err, ErrWrongState)
	_, err = insp.SetPhoto(models.Photo{})
	assert.ErrorIs(t, err, ErrNoPhoto)
	assert.NotEmpty(t, insp.CTAID)
}

func TestInspection_SubmitFailureStaysInPreview(t *testing.T) {
	insp := NewInspection("cta-1", nil)
	gen, _ := insp.SetPhoto(testPhoto)
	require.NoError(t, insp.ApplyAnalysis(gen, Analysis{Decision: recognition.Decision{Kind: recognition.AutoAccept, Plate: "AB123CDRB"}}))
	require.NoError(t, insp.SubmitForm(FormInput{VehicleType: models.VehicleLight, Center: "EKPE"}))
	fillChecklist(insp)
	_, err := insp.Preview("tech", "")
	require.NoError(t, err)

	remote := new(MockPhotoSubmitter)
	remote.On("SubmitPhoto", mock.Anything, "jwt", mock.Anything).Return(nil, errors.New("network down")).Once()
	store := new(MockRecordStore)

	_, err = insp.Submit(context.Background(), NewSubmitter(remote, store, nil, nil, nil), techSession())
	assert.Error(t, err)
	assert.Equal(t, StatePreview, insp.State())
	store.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}
