package report

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnsr/cta-inspection/internal/checklist"
	"github.com/cnsr/cta-inspection/internal/models"
)

func fixedInput() Input {
	visit := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e := checklist.New()
	for _, p := range models.ControlPoints {
		e.SetDefectLevel(p.ID, models.DefectMinor)
		e.SetResult(p.ID, models.VerdictGood)
	}
	e.SetDefectLevel("car_2", models.DefectCritical)
	e.SetResult("car_2", models.VerdictBad)
	return Input{
		Vehicle:    models.NewVehicleInfo("AB123CDRB", models.VehicleLight, "EKPE", visit),
		Results:    e.Results(),
		Technician: "Kokouvi",
		Timestamp:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestRender_AllSections(t *testing.T) {
	html, err := Render(fixedInput())
	require.NoError(t, err)

	assert.Contains(t, html, "<h3>IDENTIFICATION</h3>")
	assert.Contains(t, html, "<h3>CAROSSERIE</h3>")
	assert.Contains(t, html, "<h3>VISIBILITÉ</h3>")
	assert.Less(t, strings.Index(html, "IDENTIFICATION"), strings.Index(html, "CAROSSERIE"))
	assert.Less(t, strings.Index(html, "CAROSSERIE"), strings.Index(html, "VISIBILITÉ"))

	assert.Contains(t, html, "AB123CDRB")
	assert.Contains(t, html, "15/01/2024")
	assert.Contains(t, html, "15/01/2025")
	assert.Contains(t, html, "Kokouvi")
	assert.Contains(t, html, "15/01/2024 10:30:00")
	assert.Contains(t, html, "Tôlerie")
	assert.Contains(t, html, "#D32F2F")
	assert.Contains(t, html, "#f44336")
	assert.Contains(t, html, "#FF9800")
	assert.Contains(t, html, "#4CAF50")
	assert.NotContains(t, html, "company-logo\" src")
}

func TestRender_Deterministic(t *testing.T) {
	a, err := Render(fixedInput())
	require.NoError(t, err)
	b, err := Render(fixedInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_OnlyNonEmptyFunctions(t *testing.T) {
	level := models.DefectMajor
	in := fixedInput()
	in.Results = []models.ControlResult{{PointID: "vis_2", DefectLevel: &level}}

	html, err := Render(in)
	require.NoError(t, err)

	assert.NotContains(t, html, "<h3>IDENTIFICATION</h3>")
	assert.NotContains(t, html, "<h3>CAROSSERIE</h3>")
	assert.Contains(t, html, "<h3>VISIBILITÉ</h3>")
	assert.Contains(t, html, "Rétroviseur(s)")
	assert.Contains(t, html, "#FF5722")
	assert.Equal(t, 1, strings.Count(html, "font-weight: bold;\">"), "verdict badge must be absent when unset")
}

func TestRender_UnknownPointFallsBackToId(t *testing.T) {
	verdict := models.VerdictGood
	in := fixedInput()
	in.Results = []models.ControlResult{{PointID: "id_99", Result: &verdict}}

	html, err := Render(in)
	require.NoError(t, err)
	assert.Contains(t, html, "<td>id_99</td>")
}

func TestRender_EscapesTechnicianName(t *testing.T) {
	in := fixedInput()
	in.Technician = "<script>alert(1)</script>"

	html, err := Render(in)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRender_Logo(t *testing.T) {
	in := fixedInput()
	in.Logo = "iVBORw0KGgo="

	html, err := Render(in)
	require.NoError(t, err)
	assert.Contains(t, html, "data:image/png;base64,iVBORw0KGgo=")
	assert.Contains(t, html, "watermark")
}

func TestColors(t *testing.T) {
	assert.Equal(t, "#FF9800", DefectColor(models.DefectMinor))
	assert.Equal(t, "#FF5722", DefectColor(models.DefectMajor))
	assert.Equal(t, "#D32F2F", DefectColor(models.DefectCritical))
	assert.Equal(t, "#666", DefectColor("Autre"))
	assert.Equal(t, "#4CAF50", VerdictColor(models.VerdictGood))
	assert.Equal(t, "#f44336", VerdictColor(models.VerdictBad))
}

type failingConverter struct{}

func (failingConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	return nil, errors.New("no chrome")
}

func TestEncodePDF(t *testing.T) {
	out, err := EncodePDF(context.Background(), HTMLFallback{}, "<html></html>")
	require.NoError(t, err)
	decoded, _ := base64.StdEncoding.DecodeString(out)
	assert.Equal(t, "<html></html>", string(decoded))

	_, err = EncodePDF(context.Background(), HTMLFallback{}, "")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = EncodePDF(context.Background(), failingConverter{}, "<html></html>")
	assert.Error(t, err)
}
