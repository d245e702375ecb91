// Package report renders the inspection sheet (fiche de contrôle) as a
// self-contained HTML document.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/cnsr/cta-inspection/internal/checklist"
	"github.com/cnsr/cta-inspection/internal/models"
)

// Input is everything that appears on the sheet.
type Input struct {
	Vehicle    models.VehicleInfo
	Results    []models.ControlResult
	Technician string
	Timestamp  time.Time
	// Logo is an optional base64 PNG used as header mark and watermark.
	Logo string
}

var defectColors = map[models.DefectLevel]string{
	models.DefectMinor:    "#FF9800",
	models.DefectMajor:    "#FF5722",
	models.DefectCritical: "#D32F2F",
}

var verdictColors = map[models.Verdict]string{
	models.VerdictGood: "#4CAF50",
	models.VerdictBad:  "#f44336",
}

// DefectColor returns the badge color for a defect level.
func DefectColor(l models.DefectLevel) string {
	if c, ok := defectColors[l]; ok {
		return c
	}
	return "#666"
}

// VerdictColor returns the badge color for a verdict.
func VerdictColor(v models.Verdict) string {
	if c, ok := verdictColors[v]; ok {
		return c
	}
	return "#666"
}

type badge struct {
	Text  string
	Color template.CSS
}

type row struct {
	Name   string
	Defect *badge
	Result *badge
}

type section struct {
	Function models.Function
	Rows     []row
}

type sheetView struct {
	Vehicle      models.VehicleInfo
	VehicleType  string
	VisitDate    string
	ValidityDate string
	Sections     []section
	Technician   string
	Timestamp    string
	Logo         template.URL
}

var sheet = template.Must(template.New("fiche").Parse(sheetTemplate))

// Render produces the HTML document. The output depends only on in.
func Render(in Input) (string, error) {
	p := sheetView{
		Vehicle:      in.Vehicle,
		VehicleType:  in.Vehicle.VehicleType.Label(),
		VisitDate:    frenchDate(in.Vehicle.VisitDate),
		ValidityDate: frenchDate(in.Vehicle.ValidityDate),
		Sections:     sections(in.Results),
		Technician:   in.Technician,
		Timestamp:    in.Timestamp.Format("02/01/2006 15:04:05"),
	}
	if logo := strings.TrimSpace(in.Logo); logo != "" {
		p.Logo = template.URL("data:image/png;base64," + logo)
	}

	var buf bytes.Buffer
	if err := sheet.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render inspection sheet: %w", err)
	}
	return buf.String(), nil
}

func sections(results []models.ControlResult) []section {
	var out []section
	for _, fn := range models.Functions {
		group := checklist.GroupByFunction(results, fn)
		if len(group) == 0 {
			continue
		}
		s := section{Function: fn}
		for _, r := range group {
			s.Rows = append(s.Rows, toRow(r))
		}
		out = append(out, s)
	}
	return out
}

func toRow(r models.ControlResult) row {
	out := row{Name: models.PointName(r.PointID)}
	if r.DefectLevel != nil {
		out.Defect = &badge{Text: string(*r.DefectLevel), Color: template.CSS(DefectColor(*r.DefectLevel))}
	}
	if r.Result != nil {
		out.Result = &badge{Text: string(*r.Result), Color: template.CSS(VerdictColor(*r.Result))}
	}
	return out
}

func frenchDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

const sheetTemplate = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Fiche de Contrôle Technique</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; color: #2c3e50; }
.header { text-align: center; background: #3498db; color: white; padding: 25px 20px; margin-bottom: 30px; border-radius: 12px; position: relative; }
.header h1 { margin: 0; font-size: 22px; }
.header p { margin: 5px 0; font-size: 13px; }
.company-logo { position: absolute; top: 15px; left: 15px; width: 60px; height: 60px; opacity: 0.3; }
.watermark { position: fixed; top: 50%; left: 50%; transform: translate(-50%, -50%) rotate(-45deg); opacity: 0.05; z-index: -1; }
.watermark img { width: 300px; height: 300px; }
.vehicle-info { background: #ecf0f1; padding: 18px; border-radius: 12px; margin-bottom: 30px; border-left: 5px solid #3498db; }
.info-item { display: flex; justify-content: space-between; padding: 6px 0; font-size: 13px; }
.info-label { font-weight: 600; }
.function h3 { color: #2196F3; text-align: center; background-color: #f0f8ff; padding: 10px; margin: 0; border-radius: 5px; }
table { width: 100%; border-collapse: collapse; margin: 10px 0 20px; }
th, td { border: 1px solid #ddd; padding: 8px; font-size: 12px; }
th { background-color: #f5f5f5; }
td.badge { text-align: center; }
.footer { margin-top: 40px; display: flex; justify-content: space-between; }
.technicien-name { font-size: 16px; font-weight: bold; }
.timestamp { font-size: 12px; text-align: right; }
@media print { .vehicle-info, .function { page-break-inside: avoid; } }
</style>
</head>
<body>
{{- if .Logo}}
<div class="watermark"><img src="{{.Logo}}" alt=""></div>
{{- end}}
<div class="header">
{{- if .Logo}}
<img class="company-logo" src="{{.Logo}}" alt="">
{{- end}}
<h1>FICHE DE CONTRÔLE TECHNIQUE</h1>
<p>Centre National de Sécurité Routière</p>
<p>Centre : {{.Vehicle.Center}}</p>
</div>
<div class="vehicle-info">
<h2>Informations du véhicule</h2>
<div class="info-item"><span class="info-label">Immatriculation</span><span class="info-value">{{.Vehicle.LicensePlate}}</span></div>
<div class="info-item"><span class="info-label">Type de véhicule</span><span class="info-value">{{.VehicleType}}</span></div>
<div class="info-item"><span class="info-label">Centre</span><span class="info-value">{{.Vehicle.Center}}</span></div>
<div class="info-item"><span class="info-label">Date de visite</span><span class="info-value">{{.VisitDate}}</span></div>
<div class="info-item"><span class="info-label">Date de validité</span><span class="info-value">{{.ValidityDate}}</span></div>
</div>
<div class="checklist-section">
<h2>Points de contrôle</h2>
{{- range .Sections}}
<div class="function">
<h3>{{.Function}}</h3>
<table>
<thead><tr><th>Point de Contrôle</th><th>Niveau de Défaillance</th><th>Résultat</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Name}}</td><td class="badge">{{with .Defect}}<span style="color: {{.Color}}; font-weight: bold;">{{.Text}}</span>{{end}}</td><td class="badge">{{with .Result}}<span style="color: {{.Color}}; font-weight: bold;">{{.Text}}</span>{{end}}</td></tr>
{{- end}}
</tbody>
</table>
</div>
{{- end}}
</div>
<div class="footer">
<div class="signature"><p>Signature du technicien</p><div class="technicien-name">{{.Technician}}</div></div>
<div class="timestamp"><p>Généré le {{.Timestamp}}</p></div>
</div>
</body>
</html>
`
