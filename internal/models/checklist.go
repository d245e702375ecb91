package models

import "strings"

// Function groups control points on the inspection sheet.
type Function string

const (
	FunctionIdentification Function = "IDENTIFICATION"
	FunctionBodywork       Function = "CAROSSERIE"
	FunctionVisibility     Function = "VISIBILITÉ"
)

// Functions is the fixed order in which functions appear on a report.
var Functions = []Function{FunctionIdentification, FunctionBodywork, FunctionVisibility}

// DefectLevel is the severity of a checklist finding.
type DefectLevel string

const (
	DefectMinor    DefectLevel = "Mineur"
	DefectMajor    DefectLevel = "Majeur"
	DefectCritical DefectLevel = "Critique"
)

// IsValid reports whether l is a known defect level.
func (l DefectLevel) IsValid() bool {
	switch l {
	case DefectMinor, DefectMajor, DefectCritical:
		return true
	}
	return false
}

// Verdict is the pass/fail outcome of a checklist point.
type Verdict string

const (
	VerdictGood Verdict = "Bon"
	VerdictBad  Verdict = "Mauvais"
)

// IsValid reports whether v is a known verdict.
func (v Verdict) IsValid() bool {
	return v == VerdictGood || v == VerdictBad
}

// ControlPoint is one inspected attribute of the vehicle.
type ControlPoint struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Function Function `json:"function"`
}

// ControlResult holds the technician's findings for one control point.
// Nil fields have not been filled in yet.
type ControlResult struct {
	PointID     string       `bson:"point_id" json:"pointId"`
	DefectLevel *DefectLevel `bson:"defect_level,omitempty" json:"defectLevel"`
	Result      *Verdict     `bson:"result,omitempty" json:"result"`
}

// IsComplete reports whether both fields have been set.
func (r ControlResult) IsComplete() bool {
	return r.DefectLevel != nil && r.Result != nil
}

// ControlPoints is the static inspection catalog.
var ControlPoints = []ControlPoint{
	{ID: "id_1", Name: "Plaque d'immatriculation", Function: FunctionIdentification},
	{ID: "id_2", Name: "Marque", Function: FunctionIdentification},
	{ID: "id_3", Name: "Type", Function: FunctionIdentification},
	{ID: "id_4", Name: "Date de 1ère mise en circulation", Function: FunctionIdentification},
	{ID: "car_1", Name: "Série (châssis)", Function: FunctionBodywork},
	{ID: "car_2", Name: "Tôlerie", Function: FunctionBodywork},
	{ID: "vis_1", Name: "Vitrage", Function: FunctionVisibility},
	{ID: "vis_2", Name: "Rétroviseur(s)", Function: FunctionVisibility},
	{ID: "vis_3", Name: "Essuie-glace", Function: FunctionVisibility},
	{ID: "vis_4", Name: "Pare-Soleil", Function: FunctionVisibility},
}

var functionPrefixes = map[Function]string{
	FunctionIdentification: "id_",
	FunctionBodywork:       "car_",
	FunctionVisibility:     "vis_",
}

// FunctionForPoint maps a point id to its function by prefix.
func FunctionForPoint(pointID string) (Function, bool) {
	for _, fn := range Functions {
		if strings.HasPrefix(pointID, functionPrefixes[fn]) {
			return fn, true
		}
	}
	return "", false
}

// PointName returns the display name for a point id, or the id itself
// when the point is not in the catalog.
func PointName(pointID string) string {
	for _, p := range ControlPoints {
		if p.ID == pointID {
			return p.Name
		}
	}
	return pointID
}
