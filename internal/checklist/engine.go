// Package checklist tracks the technician's findings for the fixed
// catalog of control points during one inspection.
package checklist

import (
	"github.com/cnsr/cta-inspection/internal/models"
)

// Engine holds one ControlResult per catalog point, in catalog order.
type Engine struct {
	results []models.ControlResult
	index   map[string]int
}

// New creates an engine with every result unset.
func New() *Engine {
	return NewWithCatalog(models.ControlPoints)
}

// NewWithCatalog creates an engine over an explicit catalog.
func NewWithCatalog(points []models.ControlPoint) *Engine {
	e := &Engine{
		results: make([]models.ControlResult, len(points)),
		index:   make(map[string]int, len(points)),
	}
	for i, p := range points {
		e.results[i] = models.ControlResult{PointID: p.ID}
		e.index[p.ID] = i
	}
	return e
}

// SetDefectLevel records the defect level for a point. Unknown point ids
// are ignored.
func (e *Engine) SetDefectLevel(pointID string, level models.DefectLevel) {
	i, ok := e.index[pointID]
	if !ok {
		return
	}
	e.results[i].DefectLevel = &level
}

// SetResult records the verdict for a point. Unknown point ids are ignored.
func (e *Engine) SetResult(pointID string, verdict models.Verdict) {
	i, ok := e.index[pointID]
	if !ok {
		return
	}
	e.results[i].Result = &verdict
}

// Result returns the current result for a point.
func (e *Engine) Result(pointID string) (models.ControlResult, bool) {
	i, ok := e.index[pointID]
	if !ok {
		return models.ControlResult{}, false
	}
	return e.results[i], true
}

// Missing returns the results that still lack a defect level or a verdict.
func (e *Engine) Missing() []models.ControlResult {
	var missing []models.ControlResult
	for _, r := range e.results {
		if !r.IsComplete() {
			missing = append(missing, r)
		}
	}
	return missing
}

// Complete reports whether every point has both fields set.
func (e *Engine) Complete() bool {
	return len(e.Missing()) == 0
}

// GroupByFunction returns the results whose point belongs to fn.
func (e *Engine) GroupByFunction(fn models.Function) []models.ControlResult {
	return GroupByFunction(e.results, fn)
}

// Results returns a copy of all results in catalog order.
func (e *Engine) Results() []models.ControlResult {
	out := make([]models.ControlResult, len(e.results))
	copy(out, e.results)
	return out
}

// GroupByFunction filters results to those whose point id maps to fn.
func GroupByFunction(results []models.ControlResult, fn models.Function) []models.ControlResult {
	var out []models.ControlResult
	for _, r := range results {
		if got, ok := models.FunctionForPoint(r.PointID); ok && got == fn {
			out = append(out, r)
		}
	}
	return out
}
