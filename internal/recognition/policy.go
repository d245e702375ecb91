package recognition

// AcceptThreshold is the score both confidences must strictly exceed for a
// plate to be filled in without asking the technician.
const AcceptThreshold = 0.7

// Candidate is one plate returned by a recognizer.
type Candidate struct {
	Plate  string  `json:"plate"`
	Score  float64 `json:"score"`  // recognition confidence
	DScore float64 `json:"dscore"` // detection confidence
}

// DecisionKind tells the capture workflow how to proceed.
type DecisionKind int

const (
	// NoPlate: nothing detected, ask for manual entry or a retake.
	NoPlate DecisionKind = iota
	// AutoAccept: plate is filled in and the form opens directly.
	AutoAccept
	// LowConfidence: plate is offered as a suggestion only.
	LowConfidence
)

func (k DecisionKind) String() string {
	switch k {
	case AutoAccept:
		return "auto_accept"
	case LowConfidence:
		return "low_confidence"
	default:
		return "no_plate"
	}
}

// Decision is the outcome of applying the acceptance policy.
type Decision struct {
	Kind   DecisionKind
	Plate  string
	Score  float64
	DScore float64
}

// Decide applies the acceptance policy to the first candidate.
func Decide(candidates []Candidate) Decision {
	if len(candidates) == 0 {
		return Decision{Kind: NoPlate}
	}
	c := candidates[0]
	plate := NormalizePlate(c.Plate)
	if plate == "" {
		return Decision{Kind: NoPlate}
	}
	d := Decision{Plate: plate, Score: c.Score, DScore: c.DScore}
	if c.Score > AcceptThreshold && c.DScore > AcceptThreshold {
		d.Kind = AutoAccept
	} else {
		d.Kind = LowConfidence
	}
	return d
}
