// Package workflow drives the technician and supervisor flows: capture,
// plate review, form, checklist, preview, submission and review.
package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/recognition"
)

var ErrNoPhoto = errors.New("no photo captured")

// Camera is the platform capture capability.
type Camera interface {
	Capture(ctx context.Context) (models.Photo, error)
}

// FileCamera "captures" an image already on disk.
type FileCamera struct {
	Path string
	now  func() time.Time
}

// NewFileCamera returns a camera reading path.
func NewFileCamera(path string) *FileCamera {
	return &FileCamera{Path: path, now: time.Now}
}

// Capture implements Camera.
func (c *FileCamera) Capture(ctx context.Context) (models.Photo, error) {
	if err := ctx.Err(); err != nil {
		return models.Photo{}, err
	}
	if c.Path == "" {
		return models.Photo{}, ErrNoPhoto
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return models.Photo{}, fmt.Errorf("read photo: %w", err)
	}
	if len(data) == 0 {
		return models.Photo{}, ErrNoPhoto
	}
	uri := c.Path
	if abs, err := filepath.Abs(c.Path); err == nil {
		uri = abs
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return models.Photo{
		URI:        "file://" + uri,
		Base64:     base64.StdEncoding.EncodeToString(data),
		CapturedAt: now(),
	}, nil
}

// Choice is the technician's answer to a plate suggestion.
type Choice int

const (
	ChoiceAccept Choice = iota
	ChoiceManual
	ChoiceRetake
)

func (c Choice) String() string {
	switch c {
	case ChoiceAccept:
		return "accept"
	case ChoiceManual:
		return "manual"
	case ChoiceRetake:
		return "retake"
	default:
		return "unknown"
	}
}

// Choices lists what the technician may do for a decision.
func Choices(d recognition.Decision) []Choice {
	switch d.Kind {
	case recognition.AutoAccept:
		return nil
	case recognition.LowConfidence:
		return []Choice{ChoiceAccept, ChoiceManual, ChoiceRetake}
	default:
		return []Choice{ChoiceManual, ChoiceRetake}
	}
}

// Analysis is the outcome of one recognition attempt.
type Analysis struct {
	Decision recognition.Decision
	// Failed is set when the recognizer could not be reached or answered
	// with an error. The flow continues with manual entry.
	Failed bool
}

// Outcome labels the result for display and logs.
func (a Analysis) Outcome() string {
	if a.Failed {
		return "failed"
	}
	return a.Decision.Kind.String()
}

// Capturer runs plate recognition on a captured photo.
type Capturer struct {
	recognizer recognition.Recognizer
}

// NewCapturer returns a Capturer. A nil recognizer always yields manual
// entry.
func NewCapturer(r recognition.Recognizer) *Capturer {
	return &Capturer{recognizer: r}
}

// Analyze makes a single recognition attempt. Errors are never returned:
// any failure degrades to manual entry.
func (c *Capturer) Analyze(ctx context.Context, photo models.Photo) Analysis {
	if c.recognizer == nil {
		return Analysis{Decision: recognition.Decision{Kind: recognition.NoPlate}, Failed: true}
	}
	candidates, err := c.recognizer.Recognize(ctx, photo)
	if err != nil {
		log.WithError(err).Warn("Plate recognition failed, falling back to manual entry")
		return Analysis{Decision: recognition.Decision{Kind: recognition.NoPlate}, Failed: true}
	}
	d := recognition.Decide(candidates)
	log.WithFields(log.Fields{
		"decision": d.Kind.String(),
		"plate":    d.Plate,
		"score":    d.Score,
		"dscore":   d.DScore,
	}).Info("Plate recognition completed")
	return Analysis{Decision: d}
}
