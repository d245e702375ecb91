// Package geo provides the best-effort position and address attached to
// an inspection photo.
package geo

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/models"
)

var ErrNoFix = errors.New("no position available")

// Locator is the device capability that yields the current position.
type Locator interface {
	Position(ctx context.Context) (models.Location, error)
}

// Geocoder turns coordinates into a single formatted address.
type Geocoder interface {
	Reverse(ctx context.Context, loc models.Location) (string, error)
}

// StaticLocator returns a fixed position, or ErrNoFix when unset.
type StaticLocator struct {
	Location *models.Location
}

// Position implements Locator.
func (s StaticLocator) Position(ctx context.Context) (models.Location, error) {
	if s.Location == nil {
		return models.Location{}, ErrNoFix
	}
	return *s.Location, nil
}

// Service combines a locator and a geocoder.
type Service struct {
	locator  Locator
	geocoder Geocoder
}

// NewService creates a Service. geocoder may be nil.
func NewService(locator Locator, geocoder Geocoder) *Service {
	return &Service{locator: locator, geocoder: geocoder}
}

// Locate returns the current position and address. It never fails: a
// missing position yields nil and a failed geocode yields an empty address.
func (s *Service) Locate(ctx context.Context) *models.Geolocation {
	if s == nil || s.locator == nil {
		return nil
	}
	loc, err := s.locator.Position(ctx)
	if err != nil {
		log.WithError(err).Warn("Position unavailable, continuing without location")
		return nil
	}
	g := &models.Geolocation{Location: loc}
	if s.geocoder == nil {
		return g
	}
	address, err := s.geocoder.Reverse(ctx, loc)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"lat": loc.Lat,
			"lon": loc.Lon,
		}).Warn("Reverse geocoding failed")
		return g
	}
	g.Address = address
	return g
}
