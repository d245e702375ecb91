package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnsr/cta-inspection/internal/models"
)

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name string
		in   Address
		want string
	}{
		{"full", Address{Road: "Rue 12", HouseNumber: "4", Postcode: "01BP", City: "Cotonou", Country: "Bénin"}, "Rue 12 4, 01BP Cotonou, Bénin"},
		{"town fallback", Address{Road: "RNIE 1", Town: "Lokossa", Country: "Bénin"}, "RNIE 1, Lokossa, Bénin"},
		{"village fallback", Address{Village: "Ekpè"}, "Ekpè"},
		{"postcode only", Address{Postcode: "229"}, "229"},
		{"country only", Address{Country: "Bénin"}, "Bénin"},
		{"empty", Address{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAddress(tt.in))
		})
	}
}

func TestNominatim_Reverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CTA-App/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "6.3703", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.3912", r.URL.Query().Get("lon"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"display_name":"x","address":{"road":"Avenue Steinmetz","city":"Cotonou","country":"Bénin"}}`))
	}))
	defer server.Close()

	addr, err := NewNominatim(server.URL).Reverse(context.Background(), models.Location{Lat: 6.3703, Lon: 2.3912})
	require.NoError(t, err)
	assert.Equal(t, "Avenue Steinmetz, Cotonou, Bénin", addr)
}

func TestNominatim_NoAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer server.Close()

	_, err := NewNominatim(server.URL).Reverse(context.Background(), models.Location{})
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestNominatim_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewNominatim(server.URL).Reverse(context.Background(), models.Location{})
	assert.Error(t, err)
}

type stubGeocoder struct {
	address string
	err     error
}

func (s stubGeocoder) Reverse(ctx context.Context, loc models.Location) (string, error) {
	return s.address, s.err
}

func TestService_Locate(t *testing.T) {
	loc := &models.Location{Lat: 6.5, Lon: 2.6}

	t.Run("position and address", func(t *testing.T) {
		g := NewService(StaticLocator{Location: loc}, stubGeocoder{address: "Porto-Novo, Bénin"}).Locate(context.Background())
		require.NotNil(t, g)
		assert.Equal(t, 6.5, g.Lat)
		assert.Equal(t, "Porto-Novo, Bénin", g.Address)
	})

	t.Run("geocoder failure keeps position", func(t *testing.T) {
		g := NewService(StaticLocator{Location: loc}, stubGeocoder{err: errors.New("offline")}).Locate(context.Background())
		require.NotNil(t, g)
		assert.Equal(t, 2.6, g.Lon)
		assert.Empty(t, g.Address)
	})

	t.Run("no position", func(t *testing.T) {
		assert.Nil(t, NewService(StaticLocator{}, stubGeocoder{}).Locate(context.Background()))
	})

	t.Run("nil service", func(t *testing.T) {
		var s *Service
		assert.Nil(t, s.Locate(context.Background()))
	})
}
