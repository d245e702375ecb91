package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cnsr/cta-inspection/internal/models"
)

// DefaultNominatimURL is the public OpenStreetMap reverse geocoding endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"

var ErrNoAddress = errors.New("no address found")

// Address is the subset of the Nominatim address object we format.
type Address struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	Postcode    string `json:"postcode"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Country     string `json:"country"`
}

// Nominatim reverse-geocodes through the Nominatim HTTP API.
type Nominatim struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewNominatim creates a Nominatim geocoder for baseURL.
func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{
		BaseURL:    baseURL,
		UserAgent:  "CTA-App/1.0",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Reverse implements Geocoder.
func (n *Nominatim) Reverse(ctx context.Context, loc models.Location) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", n.UserAgent)

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string   `json:"display_name"`
		Address     *Address `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}
	if body.DisplayName == "" || body.Address == nil {
		return "", ErrNoAddress
	}
	formatted := FormatAddress(*body.Address)
	if formatted == "" {
		return "", ErrNoAddress
	}
	return formatted, nil
}

// FormatAddress joins the parts that are present:
// "road number, postcode locality, country".
func FormatAddress(a Address) string {
	var parts []string

	if a.Road != "" {
		street := a.Road
		if a.HouseNumber != "" {
			street += " " + a.HouseNumber
		}
		parts = append(parts, street)
	}

	locality := a.City
	if locality == "" {
		locality = a.Town
	}
	if locality == "" {
		locality = a.Village
	}
	place := strings.TrimSpace(strings.Join(nonEmpty(a.Postcode, locality), " "))
	if place != "" {
		parts = append(parts, place)
	}

	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
