package models

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// Geolocation is a position fix with its reverse-geocoded address.
// Address is empty when geocoding failed.
type Geolocation struct {
	Location
	Address string `bson:"adresse,omitempty" json:"adresse,omitempty"`
}
