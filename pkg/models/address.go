package models

import "time"

//go:generate easyjson address.go

// Address is one stop: the raw text found in an image or typed by the
// user, its standardized form and its coordinates. Coordinates are zero
// when geocoding found no match.
//
//easyjson:json
type Address struct {
	Original     string  `json:"original"`
	Standardized string  `json:"standardized"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Unresolved returns the zero-coordinate fallback for an address that
// could not be geocoded.
func Unresolved(address string) Address {
	return Address{Original: address, Standardized: address}
}

// Route is an ordered list of stops, optionally tied to source images.
//
//easyjson:json
type Route struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Date      time.Time `json:"date"`
	Addresses []Address `json:"addresses"`
	ImageIDs  []string  `json:"imageIds,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

// RouteState is the route currently being edited.
//
//easyjson:json
type RouteState struct {
	Addresses      []Address `json:"addresses"`
	CurrentRouteID string    `json:"currentRouteId,omitempty"`
}

// ParseAddressesRequest is the body of POST /v1/addresses.
type ParseAddressesRequest struct {
	Image string `json:"image"` // base64, with or without a data URL prefix
}

// ParseAddressesResponse carries either addresses or an error.
type ParseAddressesResponse struct {
	Addresses []Address `json:"addresses"`
	Error     string    `json:"error,omitempty"`
}

// GeocodeAddressRequest is the body of PUT /v1/geocode-address.
type GeocodeAddressRequest struct {
	Address string `json:"address"`
}

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
