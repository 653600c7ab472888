package model

import "time"

// LocationFix is a single position sample. Address is empty until the fix
// has been reverse-geocoded.
type LocationFix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdate is the body pushed for tracker and shared-location updates.
type LocationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Address   string  `json:"address"`
}

func (f LocationFix) Update() LocationUpdate {
	return LocationUpdate{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.Accuracy,
		Address:   f.Address,
	}
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type SharedLocation struct {
	ID         string    `json:"_id"`
	UserID     string    `json:"user,omitempty"`
	UserName   string    `json:"userName,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Address    string    `json:"address"`
	SharedWith []string  `json:"sharedWith,omitempty"`
	IsActive   bool      `json:"isActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

type ShareRequest struct {
	LocationUpdate
	SharedWith []string `json:"sharedWith"`
	// Duration is in minutes.
	Duration int `json:"duration"`
}
