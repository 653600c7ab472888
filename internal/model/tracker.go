package model

import "time"

// Tracker is a dependent whose device location is reported periodically.
type Tracker struct {
	ID            string       `json:"_id"`
	ChildName     string       `json:"childName"`
	ContactNumber string       `json:"contactNumber"`
	DeviceID      string       `json:"deviceId"`
	IsActive      bool         `json:"isActive"`
	LastLocation  *LocationFix `json:"lastLocation,omitempty"`
	CreatedAt     time.Time    `json:"createdAt,omitempty"`
}

type NewTracker struct {
	ChildName     string `json:"childName"`
	ContactNumber string `json:"contactNumber"`
	DeviceID      string `json:"deviceId"`
}

// SelectCurrent picks the tracker the client follows: the first active one
// in list order, else the first entry. It returns nil for an empty list.
func SelectCurrent(trackers []Tracker) *Tracker {
	if len(trackers) == 0 {
		return nil
	}
	for i := range trackers {
		if trackers[i].IsActive {
			t := trackers[i]
			return &t
		}
	}
	t := trackers[0]
	return &t
}
