package model

import (
	"time"
	"unicode/utf8"
)

const (
	ActivityCapacity       = 10
	activityDescriptionMax = 100
)

const (
	ActivityReport   = "report"
	ActivityLocation = "location"
	ActivityTracker  = "tracker"
)

// ActivityEntry is a client-only record shown on the dashboard.
type ActivityEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
}

// TruncateDescription keeps at most 100 runes of s and appends "...".
func TruncateDescription(s string) string {
	if utf8.RuneCountInString(s) > activityDescriptionMax {
		s = string([]rune(s)[:activityDescriptionMax])
	}
	return s + "..."
}
