package model

import "time"

const (
	ReportSuspiciousPerson  = "suspicious-person"
	ReportSuspiciousVehicle = "suspicious-vehicle"
	ReportNoiseDisturbance  = "noise-disturbance"
	ReportTrespassing       = "trespassing"
	ReportVandalism         = "vandalism"
	ReportOther             = "other"
)

const (
	StatusPending     = "pending"
	StatusUnderReview = "under-review"
	StatusResolved    = "resolved"
	StatusDismissed   = "dismissed"
)

var reportTypeNames = map[string]string{
	ReportSuspiciousPerson:  "Suspicious Person",
	ReportSuspiciousVehicle: "Suspicious Vehicle",
	ReportNoiseDisturbance:  "Noise Disturbance",
	ReportTrespassing:       "Trespassing",
	ReportVandalism:         "Vandalism",
	ReportOther:             "Other",
}

var statusNames = map[string]string{
	StatusPending:     "Pending",
	StatusUnderReview: "Under Review",
	StatusResolved:    "Resolved",
	StatusDismissed:   "Dismissed",
}

// ReportTypeName returns the display name for a report type, or the raw
// type when it is unknown.
func ReportTypeName(t string) string {
	if name, ok := reportTypeNames[t]; ok {
		return name
	}
	return t
}

func StatusName(s string) string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return s
}

type ReportLocation struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates"`
}

type Report struct {
	ID           string         `json:"_id"`
	Type         string         `json:"type"`
	Location     ReportLocation `json:"location"`
	IncidentTime time.Time      `json:"incidentTime"`
	Description  string         `json:"description"`
	IsAnonymous  bool           `json:"isAnonymous"`
	Visibility   string         `json:"visibility"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type NewReport struct {
	Type         string         `json:"type"`
	Location     ReportLocation `json:"location"`
	IncidentTime time.Time      `json:"incidentTime"`
	Description  string         `json:"description"`
	IsAnonymous  bool           `json:"isAnonymous"`
	Visibility   string         `json:"visibility"`
}

// ReportFilter narrows the community feed. Empty fields are omitted.
type ReportFilter struct {
	Type   string
	Status string
}

type ReportStats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"byType"`
	ByStatus map[string]int `json:"byStatus"`
}
