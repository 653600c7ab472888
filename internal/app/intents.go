package app

import "time"

// Intent is a user action emitted by a front end and routed by Dispatch.
type Intent interface {
	intent()
}

type Login struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type Register struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Confirm  string `validate:"omitempty,eqfield=Password"`
	Password string `validate:"required,min=6,strongpassword"`
}

type Logout struct{}

type CheckAuth struct{}

type UpdateProfile struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
}

type ChangePassword struct {
	Current string `validate:"required"`
	Confirm string `validate:"required,eqfield=New"`
	New     string `validate:"required,min=6"`
}

type SubmitReport struct {
	Type        string `validate:"required,oneof=suspicious-person suspicious-vehicle noise-disturbance trespassing vandalism other"`
	Address     string `validate:"required"`
	Description string `validate:"required"`
	// IncidentTime defaults to now.
	IncidentTime time.Time
	Anonymous    bool
	// Visibility defaults to "public".
	Visibility string
}

type MyReports struct{}

type GetReport struct {
	ID string `validate:"required"`
}

// UpdateReport changes the non-empty fields of a report.
type UpdateReport struct {
	ID          string `validate:"required"`
	Description string
	Status      string `validate:"omitempty,oneof=pending under-review resolved dismissed"`
	Visibility  string
}

type DeleteReport struct {
	ID string `validate:"required"`
}

type GetReportStats struct{}

type Feed struct {
	Page   int
	Limit  int
	Type   string `validate:"omitempty,oneof=suspicious-person suspicious-vehicle noise-disturbance trespassing vandalism other"`
	Status string `validate:"omitempty,oneof=pending under-review resolved dismissed"`
}

type ListUsers struct {
	Page  int `validate:"gte=0"`
	Limit int `validate:"gte=0"`
}

// LoadTrackers selects the current tracker. With NoPolling set the loop is
// not started even when the tracker is active.
type LoadTrackers struct {
	NoPolling bool
}

type CreateTracker struct {
	ChildName     string `validate:"required"`
	ContactNumber string `validate:"required"`
	DeviceID      string `validate:"required"`
}

// ToggleTracker, DeleteTracker and TrackerHistory act on the current tracker
// when ID is empty.
type ToggleTracker struct {
	ID string
}

type DeleteTracker struct {
	ID string
}

type TrackerHistory struct {
	ID    string
	Limit int
}

type ShareLocation struct {
	SharedWith []string
	// Duration in minutes.
	Duration int `validate:"gte=0"`
}

type UpdateSharedLocation struct{}

type StopSharing struct{}

type MyLocation struct{}

type Nearby struct {
	// Radius in kilometres; zero uses the backend default.
	Radius float64 `validate:"gte=0"`
}

type LocationHistory struct {
	Limit int
}

type RecentActivity struct{}

func (Login) intent()                {}
func (Register) intent()             {}
func (Logout) intent()               {}
func (CheckAuth) intent()            {}
func (UpdateProfile) intent()        {}
func (ChangePassword) intent()       {}
func (SubmitReport) intent()         {}
func (MyReports) intent()            {}
func (GetReport) intent()            {}
func (UpdateReport) intent()         {}
func (ListUsers) intent()            {}
func (DeleteReport) intent()         {}
func (GetReportStats) intent()       {}
func (Feed) intent()                 {}
func (LoadTrackers) intent()         {}
func (CreateTracker) intent()        {}
func (ToggleTracker) intent()        {}
func (DeleteTracker) intent()        {}
func (TrackerHistory) intent()       {}
func (ShareLocation) intent()        {}
func (UpdateSharedLocation) intent() {}
func (StopSharing) intent()          {}
func (MyLocation) intent()           {}
func (Nearby) intent()               {}
func (LocationHistory) intent()      {}
func (RecentActivity) intent()       {}
