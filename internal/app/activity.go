package app

import "github.com/dukerupert/safealert/internal/model"

func (a *App) RecentActivity() ([]model.ActivityEntry, error) {
	return a.activity.List()
}

// record adds an activity entry. Failures are logged; the action that
// produced the entry has already succeeded.
func (a *App) record(entry model.ActivityEntry) {
	saved, err := a.activity.Add(entry)
	if err != nil {
		a.logger.Warn("record activity", "error", err)
		return
	}
	if a.onActivity != nil {
		a.onActivity(saved)
	}
}
