package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/safealert/internal/model"
	"github.com/google/uuid"
)

const keyRecentActivity = "recent_activity"

// ActivityStore keeps the bounded recent-activity list, newest first.
type ActivityStore struct {
	state *StateStore
}

func NewActivityStore(state *StateStore) *ActivityStore {
	return &ActivityStore{state: state}
}

// Add prepends entry and evicts the oldest entries beyond capacity. Missing
// IDs and timestamps are filled in and the description is truncated.
func (s *ActivityStore) Add(entry model.ActivityEntry) (model.ActivityEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Description = model.TruncateDescription(entry.Description)

	err := s.state.Update(keyRecentActivity, func(old string, ok bool) (string, error) {
		var entries []model.ActivityEntry
		if ok && old != "" {
			if err := json.Unmarshal([]byte(old), &entries); err != nil {
				// Corrupt cache: start a new list.
				entries = nil
			}
		}
		entries = append([]model.ActivityEntry{entry}, entries...)
		if len(entries) > model.ActivityCapacity {
			entries = entries[:model.ActivityCapacity]
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return "", fmt.Errorf("encode activity: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return model.ActivityEntry{}, fmt.Errorf("add activity: %w", err)
	}
	return entry, nil
}

// List returns the cached entries, newest first.
func (s *ActivityStore) List() ([]model.ActivityEntry, error) {
	raw, ok, err := s.state.Get(keyRecentActivity)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if !ok || raw == "" {
		return []model.ActivityEntry{}, nil
	}
	var entries []model.ActivityEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return entries, nil
}

func (s *ActivityStore) Clear() error {
	return s.state.Delete(keyRecentActivity)
}
