package monitor

import "time"

// Status is the result of the last probe round. The repair journal is
// optional, so its state is reported but does not affect Healthy.
type Status struct {
	Store       bool      `json:"store"`
	Cache       bool      `json:"cache"`
	Journal     bool      `json:"journal"`
	JournalSize int       `json:"journal_size"`
	LastCheck   time.Time `json:"last_check"`
}

// Healthy reports whether the service can answer requests.
func (s Status) Healthy() bool {
	return s.Store && s.Cache
}
