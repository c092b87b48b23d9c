package models

// LogEntry is the count recorded for one profile on one day.
// At most one entry exists per (ProfileID, Date).
type LogEntry struct {
	ID        int64 `json:"id"`
	ProfileID int64 `json:"profileId"`
	Date      Date  `json:"date"`
	Count     int64 `json:"count"`
}
