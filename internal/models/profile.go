package models

// Profile is a named bucket that owns a set of daily log entries.
type Profile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
