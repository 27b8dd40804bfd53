package model

import "time"

// SyncLogEntry is one append-only audit line mirroring what the job log
// reported for a reference.
type SyncLogEntry struct {
	ID                int64     `json:"id"`
	InternalReference string    `json:"internal_reference"`
	Action            string    `json:"action"`
	Status            string    `json:"status"`
	Message           string    `json:"message"`
	CreatedAt         time.Time `json:"created_at"`
}
