package dto

import "time"

// SyncResult summarizes one synchronization run. Started is false when the
// run was rejected because another one was already in flight.
type SyncResult struct {
	Started        bool       `json:"started"`
	Fetched        int        `json:"fetched"`
	Upserted       int        `json:"upserted"`
	Created        int        `json:"created"`
	Updated        int        `json:"updated"`
	Unchanged      int        `json:"unchanged"`
	Skipped        int        `json:"skipped"`
	Failed         int        `json:"failed"`
	MalformedPages int        `json:"malformed_pages"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}
