package analysis

import "time"

// Run triggers
const (
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
	TriggerMessage  = "amqp"
	TriggerSchedule = "schedule"
)

// RunMetadata identifies one stored run. It is kept apart from Report so
// reports of identical batches stay identical.
type RunMetadata struct {
	ID           string    `json:"id"`
	Trigger      string    `json:"trigger"`
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	RowsReceived int       `json:"rows_received"`
	RowsAccepted int       `json:"rows_accepted"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// StoredRun is a report with its metadata.
type StoredRun struct {
	Metadata RunMetadata `json:"metadata"`
	Report   *Report     `json:"report"`
}
