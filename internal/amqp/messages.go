package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"spendlens/internal/analysis"
)

// AnalysisRequestMessage asks a worker to analyze its configured ledger.
type AnalysisRequestMessage struct {
	RequestID   string    `json:"request_id"`
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewAnalysisRequestMessage(trigger string) *AnalysisRequestMessage {
	if trigger == "" {
		trigger = analysis.TriggerMessage
	}
	return &AnalysisRequestMessage{
		RequestID:   uuid.NewString(),
		Trigger:     trigger,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *AnalysisRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AnalysisRequestMessageFromJSON(data []byte) (*AnalysisRequestMessage, error) {
	var msg AnalysisRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportCompletedMessage announces a stored run. The full report is fetched
// by id; the message carries only the headline figures.
type ReportCompletedMessage struct {
	RunID                   string             `json:"run_id"`
	Status                  analysis.RunStatus `json:"status"`
	Trigger                 string             `json:"trigger"`
	Source                  string             `json:"source"`
	RowsAccepted            int                `json:"rows_accepted"`
	DuplicatePairs          int                `json:"duplicate_pairs"`
	DuplicateMonthlySavings string             `json:"duplicate_monthly_savings"`
	YearlySwitchSavings     string             `json:"yearly_switch_savings"`
	SubstitutionMonthly     string             `json:"substitution_monthly_savings"`
	FinishedAt              time.Time          `json:"finished_at"`
}

func NewReportCompletedMessage(meta analysis.RunMetadata, totals analysis.Totals) *ReportCompletedMessage {
	return &ReportCompletedMessage{
		RunID:                   meta.ID,
		Status:                  meta.Status,
		Trigger:                 meta.Trigger,
		Source:                  meta.Source,
		RowsAccepted:            meta.RowsAccepted,
		DuplicatePairs:          totals.DuplicatePairs,
		DuplicateMonthlySavings: totals.DuplicateMonthlySavings.StringFixed(2),
		YearlySwitchSavings:     totals.YearlySwitchSavings.StringFixed(2),
		SubstitutionMonthly:     totals.SubstitutionMonthly.StringFixed(2),
		FinishedAt:              meta.FinishedAt,
	}
}

func (m *ReportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportCompletedMessageFromJSON(data []byte) (*ReportCompletedMessage, error) {
	var msg ReportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
