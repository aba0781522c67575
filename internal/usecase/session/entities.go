package session

import (
	"errors"
	"time"

	"pricing-workbench/internal/domain/snapshot"
)

var (
	ErrNoPendingChanges = errors.New("nothing staged to save")
	ErrInvalidRate      = errors.New("rate value is not a valid decimal")
	ErrInvalidDate      = errors.New("date value must be YYYY-MM-DD")
)

type TrackFieldInput struct {
	LoanID string `json:"loan_id"`
	Field  string `json:"field"`
	Label  string `json:"label"`
	Value  string `json:"value"`
}

type SaveInput struct {
	UserName    string `json:"user_name"`
	Description string `json:"description"`
}

// SnapshotDTO is the list/detail shape handed to collaborators; the full
// loan states stay server-side unless playback asks for them.
type SnapshotDTO struct {
	SnapshotID  string                     `json:"snapshot_id"`
	PortfolioID string                     `json:"portfolio_id"`
	UserName    string                     `json:"user_name"`
	Description string                     `json:"description,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	ChangeCount int                        `json:"change_count"`
	Summary     []snapshot.CurrencySummary `json:"summary"`
	Changes     snapshot.Changes           `json:"changes"`
	Delta       []snapshot.CurrencyDelta   `json:"delta,omitempty"`
}

func toSnapshotDTO(s *snapshot.Snapshot) *SnapshotDTO {
	return &SnapshotDTO{
		SnapshotID:  s.SnapshotID,
		PortfolioID: s.PortfolioID,
		UserName:    s.UserName,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		ChangeCount: s.ChangeCount,
		Summary:     s.Summary,
		Changes:     s.Changes,
		Delta:       s.Delta,
	}
}
