package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	snapDomain "pricing-workbench/internal/domain/snapshot"
)

// snapshotRow is the persistence shape: scalar columns plus JSON blobs for
// the captured loan states, the recorded change list and the aggregates.
// The domain struct stays free of gorm concerns.
type snapshotRow struct {
	ID          uint64    `gorm:"primaryKey;column:id"`
	SnapshotID  string    `gorm:"size:32;uniqueIndex:ux_snapshots_snapshot_id"`
	PortfolioID string    `gorm:"size:32;index:idx_snapshots_portfolio"`
	UserName    string    `gorm:"size:128"`
	Description string    `gorm:"type:text"`
	ChangeCount int       `gorm:"column:change_count"`
	Loans       string    `gorm:"type:json"`
	Changes     string    `gorm:"type:json"`
	Summary     string    `gorm:"type:json"`
	Delta       string    `gorm:"type:json"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (snapshotRow) TableName() string { return "snapshots" }

func toRow(s *snapDomain.Snapshot) (*snapshotRow, error) {
	loans, err := json.Marshal(s.Loans)
	if err != nil {
		return nil, fmt.Errorf("marshal loan states: %w", err)
	}
	changes, err := json.Marshal(s.Changes)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	delta, err := json.Marshal(s.Delta)
	if err != nil {
		return nil, fmt.Errorf("marshal delta: %w", err)
	}
	return &snapshotRow{
		SnapshotID:  s.SnapshotID,
		PortfolioID: s.PortfolioID,
		UserName:    s.UserName,
		Description: s.Description,
		ChangeCount: s.ChangeCount,
		Loans:       string(loans),
		Changes:     string(changes),
		Summary:     string(summary),
		Delta:       string(delta),
		CreatedAt:   s.CreatedAt,
	}, nil
}

func fromRow(r *snapshotRow) (*snapDomain.Snapshot, error) {
	s := &snapDomain.Snapshot{
		SnapshotID:  r.SnapshotID,
		PortfolioID: r.PortfolioID,
		UserName:    r.UserName,
		Description: r.Description,
		ChangeCount: r.ChangeCount,
		CreatedAt:   r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.Loans), &s.Loans); err != nil {
		return nil, fmt.Errorf("unmarshal loan states: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Changes), &s.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Summary), &s.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if r.Delta != "" {
		if err := json.Unmarshal([]byte(r.Delta), &s.Delta); err != nil {
			return nil, fmt.Errorf("unmarshal delta: %w", err)
		}
	}
	return s, nil
}

type SnapshotRepository struct{ db *gorm.DB }

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository { return &SnapshotRepository{db: db} }

func (r *SnapshotRepository) Create(ctx context.Context, s *snapDomain.Snapshot) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *SnapshotRepository) GetBySnapshotID(ctx context.Context, snapshotID string) (*snapDomain.Snapshot, error) {
	var row snapshotRow
	res := r.db.WithContext(ctx).Where("snapshot_id = ?", snapshotID).First(&row)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, snapDomain.ErrNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return fromRow(&row)
}

func (r *SnapshotRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]*snapDomain.Snapshot, error) {
	var rows []snapshotRow
	res := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("created_at ASC, id ASC").
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	out := make([]*snapDomain.Snapshot, 0, len(rows))
	for i := range rows {
		s, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *SnapshotRepository) LatestByPortfolio(ctx context.Context, portfolioID string) (*snapDomain.Snapshot, error) {
	var row snapshotRow
	res := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("created_at DESC, id DESC").
		First(&row)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, snapDomain.ErrNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return fromRow(&row)
}
