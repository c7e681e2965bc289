package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"SafeArrival/internal/model"
)

// HistoryRepository 行程历史与 SOS 发送记录
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendJourney 写入一条已结束的行程，同一 journey_id 只保留第一条
func (r *HistoryRepository) AppendJourney(ctx context.Context, rec *model.JourneyRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "journey_id"}}, DoNothing: true}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to append journey record: %w", err)
	}
	return nil
}

// ListJourneys 按 id 倒序分页，cursorID 为 0 表示第一页
func (r *HistoryRepository) ListJourneys(ctx context.Context, cursorID int64, limit int) ([]model.JourneyRecord, error) {
	var records []model.JourneyRecord
	if err := listJourneysQuery(r.db.WithContext(ctx), cursorID, limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list journey records: %w", err)
	}
	return records, nil
}

func listJourneysQuery(db *gorm.DB, cursorID int64, limit int) *gorm.DB {
	q := db.Model(&model.JourneyRecord{})
	if cursorID > 0 {
		q = q.Where("id < ?", cursorID)
	}
	return q.Order("id DESC").Limit(limit)
}

// RecordSOSAttempt 写入一次告警发送尝试
func (r *HistoryRepository) RecordSOSAttempt(ctx context.Context, attempt *model.SOSAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to record sos attempt: %w", err)
	}
	return nil
}

// ListSOSAttempts 返回某次行程的全部发送尝试，按时间先后
func (r *HistoryRepository) ListSOSAttempts(ctx context.Context, journeyID string) ([]model.SOSAttempt, error) {
	var attempts []model.SOSAttempt
	err := r.db.WithContext(ctx).
		Where("journey_id = ?", journeyID).
		Order("attempted_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sos attempts: %w", err)
	}
	return attempts, nil
}
