package service

import (
	"context"
	"strconv"

	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	pkgerrors "SafeArrival/pkg/errors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// JourneyLister 按 id 倒序分页读取历史
type JourneyLister interface {
	ListJourneys(ctx context.Context, cursorID int64, limit int) ([]model.JourneyRecord, error)
}

// HistoryService 已结束行程的查询，未开启历史记录时返回空列表
type HistoryService struct {
	repo JourneyLister
}

func NewHistoryService(repo JourneyLister) *HistoryService {
	return &HistoryService{repo: repo}
}

// ListJourneys 返回一页历史和下一页游标，游标为空表示没有更多
func (s *HistoryService) ListJourneys(ctx context.Context, q dto.JourneyListQuery) ([]dto.JourneyRecordItem, string, error) {
	var cursorID int64
	if q.Cursor != "" {
		id, err := strconv.ParseInt(q.Cursor, 10, 64)
		if err != nil || id <= 0 {
			return nil, "", pkgerrors.InvalidCursor
		}
		cursorID = id
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if s == nil || s.repo == nil {
		return []dto.JourneyRecordItem{}, "", nil
	}

	// 多取一条判断是否还有下一页
	records, err := s.repo.ListJourneys(ctx, cursorID, limit+1)
	if err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(records) > limit {
		records = records[:limit]
		nextCursor = strconv.FormatInt(records[limit-1].ID, 10)
	}

	items := make([]dto.JourneyRecordItem, 0, len(records))
	for _, r := range records {
		items = append(items, dto.JourneyRecordItem{
			ID:            strconv.FormatInt(r.ID, 10),
			JourneyID:     r.JourneyID,
			DurationMs:    r.DurationMs,
			StartedAt:     r.StartedAt,
			ArrivalTime:   r.ArrivalTime,
			FinalStatus:   string(r.FinalStatus),
			Outcome:       string(r.Outcome),
			EndedAt:       r.EndedAt,
			SOSDispatched: r.SOSDispatched,
		})
	}
	return items, nextCursor, nil
}
