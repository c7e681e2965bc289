package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	pkgerrors "SafeArrival/pkg/errors"
)

type fakeLister struct {
	records []model.JourneyRecord
	cursor  int64
	limit   int
}

// ListJourneys 模拟 id 倒序分页
func (f *fakeLister) ListJourneys(_ context.Context, cursorID int64, limit int) ([]model.JourneyRecord, error) {
	f.cursor, f.limit = cursorID, limit
	var out []model.JourneyRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if cursorID == 0 || f.records[i].ID < cursorID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func TestHistoryService_ListJourneys(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{}
	for i := 1; i <= 5; i++ {
		rec := model.JourneyRecord{JourneyID: "j_x", Outcome: model.JourneyOutcomeConfirmed, EndedAt: time.UnixMilli(int64(i))}
		rec.ID = int64(i)
		lister.records = append(lister.records, rec)
	}
	svc := NewHistoryService(lister)

	items, next, err := svc.ListJourneys(ctx, dto.JourneyListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "5", items[0].ID)
	require.Equal(t, "4", next)
	require.Equal(t, 3, lister.limit)

	items, next, err = svc.ListJourneys(ctx, dto.JourneyListQuery{Cursor: next, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, "3", items[0].ID)
	require.Equal(t, "2", next)

	items, next, err = svc.ListJourneys(ctx, dto.JourneyListQuery{Cursor: next, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Empty(t, next)

	_, _, err = svc.ListJourneys(ctx, dto.JourneyListQuery{Cursor: "abc"})
	require.ErrorIs(t, err, pkgerrors.InvalidCursor)

	_, _, err = svc.ListJourneys(ctx, dto.JourneyListQuery{Limit: 1000})
	require.NoError(t, err)
	require.Equal(t, maxHistoryLimit+1, lister.limit)
}

func TestHistoryService_Disabled(t *testing.T) {
	items, next, err := NewHistoryService(nil).ListJourneys(context.Background(), dto.JourneyListQuery{})
	require.NoError(t, err)
	require.Empty(t, items)
	require.NotNil(t, items)
	require.Empty(t, next)
}
