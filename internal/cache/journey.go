package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"SafeArrival/internal/model"
)

const (
	// 行程记录只有一条，版本号写在 key 里，结构变化时换 key 即可
	journeyRecordKey = "safe_arrival:v1"

	// 当前有效的提醒调度令牌，重排或取消后旧令牌对应的延迟消息全部作废
	notificationScheduleKey = "journey:notification:schedule"

	scheduleTokenTTL = 48 * time.Hour
)

const (
	fieldStatus        = "status"
	fieldJourneyID     = "journey_id"
	fieldStartedAt     = "started_at"
	fieldDurationMs    = "duration_ms"
	fieldArrivalTime   = "arrival_time"
	fieldCheckExpiry   = "check_expiry"
	fieldWarningExpiry = "warning_expiry"
)

// ErrCorruptJourney 存储中的行程记录无法解析或不一致
var ErrCorruptJourney = errors.New("corrupt journey record")

// JourneyStore 持久化设备上唯一的行程记录
type JourneyStore struct {
	rdb goredis.Cmdable
	key string
}

// NewJourneyStore 创建行程存储，keyFn 用于拼接带前缀的 key
func NewJourneyStore(rdb goredis.Cmdable, keyFn func(parts ...string) string) *JourneyStore {
	return &JourneyStore{rdb: rdb, key: keyFn(journeyRecordKey)}
}

// Load 读取行程记录，不存在时返回 (nil, nil)
func (s *JourneyStore) Load(ctx context.Context) (*model.Journey, error) {
	values, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	j, err := decodeJourney(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptJourney, err)
	}
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptJourney, err)
	}
	return j, nil
}

// Save 整体覆盖行程记录，读者不会看到新旧字段混杂的中间状态
func (s *JourneyStore) Save(ctx context.Context, j *model.Journey) error {
	if j == nil {
		return fmt.Errorf("journey is nil")
	}
	if err := j.Validate(); err != nil {
		return fmt.Errorf("refusing to save journey: %w", err)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, encodeJourney(j))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save journey %s: %w", j.JourneyID, err)
	}
	return nil
}

// Erase 删除行程记录，记录不存在时也返回成功
func (s *JourneyStore) Erase(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to erase journey: %w", err)
	}
	return nil
}

func encodeJourney(j *model.Journey) map[string]interface{} {
	return map[string]interface{}{
		fieldStatus:        string(j.Status),
		fieldJourneyID:     j.JourneyID,
		fieldStartedAt:     j.StartedAt.UnixMilli(),
		fieldDurationMs:    j.Duration.Milliseconds(),
		fieldArrivalTime:   j.ArrivalTime.UnixMilli(),
		fieldCheckExpiry:   j.CheckExpiry.UnixMilli(),
		fieldWarningExpiry: j.WarningExpiry.UnixMilli(),
	}
}

func decodeJourney(values map[string]string) (*model.Journey, error) {
	millis := func(field string) (int64, error) {
		raw, ok := values[field]
		if !ok {
			return 0, fmt.Errorf("missing field %s", field)
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", field, err)
		}
		return v, nil
	}

	j := &model.Journey{
		Status:    model.JourneyStatus(values[fieldStatus]),
		JourneyID: values[fieldJourneyID],
	}

	startedAt, err := millis(fieldStartedAt)
	if err != nil {
		return nil, err
	}
	durationMs, err := millis(fieldDurationMs)
	if err != nil {
		return nil, err
	}
	arrival, err := millis(fieldArrivalTime)
	if err != nil {
		return nil, err
	}
	check, err := millis(fieldCheckExpiry)
	if err != nil {
		return nil, err
	}
	warning, err := millis(fieldWarningExpiry)
	if err != nil {
		return nil, err
	}

	j.StartedAt = time.UnixMilli(startedAt)
	j.Duration = time.Duration(durationMs) * time.Millisecond
	j.ArrivalTime = time.UnixMilli(arrival)
	j.CheckExpiry = time.UnixMilli(check)
	j.WarningExpiry = time.UnixMilli(warning)
	return j, nil
}

// ScheduleTokenStore 记录当前有效的提醒调度令牌
type ScheduleTokenStore struct {
	rdb goredis.Cmdable
	key string
}

func NewScheduleTokenStore(rdb goredis.Cmdable, keyFn func(parts ...string) string) *ScheduleTokenStore {
	return &ScheduleTokenStore{rdb: rdb, key: keyFn(notificationScheduleKey)}
}

// Replace 写入新令牌，旧令牌随之失效
func (s *ScheduleTokenStore) Replace(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.key, token, scheduleTokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to replace schedule token: %w", err)
	}
	return nil
}

// Current 返回当前令牌，没有时返回空串
func (s *ScheduleTokenStore) Current(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read schedule token: %w", err)
	}
	return token, nil
}

// Clear 删除令牌，所有已投放的延迟消息都不再投递
func (s *ScheduleTokenStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear schedule token: %w", err)
	}
	return nil
}
