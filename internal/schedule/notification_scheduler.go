package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SafeArrival/internal/cache"
	"SafeArrival/internal/model"
	"SafeArrival/pkg/clock"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/metrics"
)

// NotificationScheduler 把行程的三个截止时间镜像为计划通知
// 两个方法都不返回错误：通知只是尽力而为，失败只记录日志，不影响状态机
type NotificationScheduler interface {
	// ScheduleAll 先取消所有已有计划，再为行程排入新的通知
	ScheduleAll(ctx context.Context, j *model.Journey)
	// CancelAll 取消所有计划中的通知，可重复调用
	CancelAll(ctx context.Context)
}

// TimerScheduler 进程内定时器实现，到点后交给 Sink 投递
type TimerScheduler struct {
	clock   clock.Clock
	sink    Sink
	timeout time.Duration

	mu         sync.Mutex
	timers     []clock.Timer
	generation uint64
}

func NewTimerScheduler(clk clock.Clock, sink Sink, timeout time.Duration) *TimerScheduler {
	return &TimerScheduler{clock: clk, sink: sink, timeout: timeout}
}

func (s *TimerScheduler) ScheduleAll(ctx context.Context, j *model.Journey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	gen := s.generation
	now := s.clock.Now()

	for _, n := range model.NotificationsFor(j) {
		if !n.At.After(now) {
			continue
		}
		n := n
		s.timers = append(s.timers, s.clock.AfterFunc(n.At.Sub(now), func() {
			s.fire(gen, n)
		}))
	}

	logger.Logger.Debug("Notifications scheduled",
		zap.String("journey_id", j.JourneyID),
		zap.Int("count", len(s.timers)),
	)
}

func (s *TimerScheduler) CancelAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// cancelLocked 停掉全部定时器并推进代数，已经开始执行的回调会发现代数不符而放弃投递
func (s *TimerScheduler) cancelLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.generation++
}

func (s *TimerScheduler) fire(gen uint64, n model.Notification) {
	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	deliver(ctx, s.sink, n)
}

// PublishFunc 把一条通知投递到延迟队列
type PublishFunc func(ctx context.Context, msg model.JourneyNotificationMessage, delay time.Duration) error

// QueueScheduler 通过 RabbitMQ 延迟交换机排入通知
// 每次排程写入新令牌，worker 只投递令牌仍然有效的消息
type QueueScheduler struct {
	clock   clock.Clock
	tokens  *cache.ScheduleTokenStore
	publish PublishFunc
	breaker *cache.CircuitBreaker
}

func NewQueueScheduler(clk clock.Clock, tokens *cache.ScheduleTokenStore, publish PublishFunc, breaker *cache.CircuitBreaker) *QueueScheduler {
	return &QueueScheduler{clock: clk, tokens: tokens, publish: publish, breaker: breaker}
}

func (s *QueueScheduler) ScheduleAll(ctx context.Context, j *model.Journey) {
	s.CancelAll(ctx)

	token := uuid.NewString()
	if err := s.tokens.Replace(ctx, token); err != nil {
		metrics.RecordNotificationScheduleFailure(ctx, "queue", "schedule")
		logger.Logger.Error("Failed to replace notification schedule token",
			zap.String("journey_id", j.JourneyID),
			zap.Error(err),
		)
		return
	}

	now := s.clock.Now()
	for _, n := range model.NotificationsFor(j) {
		if !n.At.After(now) {
			continue
		}
		delay := n.At.Sub(now)
		msg := model.JourneyNotificationMessage{
			MessageID:     uuid.NewString(),
			ScheduleToken: token,
			ScheduledAt:   now.Format(time.RFC3339),
			DelaySeconds:  int(delay.Seconds()),
			Notification:  n,
		}

		err := s.breaker.Call(ctx, func(ctx context.Context) error {
			return s.publish(ctx, msg, delay)
		})
		if err != nil {
			metrics.RecordNotificationScheduleFailure(ctx, "queue", "publish")
			logger.Logger.Error("Failed to publish journey notification",
				zap.String("journey_id", j.JourneyID),
				zap.Int("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *QueueScheduler) CancelAll(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		metrics.RecordNotificationScheduleFailure(ctx, "queue", "cancel")
		logger.Logger.Error("Failed to clear notification schedule token", zap.Error(err))
	}
}

// NoopScheduler 通知权限被拒绝或未配置时使用
type NoopScheduler struct{}

func (NoopScheduler) ScheduleAll(context.Context, *model.Journey) {}
func (NoopScheduler) CancelAll(context.Context) {}
