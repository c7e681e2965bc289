package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"SafeArrival/internal/cache"
	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	"SafeArrival/internal/schedule"
	"SafeArrival/pkg/clock"
	pkgerrors "SafeArrival/pkg/errors"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/metrics"
)

// 前台定时器触发后对账的超时，告警发送有自己的超时
const timerReconcileTimeout = 10 * time.Second

// JourneyStore 行程的持久化端口
type JourneyStore interface {
	Load(ctx context.Context) (*model.Journey, error)
	Save(ctx context.Context, j *model.Journey) error
	Erase(ctx context.Context) error
}

// Dispatcher 进入 sos_triggered 后调用
type Dispatcher interface {
	Dispatch(ctx context.Context, j *model.Journey) (*dto.SOSResult, error)
}

// PermissionReader 读取平台权限
type PermissionReader interface {
	Get(ctx context.Context) (model.Permissions, error)
}

// JourneyRecorder 追加已结束的行程
type JourneyRecorder interface {
	AppendJourney(ctx context.Context, rec *model.JourneyRecord) error
}

type JourneyOptions struct {
	Store       JourneyStore
	Scheduler   schedule.NotificationScheduler
	Dispatcher  Dispatcher
	Clock       clock.Clock
	NewID       func() (string, error)
	Windows     model.Windows
	MaxDuration time.Duration
	// 以下可为空
	Permissions PermissionReader
	History     JourneyRecorder
}

// JourneyService 行程状态机
// 所有入口共用一把锁，同一时刻只有一条路径在读改写行程记录
// 前台定时器只是让常驻进程更快响应，阶段永远由持久化的截止时间推导
type JourneyService struct {
	opts JourneyOptions

	mu         sync.Mutex
	timer      clock.Timer
	generation uint64
	stopped    bool

	showExtendDialog bool
	dispatchedFor    string // 已经发起过告警的行程
	sendingFor       string // 告警正在发送中的行程
	sosError         string
}

func NewJourneyService(opts JourneyOptions) *JourneyService {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NoopScheduler{}
	}
	return &JourneyService{opts: opts}
}

// Start 开始一段行程，只能在没有行程时调用
func (s *JourneyService) Start(ctx context.Context, d time.Duration) (*dto.JourneySnapshot, error) {
	if err := s.validateDuration(d); err != nil {
		return nil, err
	}
	return s.run(ctx, func(ctx context.Context, j *model.Journey) (*model.Journey, error) {
		if j != nil {
			return j, pkgerrors.JourneyOverlap
		}
		return s.startLocked(ctx, d)
	})
}

// Extend 用新的时长替换等待确认中的行程，生成新的 journeyId
func (s *JourneyService) Extend(ctx context.Context, d time.Duration) (*dto.JourneySnapshot, error) {
	if err := s.validateDuration(d); err != nil {
		return nil, err
	}
	return s.run(ctx, func(ctx context.Context, j *model.Journey) (*model.Journey, error) {
		if j == nil {
			return nil, pkgerrors.JourneyNotFound
		}
		if !j.Status.Awaiting() {
			return j, pkgerrors.JourneyNotExtendable
		}

		// 旧提醒由 ScheduleAll 替换，新行程创建失败时保持不变
		next, err := s.startLocked(ctx, d)
		if err != nil {
			return j, err
		}
		s.recordLocked(ctx, j, model.JourneyOutcomeExtended)
		return next, nil
	})
}

// Confirm 确认安全到达，没有行程时什么也不做
func (s *JourneyService) Confirm(ctx context.Context) (*dto.JourneySnapshot, error) {
	return s.run(ctx, s.confirmLocked)
}

// Cancel 手动取消，没有行程时什么也不做
func (s *JourneyService) Cancel(ctx context.Context) (*dto.JourneySnapshot, error) {
	return s.run(ctx, func(ctx context.Context, j *model.Journey) (*model.Journey, error) {
		if j == nil {
			return nil, nil
		}
		s.opts.Scheduler.CancelAll(ctx)
		return s.endLocked(ctx, j, model.JourneyOutcomeCancelled)
	})
}

// Dismiss 关闭告警页面，只在 sos_triggered 阶段有效
func (s *JourneyService) Dismiss(ctx context.Context) (*dto.JourneySnapshot, error) {
	return s.run(ctx, func(ctx context.Context, j *model.Journey) (*model.Journey, error) {
		if j == nil {
			return nil, nil
		}
		if j.Status != model.JourneyStatusSOSTriggered {
			return j, pkgerrors.JourneyNotModifiable
		}
		return s.endLocked(ctx, j, model.JourneyOutcomeSOSDismissed)
	})
}

// Reconcile 启动时与回到前台时调用，可以任意重复
func (s *JourneyService) Reconcile(ctx context.Context) (*dto.JourneySnapshot, error) {
	return s.run(ctx, nil)
}

// Snapshot 界面所需的状态，读取前同样先对账
func (s *JourneyService) Snapshot(ctx context.Context) (*dto.JourneySnapshot, error) {
	return s.run(ctx, nil)
}

// HandleNotificationAction 处理通知上的操作，不属于当前行程的操作直接忽略
func (s *JourneyService) HandleNotificationAction(ctx context.Context, a model.NotificationAction) (*dto.JourneySnapshot, error) {
	return s.run(ctx, func(ctx context.Context, j *model.Journey) (*model.Journey, error) {
		if j == nil || j.JourneyID != a.JourneyID {
			logger.Logger.Info("Ignoring notification action for another journey",
				zap.String("action_journey_id", a.JourneyID),
				zap.String("action_id", a.ActionID),
			)
			return j, nil
		}

		interactive := a.ActionTypeID == model.ActionTypeCheck || a.ActionTypeID == model.ActionTypeWarning
		switch {
		case interactive && a.ActionID == model.ActionYes:
			return s.confirmLocked(ctx, j)
		case interactive && a.ActionID == model.ActionNo:
			if j.Status.Awaiting() {
				s.showExtendDialog = true
			}
			return j, nil
		default:
			// 点击通知本身或终态告警，入口处已经对过账
			return j, nil
		}
	})
}

// CloseExtendPrompt 关闭延长对话框
func (s *JourneyService) CloseExtendPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showExtendDialog = false
}

// Stop 停止前台定时器，进程退出前调用
func (s *JourneyService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.armLocked(nil)
}

// run 在锁内先对账再执行 fn，需要发送的告警在释放锁之后执行
func (s *JourneyService) run(ctx context.Context, fn func(ctx context.Context, j *model.Journey) (*model.Journey, error)) (*dto.JourneySnapshot, error) {
	s.mu.Lock()
	j, pending, err := s.syncLocked(ctx)
	if err == nil && fn != nil {
		j, err = fn(ctx, j)
	}
	var snap *dto.JourneySnapshot
	if err == nil {
		snap = s.snapshotLocked(j)
	}
	s.mu.Unlock()

	if pending != nil {
		s.dispatch(ctx, pending)
		if snap != nil && snap.Journey != nil && snap.Journey.JourneyID == pending.JourneyID {
			s.mu.Lock()
			snap.IsSendingSOS = s.sendingFor == pending.JourneyID
			snap.SOSError = s.sosError
			s.mu.Unlock()
		}
	}
	return snap, err
}

// syncLocked 按当前时间推导阶段、持久化变化并重新布置前台定时器
// pending 非空表示本次首次进入 sos_triggered
func (s *JourneyService) syncLocked(ctx context.Context) (j, pending *model.Journey, err error) {
	j, err = s.loadLocked(ctx)
	if err != nil {
		return nil, nil, err
	}

	d := Reconcile(s.opts.Clock.Now(), j)
	if j != nil && d.Target != j.Status {
		next := j.WithStatus(d.Target)
		if err := s.opts.Store.Save(ctx, next); err != nil {
			// 持久化失败也要继续推进，告警不能因此被吞掉
			logger.Logger.Error("Failed to persist journey stage",
				zap.String("journey_id", j.JourneyID),
				zap.String("status", string(next.Status)),
				zap.Error(err),
			)
		}
		s.transition(ctx, j.JourneyID, j.Status, next.Status)
		j = next
	}

	if d.Dispatch && s.dispatchedFor != j.JourneyID {
		s.dispatchedFor = j.JourneyID
		s.sendingFor = j.JourneyID
		s.sosError = ""
		s.showExtendDialog = false
		pending = j
	}

	s.armLocked(j)
	return j, pending, nil
}

// loadLocked 读取行程，损坏的记录无法恢复，直接清除并视为没有行程
func (s *JourneyService) loadLocked(ctx context.Context) (*model.Journey, error) {
	j, err := s.opts.Store.Load(ctx)
	if err == nil {
		return j, nil
	}
	if !stderrors.Is(err, cache.ErrCorruptJourney) {
		return nil, err
	}

	logger.Logger.Error("Corrupt journey record, erasing", zap.Error(err))
	if err := s.opts.Store.Erase(ctx); err != nil {
		return nil, fmt.Errorf("failed to erase corrupt journey: %w", err)
	}
	s.opts.Scheduler.CancelAll(ctx)
	return nil, nil
}

func (s *JourneyService) startLocked(ctx context.Context, d time.Duration) (*model.Journey, error) {
	id, err := s.opts.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate journey id: %w", err)
	}
	j, err := model.NewJourney(id, s.opts.Clock.Now(), d, s.opts.Windows)
	if err != nil {
		logger.Logger.Warn("Rejected journey", zap.Duration("duration", d), zap.Error(err))
		return nil, pkgerrors.InvalidDuration
	}
	if err := s.opts.Store.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	s.showExtendDialog = false
	s.sosError = ""
	s.scheduleLocked(ctx, j)
	s.armLocked(j)
	s.transition(ctx, j.JourneyID, model.JourneyStatusIdle, j.Status)
	return j, nil
}

func (s *JourneyService) confirmLocked(ctx context.Context, j *model.Journey) (*model.Journey, error) {
	if j == nil {
		return nil, nil
	}
	if j.Status == model.JourneyStatusSOSTriggered {
		return j, pkgerrors.JourneyNotModifiable
	}
	s.opts.Scheduler.CancelAll(ctx)
	return s.endLocked(ctx, j, model.JourneyOutcomeConfirmed)
}

// endLocked 删除行程并回到 idle
func (s *JourneyService) endLocked(ctx context.Context, j *model.Journey, outcome model.JourneyOutcome) (*model.Journey, error) {
	if err := s.opts.Store.Erase(ctx); err != nil {
		return j, fmt.Errorf("failed to erase journey: %w", err)
	}

	s.recordLocked(ctx, j, outcome)
	s.transition(ctx, j.JourneyID, j.Status, model.JourneyStatusIdle)
	s.armLocked(nil)
	s.showExtendDialog = false
	s.sendingFor = ""
	s.sosError = ""
	return nil, nil
}

// scheduleLocked 通知权限被拒绝时只依赖前台定时器
func (s *JourneyService) scheduleLocked(ctx context.Context, j *model.Journey) {
	if s.opts.Permissions != nil {
		perms, err := s.opts.Permissions.Get(ctx)
		if err != nil {
			logger.Logger.Warn("Failed to read permissions, scheduling anyway", zap.Error(err))
		} else if perms.Notifications == model.PermissionDenied {
			logger.Logger.Info("Notification permission denied, using foreground timers only",
				zap.String("journey_id", j.JourneyID),
			)
			s.opts.Scheduler.CancelAll(ctx)
			return
		}
	}
	s.opts.Scheduler.ScheduleAll(ctx, j)
}

// armLocked 为当前阶段的下一个截止时间布置唯一的前台定时器
// 代数每次都会推进，已经触发但尚未拿到锁的旧定时器会被忽略
func (s *JourneyService) armLocked(j *model.Journey) {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if j == nil || s.stopped {
		return
	}
	deadline, ok := j.NextDeadline()
	if !ok {
		return
	}

	gen := s.generation
	delay := deadline.Sub(s.opts.Clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timer = s.opts.Clock.AfterFunc(delay, func() { s.onTimer(gen) })
}

func (s *JourneyService) onTimer(gen uint64) {
	s.mu.Lock()
	stale := gen != s.generation || s.stopped
	s.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timerReconcileTimeout)
	defer cancel()
	if _, err := s.Reconcile(ctx); err != nil {
		logger.Logger.Warn("Foreground timer reconcile failed", zap.Error(err))
	}
}

// dispatch 不持有锁，请求取消也不能中断告警
func (s *JourneyService) dispatch(ctx context.Context, j *model.Journey) {
	_, err := s.opts.Dispatcher.Dispatch(context.WithoutCancel(ctx), j)
	if stderrors.Is(err, ErrAlreadyDispatched) {
		err = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendingFor != j.JourneyID {
		// 发送期间行程已被清除
		return
	}
	s.sendingFor = ""
	if err != nil {
		logger.Logger.Error("SOS dispatch failed", zap.String("journey_id", j.JourneyID), zap.Error(err))
		s.sosError = pkgerrors.SOSDispatchFailed.Message
	}
}

func (s *JourneyService) recordLocked(ctx context.Context, j *model.Journey, outcome model.JourneyOutcome) {
	if s.opts.History == nil {
		return
	}
	rec := &model.JourneyRecord{
		JourneyID:     j.JourneyID,
		DurationMs:    j.Duration.Milliseconds(),
		StartedAt:     j.StartedAt,
		ArrivalTime:   j.ArrivalTime,
		FinalStatus:   j.Status,
		Outcome:       outcome,
		EndedAt:       s.opts.Clock.Now(),
		SOSDispatched: j.Status == model.JourneyStatusSOSTriggered,
	}
	if err := s.opts.History.AppendJourney(ctx, rec); err != nil {
		logger.Logger.Warn("Failed to append journey history",
			zap.String("journey_id", j.JourneyID),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
	}
}

func (s *JourneyService) transition(ctx context.Context, journeyID string, from, to model.JourneyStatus) {
	metrics.RecordStageTransition(ctx, string(from), string(to))
	logger.Logger.Info("Journey stage transition",
		zap.String("journey_id", journeyID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (s *JourneyService) snapshotLocked(j *model.Journey) *dto.JourneySnapshot {
	snap := &dto.JourneySnapshot{Status: string(model.JourneyStatusIdle)}
	if j == nil {
		return snap
	}

	snap.Status = string(j.Status)
	snap.Journey = toJourneyItem(j)
	if j.Status == model.JourneyStatusActive {
		if remaining := j.ArrivalTime.Sub(s.opts.Clock.Now()); remaining > 0 {
			snap.TimeRemainingMs = remaining.Milliseconds()
		}
	}
	snap.ShowExtendDialog = s.showExtendDialog
	snap.IsSendingSOS = s.sendingFor == j.JourneyID
	if j.Status == model.JourneyStatusSOSTriggered {
		snap.SOSError = s.sosError
	}
	return snap
}

func (s *JourneyService) validateDuration(d time.Duration) error {
	if d < time.Millisecond || (s.opts.MaxDuration > 0 && d > s.opts.MaxDuration) {
		return pkgerrors.InvalidDuration
	}
	return nil
}

func toJourneyItem(j *model.Journey) *dto.JourneyItem {
	return &dto.JourneyItem{
		JourneyID:     j.JourneyID,
		Status:        string(j.Status),
		StartedAt:     j.StartedAt.UnixMilli(),
		DurationMs:    j.Duration.Milliseconds(),
		ArrivalTime:   j.ArrivalTime.UnixMilli(),
		CheckExpiry:   j.CheckExpiry.UnixMilli(),
		WarningExpiry: j.WarningExpiry.UnixMilli(),
	}
}
