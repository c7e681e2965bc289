package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"SafeArrival/internal/cache"
	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	"SafeArrival/pkg/clock"
	pkgerrors "SafeArrival/pkg/errors"
)

func testKey(parts ...string) string {
	key := "test"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	cancels   int
}

func (s *recordingScheduler) ScheduleAll(_ context.Context, j *model.Journey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.scheduled = append(s.scheduled, j.JourneyID)
}

func (s *recordingScheduler) CancelAll(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

type countingDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *countingDispatcher) Dispatch(_ context.Context, j *model.Journey) (*dto.SOSResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, j.JourneyID)
	if d.err != nil {
		return &dto.SOSResult{UsedFallback: true}, d.err
	}
	return &dto.SOSResult{Sent: true}, nil
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type memoryHistory struct {
	records []*model.JourneyRecord
}

func (h *memoryHistory) AppendJourney(_ context.Context, rec *model.JourneyRecord) error {
	h.records = append(h.records, rec)
	return nil
}

type JourneyServiceSuite struct {
	suite.Suite

	ctx         context.Context
	mr          *miniredis.Miniredis
	rdb         *goredis.Client
	clk         *clock.Fake
	store       *cache.JourneyStore
	permissions *cache.PermissionStore
	scheduler   *recordingScheduler
	dispatcher  *countingDispatcher
	history     *memoryHistory
	nextID      int
	svc         *JourneyService
}

func TestJourneyServiceSuite(t *testing.T) {
	suite.Run(t, new(JourneyServiceSuite))
}

func (s *JourneyServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	s.rdb = goredis.NewClient(&goredis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = s.rdb.Close() })

	s.clk = clock.NewFake(time.UnixMilli(0))
	s.store = cache.NewJourneyStore(s.rdb, testKey)
	s.permissions = cache.NewPermissionStore(s.rdb, testKey)
	s.scheduler = &recordingScheduler{}
	s.dispatcher = &countingDispatcher{}
	s.history = &memoryHistory{}
	s.nextID = 0
	s.svc = s.newService()
}

// newService 模拟进程重启：共享存储，内存状态全新
func (s *JourneyServiceSuite) newService() *JourneyService {
	return NewJourneyService(JourneyOptions{
		Store:      s.store,
		Scheduler:  s.scheduler,
		Dispatcher: s.dispatcher,
		Clock:      s.clk,
		NewID: func() (string, error) {
			s.nextID++
			return fmt.Sprintf("j_%d", s.nextID), nil
		},
		Windows:     model.Windows{Check: time.Minute, Warning: time.Minute},
		MaxDuration: 24 * time.Hour,
		Permissions: s.permissions,
		History:     s.history,
	})
}

func (s *JourneyServiceSuite) stored() *model.Journey {
	j, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	return j
}

func (s *JourneyServiceSuite) TestStart_ComputesDeadlines() {
	snap, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)

	s.Equal("active", snap.Status)
	s.Equal(int64(0), snap.Journey.StartedAt)
	s.Equal(int64(900_000), snap.Journey.ArrivalTime)
	s.Equal(int64(960_000), snap.Journey.CheckExpiry)
	s.Equal(int64(1_020_000), snap.Journey.WarningExpiry)
	s.Equal(int64(900_000), snap.TimeRemainingMs)

	s.Equal([]string{"j_1"}, s.scheduler.scheduled)
	s.Equal(1, s.clk.Pending())
	s.Equal(model.JourneyStatusActive, s.stored().Status)
}

func (s *JourneyServiceSuite) TestStart_RejectsInvalidDurations() {
	for _, d := range []time.Duration{0, -time.Second, 25 * time.Hour} {
		_, err := s.svc.Start(s.ctx, d)
		s.ErrorIs(err, pkgerrors.InvalidDuration)
	}
	s.Nil(s.stored())
	s.Empty(s.scheduler.scheduled)
}

func (s *JourneyServiceSuite) TestStart_RejectsOverlap() {
	_, err := s.svc.Start(s.ctx, time.Hour)
	s.Require().NoError(err)

	_, err = s.svc.Start(s.ctx, time.Minute)
	s.ErrorIs(err, pkgerrors.JourneyOverlap)
	s.Equal("j_1", s.stored().JourneyID)
}

func (s *JourneyServiceSuite) TestReconcile_InsideCheckWindow() {
	_, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)

	s.clk.Set(time.UnixMilli(950_000))
	snap, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Equal("awaiting_check", snap.Status)
	s.Equal(int64(0), snap.TimeRemainingMs)

	again, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Equal(snap.Status, again.Status)
	s.Equal(0, s.dispatcher.count())
}

func (s *JourneyServiceSuite) TestReconcile_AfterSuspensionJumpsToSOS() {
	_, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)
	s.svc.Stop()

	// 进程挂起期间没有任何定时器触发，恢复后是一个全新的进程
	s.clk.Set(time.UnixMilli(1_025_000))
	resumed := s.newService()

	snap, err := resumed.Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Equal("sos_triggered", snap.Status)
	s.False(snap.IsSendingSOS)
	s.Equal(1, s.dispatcher.count())
	s.Equal(model.JourneyStatusSOSTriggered, s.stored().Status)

	for i := 0; i < 3; i++ {
		_, err = resumed.Reconcile(s.ctx)
		s.Require().NoError(err)
	}
	_, err = s.newService().Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, s.dispatcher.count())
}

func (s *JourneyServiceSuite) TestForegroundTimersEscalate() {
	_, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)

	s.clk.Advance(900 * time.Second)
	s.Equal(model.JourneyStatusAwaitingCheck, s.stored().Status)

	s.clk.Advance(time.Minute)
	s.Equal(model.JourneyStatusAwaitingWarning, s.stored().Status)
	s.Equal(0, s.dispatcher.count())

	s.clk.Advance(time.Minute)
	s.Equal(model.JourneyStatusSOSTriggered, s.stored().Status)
	s.Equal(1, s.dispatcher.count())
	s.Equal(0, s.clk.Pending())
}

func (s *JourneyServiceSuite) TestConfirm_WhileAwaitingWarning() {
	_, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)
	s.clk.Set(time.UnixMilli(970_000))
	cancelsBefore := s.scheduler.cancels

	snap, err := s.svc.Confirm(s.ctx)
	s.Require().NoError(err)
	s.Equal("idle", snap.Status)
	s.Nil(snap.Journey)
	s.Nil(s.stored())
	s.Greater(s.scheduler.cancels, cancelsBefore)
	s.Equal(0, s.clk.Pending())

	s.Require().Len(s.history.records, 1)
	s.Equal(model.JourneyOutcomeConfirmed, s.history.records[0].Outcome)
	s.Equal(model.JourneyStatusAwaitingWarning, s.history.records[0].FinalStatus)
}

func (s *JourneyServiceSuite) TestConfirmAndCancel_AreIdempotent() {
	for i := 0; i < 2; i++ {
		snap, err := s.svc.Confirm(s.ctx)
		s.Require().NoError(err)
		s.Equal("idle", snap.Status)

		snap, err = s.svc.Cancel(s.ctx)
		s.Require().NoError(err)
		s.Equal("idle", snap.Status)

		snap, err = s.svc.Dismiss(s.ctx)
		s.Require().NoError(err)
		s.Equal("idle", snap.Status)
	}
	s.Equal(0, s.dispatcher.count())
	s.Empty(s.history.records)
}

func (s *JourneyServiceSuite) TestExtend_ReplacesJourney() {
	_, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)
	s.clk.Set(time.UnixMilli(970_000))

	snap, err := s.svc.Extend(s.ctx, 900*time.Second)
	s.Require().NoError(err)
	s.Equal("active", snap.Status)
	s.Equal("j_2", snap.Journey.JourneyID)
	s.Equal(int64(970_000), snap.Journey.StartedAt)
	s.Equal(int64(1_870_000), snap.Journey.ArrivalTime)
	s.Equal(1, s.clk.Pending())

	s.Require().Len(s.history.records, 1)
	s.Equal("j_1", s.history.records[0].JourneyID)
	s.Equal(model.JourneyOutcomeExtended, s.history.records[0].Outcome)

	// 旧行程的截止时间已经失效
	s.clk.Set(time.UnixMilli(1_100_000))
	s.Equal(model.JourneyStatusActive, s.stored().Status)
	s.Equal(0, s.dispatcher.count())
}

func (s *JourneyServiceSuite) TestExtend_RequiresAwaitingStage() {
	_, err := s.svc.Extend(s.ctx, time.Minute)
	s.ErrorIs(err, pkgerrors.JourneyNotFound)

	_, err = s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)
	_, err = s.svc.Extend(s.ctx, time.Minute)
	s.ErrorIs(err, pkgerrors.JourneyNotExtendable)

	s.clk.Set(time.UnixMilli(1_030_000))
	_, err = s.svc.Extend(s.ctx, time.Minute)
	s.ErrorIs(err, pkgerrors.JourneyNotExtendable)
	s.Equal(1, s.dispatcher.count())
}

func (s *JourneyServiceSuite) TestStaleTimerIsIgnored() {
	_, err := s.svc.Start(s.ctx, 5*time.Minute)
	s.Require().NoError(err)

	s.svc.mu.Lock()
	staleGen := s.svc.generation
	s.svc.mu.Unlock()

	_, err = s.svc.Cancel(s.ctx)
	s.Require().NoError(err)
	_, err = s.svc.Start(s.ctx, 30*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, s.clk.Pending())

	// 旧定时器已经触发但晚于状态变更才拿到锁
	s.svc.onTimer(staleGen)
	s.clk.Set(time.UnixMilli((10 * time.Minute).Milliseconds()))

	j := s.stored()
	s.Equal("j_2", j.JourneyID)
	s.Equal(model.JourneyStatusActive, j.Status)
	s.Equal(0, s.dispatcher.count())
}

func (s *JourneyServiceSuite) TestSOS_ConfirmRejectedAndDismissClears() {
	_, err := s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)
	s.clk.Advance(3 * time.Minute)
	s.Equal(1, s.dispatcher.count())

	_, err = s.svc.Confirm(s.ctx)
	s.ErrorIs(err, pkgerrors.JourneyNotModifiable)

	snap, err := s.svc.Dismiss(s.ctx)
	s.Require().NoError(err)
	s.Equal("idle", snap.Status)
	s.Nil(s.stored())

	s.Require().Len(s.history.records, 1)
	s.Equal(model.JourneyOutcomeSOSDismissed, s.history.records[0].Outcome)
	s.True(s.history.records[0].SOSDispatched)

	_, err = s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)
	_, err = s.svc.Dismiss(s.ctx)
	s.ErrorIs(err, pkgerrors.JourneyNotModifiable)
}

func (s *JourneyServiceSuite) TestSOS_DispatchFailureSurfacesError() {
	s.dispatcher.err = pkgerrors.SOSDispatchFailed
	_, err := s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)

	s.clk.Set(time.UnixMilli((5 * time.Minute).Milliseconds()))
	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal("sos_triggered", snap.Status)
	s.Equal(pkgerrors.SOSDispatchFailed.Message, snap.SOSError)
	s.False(snap.IsSendingSOS)
	s.Equal(1, s.dispatcher.count())
}

func (s *JourneyServiceSuite) TestSOS_AlreadyDispatchedIsNotAnError() {
	s.dispatcher.err = ErrAlreadyDispatched
	_, err := s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)

	s.clk.Set(time.UnixMilli((5 * time.Minute).Milliseconds()))
	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Empty(snap.SOSError)
}

func (s *JourneyServiceSuite) TestNotificationActions() {
	_, err := s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)
	s.clk.Advance(time.Minute)

	snap, err := s.svc.HandleNotificationAction(s.ctx, model.NotificationAction{
		JourneyID: "j_other", ActionTypeID: model.ActionTypeCheck, ActionID: model.ActionYes,
	})
	s.Require().NoError(err)
	s.Equal("awaiting_check", snap.Status)

	snap, err = s.svc.HandleNotificationAction(s.ctx, model.NotificationAction{
		JourneyID: "j_1", ActionTypeID: model.ActionTypeCheck, ActionID: model.ActionNo,
	})
	s.Require().NoError(err)
	s.True(snap.ShowExtendDialog)

	s.svc.CloseExtendPrompt()
	snap, err = s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.False(snap.ShowExtendDialog)

	snap, err = s.svc.HandleNotificationAction(s.ctx, model.NotificationAction{
		JourneyID: "j_1", ActionTypeID: model.ActionTypeWarning, ActionID: model.ActionYes,
	})
	s.Require().NoError(err)
	s.Equal("idle", snap.Status)
	s.Nil(s.stored())
}

func (s *JourneyServiceSuite) TestNotificationPermissionDenied_SkipsScheduler() {
	s.Require().NoError(s.permissions.Set(s.ctx, model.Permissions{
		Location: model.PermissionGranted, Notifications: model.PermissionDenied,
	}))

	_, err := s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)
	s.Empty(s.scheduler.scheduled)
	// 前台定时器照常工作
	s.Equal(1, s.clk.Pending())
}

func (s *JourneyServiceSuite) TestCorruptRecordIsErased() {
	_, err := s.svc.Start(s.ctx, time.Minute)
	s.Require().NoError(err)
	s.mr.HSet(testKey("safe_arrival:v1"), "status", "teleported")

	snap, err := s.newService().Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Equal("idle", snap.Status)
	s.False(s.mr.Exists(testKey("safe_arrival:v1")))
}

func (s *JourneyServiceSuite) TestStoreUnavailable() {
	s.mr.Close()
	_, err := s.svc.Reconcile(s.ctx)
	s.Error(err)
	s.False(errors.Is(err, cache.ErrCorruptJourney))
}

func (s *JourneyServiceSuite) TestExtend_FailureKeepsExistingSchedule() {
	_, err := s.svc.Start(s.ctx, 900*time.Second)
	s.Require().NoError(err)
	s.clk.Set(time.UnixMilli(930_000))
	_, err = s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)

	s.scheduler.mu.Lock()
	cancels, scheduled := s.scheduler.cancels, len(s.scheduler.scheduled)
	s.scheduler.mu.Unlock()

	s.svc.opts.NewID = func() (string, error) { return "", errors.New("id generator down") }
	_, err = s.svc.Extend(s.ctx, 900*time.Second)
	s.Require().Error(err)

	s.scheduler.mu.Lock()
	s.Equal(cancels, s.scheduler.cancels)
	s.Len(s.scheduler.scheduled, scheduled)
	s.scheduler.mu.Unlock()

	s.Equal("j_1", s.stored().JourneyID)
	s.Empty(s.history.records)
}
