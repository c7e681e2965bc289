package schedule

// 墙上时钟看门狗：系统挂起期间单调定时器不会前进，
// 所以除了前台定时器之外还要按固定间隔重新对账一次

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"SafeArrival/pkg/logger"
)

// Watchdog 定期调用 reconcile
type Watchdog struct {
	interval  time.Duration
	reconcile func(ctx context.Context) error

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func NewWatchdog(interval time.Duration, reconcile func(ctx context.Context) error) *Watchdog {
	return &Watchdog{interval: interval, reconcile: reconcile}
}

// Run 阻塞直到 ctx 取消
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Logger.Info("Reconcile watchdog started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info("Reconcile watchdog stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一次对账，上一次还没结束时直接跳过
func (w *Watchdog) RunOnce(ctx context.Context) bool {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		logger.Logger.Debug("Reconcile already running, skipping")
		return false
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.lastRun = time.Now()
		w.mu.Unlock()
	}()

	if err := w.reconcile(ctx); err != nil {
		logger.Logger.Warn("Watchdog reconcile failed", zap.Error(err))
	}
	return true
}

// LastRun 最近一次对账完成的时间
func (w *Watchdog) LastRun() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}
