package service

import (
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"SafeArrival/config"
	"SafeArrival/internal/cache"
	"SafeArrival/internal/model"
	"SafeArrival/internal/queue"
	"SafeArrival/internal/repository"
	"SafeArrival/internal/schedule"
	"SafeArrival/pkg/clock"
	"SafeArrival/pkg/location"
	"SafeArrival/pkg/sms"
	"SafeArrival/pkg/snowflake"
	"SafeArrival/utils"
)

// Services 一台设备上的全部服务
type Services struct {
	Journey    *JourneyService
	SOS        *SOSDispatcher
	Permission *PermissionService
	History    *HistoryService
	Sink       schedule.Sink
}

var (
	services   *Services
	servicesMu sync.RWMutex
)

// Build 按配置组装服务，db 为 nil 时不记录历史
func Build(cfg *config.Config, rdb goredis.Cmdable, keyFn func(parts ...string) string, db *gorm.DB) (*Services, error) {
	clk := clock.Real()

	sink, err := schedule.NewSink(cfg.NotifySink, cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	if err != nil {
		return nil, err
	}

	var scheduler schedule.NotificationScheduler
	switch cfg.NotifyScheduler {
	case "queue":
		tokens := cache.NewScheduleTokenStore(rdb, keyFn)
		scheduler = schedule.NewQueueScheduler(clk, tokens, queue.PublishJourneyNotification, cache.BrokerBreaker)
	case "timer", "":
		scheduler = schedule.NewTimerScheduler(clk, sink, cfg.NotifyTimeout)
	case "none":
		scheduler = schedule.NoopScheduler{}
	default:
		return nil, fmt.Errorf("unsupported notification scheduler: %s", cfg.NotifyScheduler)
	}

	locator, err := location.New(cfg.LocationProvider, cfg.LocationEndpoint,
		cfg.StaticLatitude, cfg.StaticLongitude, cfg.StaticLocationKnown)
	if err != nil {
		return nil, err
	}

	smsClient, err := sms.New(cfg.SMSProvider)
	if err != nil {
		return nil, err
	}
	gateway := sms.NewAlertGateway(smsClient, cfg.SMSProvider, cfg.SMSSignName, cfg.SMSTemplateCode)

	permissions := cache.NewPermissionStore(rdb, keyFn)

	sosOpts := SOSOptions{
		Locator:         locator,
		Gateway:         gateway,
		ContactPhone:    cfg.SOSContactPhone,
		LocationTimeout: cfg.SOSLocationTimeout,
		SendTimeout:     cfg.SOSSendTimeout,
		Clock:           clk,
		Guard:           cache.NewLocker(rdb, keyFn),
		HashPhone:       utils.HashPhone,
	}

	journeyOpts := JourneyOptions{
		Store:       cache.NewJourneyStore(rdb, keyFn),
		Scheduler:   scheduler,
		Clock:       clk,
		NewID:       snowflake.NextJourneyID,
		Windows:     model.Windows{Check: cfg.CheckWindow, Warning: cfg.WarningWindow},
		MaxDuration: cfg.MaxJourneyDuration,
		Permissions: permissions,
	}

	var history *HistoryService
	if db != nil {
		repo := repository.NewHistoryRepository(db)
		sosOpts.Attempts = repo
		journeyOpts.History = repo
		history = NewHistoryService(repo)
	} else {
		history = NewHistoryService(nil)
	}

	dispatcher := NewSOSDispatcher(sosOpts)
	journeyOpts.Dispatcher = dispatcher

	return &Services{
		Journey:    NewJourneyService(journeyOpts),
		SOS:        dispatcher,
		Permission: NewPermissionService(permissions, locator, sink),
		History:    history,
		Sink:       sink,
	}, nil
}

// Register 设置处理器使用的全局服务
func Register(s *Services) {
	servicesMu.Lock()
	defer servicesMu.Unlock()
	services = s
}

func current() *Services {
	servicesMu.RLock()
	defer servicesMu.RUnlock()
	return services
}

func Journey() *JourneyService {
	return current().Journey
}

func SOS() *SOSDispatcher {
	return current().SOS
}

func Permission() *PermissionService {
	return current().Permission
}

func History() *HistoryService {
	return current().History
}
