package service

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	pkgerrors "SafeArrival/pkg/errors"
	"SafeArrival/pkg/location"
	"SafeArrival/pkg/logger"
)

// 申请权限时探测的超时
const permissionProbeTimeout = 3 * time.Second

// PermissionStore 权限状态的读写
type PermissionStore interface {
	Get(ctx context.Context) (model.Permissions, error)
	Set(ctx context.Context, perms model.Permissions) error
}

// Pinger 通知投递端的可用性探测
type Pinger interface {
	Ping(ctx context.Context) error
}

// PermissionService 定位与通知权限
// 权限只影响功能丰富程度，从不阻塞状态机
type PermissionService struct {
	store   PermissionStore
	locator location.Provider
	sink    Pinger
}

func NewPermissionService(store PermissionStore, locator location.Provider, sink Pinger) *PermissionService {
	return &PermissionService{store: store, locator: locator, sink: sink}
}

func (s *PermissionService) Get(ctx context.Context) (*dto.PermissionsBody, error) {
	perms, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return toPermissionsBody(perms), nil
}

// Set 界面上报的权限，空字段保留原值
func (s *PermissionService) Set(ctx context.Context, body dto.PermissionsBody) (*dto.PermissionsBody, error) {
	perms, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	if body.Location != "" {
		perms.Location = model.PermissionStatus(body.Location)
	}
	if body.Notifications != "" {
		perms.Notifications = model.PermissionStatus(body.Notifications)
	}
	if !perms.Location.Valid() || !perms.Notifications.Valid() {
		return nil, pkgerrors.PermissionStatusInvalid
	}

	if err := s.store.Set(ctx, perms); err != nil {
		return nil, err
	}
	return toPermissionsBody(perms), nil
}

// Request 主动探测两项权限并保存结果
func (s *PermissionService) Request(ctx context.Context) (*dto.PermissionsBody, error) {
	perms := model.Permissions{
		Location:      s.probeLocation(ctx),
		Notifications: s.probeNotifications(ctx),
	}
	if err := s.store.Set(ctx, perms); err != nil {
		return nil, err
	}

	logger.Logger.Info("Permissions probed",
		zap.String("location", string(perms.Location)),
		zap.String("notifications", string(perms.Notifications)),
	)
	return toPermissionsBody(perms), nil
}

func (s *PermissionService) probeLocation(ctx context.Context) model.PermissionStatus {
	if s.locator == nil {
		return model.PermissionUnknown
	}
	ctx, cancel := context.WithTimeout(ctx, permissionProbeTimeout)
	defer cancel()

	_, err := s.locator.CurrentPosition(ctx)
	switch {
	case err == nil:
		return model.PermissionGranted
	case stderrors.Is(err, location.ErrPermissionDenied):
		return model.PermissionDenied
	default:
		// 拿不到定位但没有被拒绝，仍需用户处理
		return model.PermissionPrompt
	}
}

func (s *PermissionService) probeNotifications(ctx context.Context) model.PermissionStatus {
	if s.sink == nil {
		return model.PermissionUnknown
	}
	ctx, cancel := context.WithTimeout(ctx, permissionProbeTimeout)
	defer cancel()

	if err := s.sink.Ping(ctx); err != nil {
		logger.Logger.Warn("Notification sink unavailable", zap.Error(err))
		return model.PermissionDenied
	}
	return model.PermissionGranted
}

func toPermissionsBody(p model.Permissions) *dto.PermissionsBody {
	return &dto.PermissionsBody{
		Location:      string(p.Location),
		Notifications: string(p.Notifications),
	}
}
