package cache

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"SafeArrival/internal/model"
)

const (
	permissionKey = "permissions"

	permissionFieldLocation      = "location"
	permissionFieldNotifications = "notifications"
)

// PermissionStore 保存设备上报的定位与通知权限状态
type PermissionStore struct {
	rdb goredis.Cmdable
	key string
}

func NewPermissionStore(rdb goredis.Cmdable, keyFn func(parts ...string) string) *PermissionStore {
	return &PermissionStore{rdb: rdb, key: keyFn(permissionKey)}
}

// Get 读取权限，未上报或无法识别的值按 unknown 处理
func (s *PermissionStore) Get(ctx context.Context) (model.Permissions, error) {
	values, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.DefaultPermissions(), fmt.Errorf("failed to load permissions: %w", err)
	}

	perms := model.DefaultPermissions()
	if v := model.PermissionStatus(values[permissionFieldLocation]); v.Valid() {
		perms.Location = v
	}
	if v := model.PermissionStatus(values[permissionFieldNotifications]); v.Valid() {
		perms.Notifications = v
	}
	return perms, nil
}

// Set 覆盖保存权限
func (s *PermissionStore) Set(ctx context.Context, perms model.Permissions) error {
	if !perms.Location.Valid() || !perms.Notifications.Valid() {
		return fmt.Errorf("invalid permission status: location=%q notifications=%q", perms.Location, perms.Notifications)
	}
	err := s.rdb.HSet(ctx, s.key,
		permissionFieldLocation, string(perms.Location),
		permissionFieldNotifications, string(perms.Notifications),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save permissions: %w", err)
	}
	return nil
}
