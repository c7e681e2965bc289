package model

// PermissionStatus 平台权限状态
type PermissionStatus string

const (
	PermissionUnknown PermissionStatus = "unknown"
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
)

func (s PermissionStatus) Valid() bool {
	switch s {
	case PermissionUnknown, PermissionGranted, PermissionDenied, PermissionPrompt:
		return true
	default:
		return false
	}
}

// Permissions 定位与通知两项权限
type Permissions struct {
	Location      PermissionStatus `json:"location"`
	Notifications PermissionStatus `json:"notifications"`
}

// DefaultPermissions 尚未上报时全部为 unknown
func DefaultPermissions() Permissions {
	return Permissions{Location: PermissionUnknown, Notifications: PermissionUnknown}
}
