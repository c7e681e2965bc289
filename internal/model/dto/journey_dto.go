package dto

import (
	"fmt"
	"math"
	"time"
)

// maxDurationMs 超过该值时换算成 time.Duration 会溢出
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// ========== Journey 相关 DTO ==========

// DurationRequest 开始或延长行程的请求，duration_ms 与 duration 二选一
type DurationRequest struct {
	DurationMs *int64 `json:"duration_ms"`
	Duration   string `json:"duration"` // Go duration 格式，如 "15m"
}

// Resolve 解析请求中的时长，非数字或非正数均返回错误
func (r DurationRequest) Resolve() (time.Duration, error) {
	if r.DurationMs != nil {
		if *r.DurationMs <= 0 {
			return 0, fmt.Errorf("duration_ms must be positive")
		}
		if *r.DurationMs > maxDurationMs {
			return 0, fmt.Errorf("duration_ms %d out of range", *r.DurationMs)
		}
		return time.Duration(*r.DurationMs) * time.Millisecond, nil
	}
	if r.Duration == "" {
		return 0, fmt.Errorf("duration_ms or duration is required")
	}
	d, err := time.ParseDuration(r.Duration)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", r.Duration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

// JourneyItem 行程详情，时间戳为毫秒
type JourneyItem struct {
	JourneyID     string `json:"journey_id"`
	Status        string `json:"status"`
	StartedAt     int64  `json:"started_at"`
	DurationMs    int64  `json:"duration_ms"`
	ArrivalTime   int64  `json:"arrival_time"`
	CheckExpiry   int64  `json:"check_expiry"`
	WarningExpiry int64  `json:"warning_expiry"`
}

// JourneySnapshot 前端展示所需的完整状态
type JourneySnapshot struct {
	Status           string       `json:"status"`
	Journey          *JourneyItem `json:"journey,omitempty"`
	TimeRemainingMs  int64        `json:"time_remaining_ms"`
	ShowExtendDialog bool         `json:"show_extend_dialog"`
	IsSendingSOS     bool         `json:"is_sending_sos"`
	SOSError         string       `json:"sos_error,omitempty"`
}

// JourneyRecordItem 历史行程项
type JourneyRecordItem struct {
	ID            string    `json:"id"`
	JourneyID     string    `json:"journey_id"`
	DurationMs    int64     `json:"duration_ms"`
	StartedAt     time.Time `json:"started_at"`
	ArrivalTime   time.Time `json:"arrival_time"`
	FinalStatus   string    `json:"final_status"`
	Outcome       string    `json:"outcome"`
	EndedAt       time.Time `json:"ended_at"`
	SOSDispatched bool      `json:"sos_dispatched"`
}

// JourneyListQuery 行程历史查询参数
type JourneyListQuery struct {
	Cursor string `query:"cursor"`
	Limit  int    `query:"limit"`
}

// NotificationActionRequest 通知动作回调
type NotificationActionRequest struct {
	JourneyID      string `json:"journey_id"`
	NotificationID int    `json:"notification_id"`
	ActionTypeID   string `json:"action_type_id"`
	ActionID       string `json:"action_id"`
}

// ManualSOSRequest 紧急按钮请求
type ManualSOSRequest struct {
	Message string `json:"message"`
}

// SOSResult 告警发送结果
type SOSResult struct {
	RequestID    string `json:"request_id"`
	Sent         bool   `json:"sent"`
	UsedFallback bool   `json:"used_fallback"`
}

// PermissionsBody 权限上报与查询
type PermissionsBody struct {
	Location      string `json:"location"`
	Notifications string `json:"notifications"`
}
