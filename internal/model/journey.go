package model

import (
	"fmt"
	"time"
)

// JourneyStatus 行程阶段枚举
type JourneyStatus string

const (
	JourneyStatusIdle            JourneyStatus = "idle" // 仅作为派生值，从不持久化
	JourneyStatusActive          JourneyStatus = "active"
	JourneyStatusAwaitingCheck   JourneyStatus = "awaiting_check"
	JourneyStatusAwaitingWarning JourneyStatus = "awaiting_warning"
	JourneyStatusSOSTriggered    JourneyStatus = "sos_triggered"
)

// Persistable 判断状态是否可以写入存储
func (s JourneyStatus) Persistable() bool {
	switch s {
	case JourneyStatusActive, JourneyStatusAwaitingCheck, JourneyStatusAwaitingWarning, JourneyStatusSOSTriggered:
		return true
	default:
		return false
	}
}

// Awaiting 表示行程处于等待用户确认的阶段
func (s JourneyStatus) Awaiting() bool {
	return s == JourneyStatusAwaitingCheck || s == JourneyStatusAwaitingWarning
}

// Windows 到达之后的两个宽限窗口
type Windows struct {
	Check   time.Duration
	Warning time.Duration
}

// Journey 设备上唯一的行程记录
// 除 Status 外的字段创建后不可变；新的时长总是生成一整套新的时间戳
type Journey struct {
	Status        JourneyStatus
	JourneyID     string
	StartedAt     time.Time
	Duration      time.Duration
	ArrivalTime   time.Time
	CheckExpiry   time.Time
	WarningExpiry time.Time
}

// NewJourney 以 now 为起点计算四个时间戳，精度统一到毫秒
func NewJourney(id string, now time.Time, d time.Duration, w Windows) (*Journey, error) {
	d = d.Truncate(time.Millisecond)
	if d <= 0 {
		return nil, fmt.Errorf("journey duration must be positive, got %v", d)
	}
	if w.Check <= 0 || w.Warning <= 0 {
		return nil, fmt.Errorf("journey windows must be positive, got check=%v warning=%v", w.Check, w.Warning)
	}
	if id == "" {
		return nil, fmt.Errorf("journey id is required")
	}

	startedAt := time.UnixMilli(now.UnixMilli())
	arrival := startedAt.Add(d)
	check := arrival.Add(w.Check.Truncate(time.Millisecond))
	warning := check.Add(w.Warning.Truncate(time.Millisecond))

	j := &Journey{
		Status:        JourneyStatusActive,
		JourneyID:     id,
		StartedAt:     startedAt,
		Duration:      d,
		ArrivalTime:   arrival,
		CheckExpiry:   check,
		WarningExpiry: warning,
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate 检查记录的内部一致性
func (j *Journey) Validate() error {
	if j.JourneyID == "" {
		return fmt.Errorf("journey id is empty")
	}
	if !j.Status.Persistable() {
		return fmt.Errorf("journey %s has invalid status %q", j.JourneyID, j.Status)
	}
	if !(j.StartedAt.Before(j.ArrivalTime) && j.ArrivalTime.Before(j.CheckExpiry) && j.CheckExpiry.Before(j.WarningExpiry)) {
		return fmt.Errorf("journey %s timestamps out of order", j.JourneyID)
	}
	if j.ArrivalTime.Sub(j.StartedAt) != j.Duration {
		return fmt.Errorf("journey %s arrival time does not match duration", j.JourneyID)
	}
	return nil
}

// StageAt 按墙上时间推导阶段，不考虑 sos_triggered 的粘滞性
func (j *Journey) StageAt(now time.Time) JourneyStatus {
	switch {
	case !now.Before(j.WarningExpiry):
		return JourneyStatusSOSTriggered
	case !now.Before(j.CheckExpiry):
		return JourneyStatusAwaitingWarning
	case !now.Before(j.ArrivalTime):
		return JourneyStatusAwaitingCheck
	default:
		return JourneyStatusActive
	}
}

// NextDeadline 返回当前阶段之后的下一个截止时间，终态没有截止时间
func (j *Journey) NextDeadline() (time.Time, bool) {
	switch j.Status {
	case JourneyStatusActive:
		return j.ArrivalTime, true
	case JourneyStatusAwaitingCheck:
		return j.CheckExpiry, true
	case JourneyStatusAwaitingWarning:
		return j.WarningExpiry, true
	default:
		return time.Time{}, false
	}
}

// WithStatus 返回只修改了阶段的副本
func (j *Journey) WithStatus(s JourneyStatus) *Journey {
	cp := *j
	cp.Status = s
	return &cp
}
