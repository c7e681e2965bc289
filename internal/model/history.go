package model

import (
	"time"
)

// JourneyOutcome 行程结束方式
type JourneyOutcome string

const (
	JourneyOutcomeConfirmed    JourneyOutcome = "confirmed"     // 用户确认到达
	JourneyOutcomeCancelled    JourneyOutcome = "cancelled"     // 手动取消
	JourneyOutcomeExtended     JourneyOutcome = "extended"      // 被延长的新行程替换
	JourneyOutcomeSOSDismissed JourneyOutcome = "sos_dismissed" // 紧急告警后由用户清除
)

// JourneyRecord 已结束行程的历史记录
type JourneyRecord struct {
	BaseModel
	JourneyID     string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"journey_id"`
	DurationMs    int64          `gorm:"not null" json:"duration_ms"`
	StartedAt     time.Time      `gorm:"type:timestamptz;not null" json:"started_at"`
	ArrivalTime   time.Time      `gorm:"type:timestamptz;not null" json:"arrival_time"`
	FinalStatus   JourneyStatus  `gorm:"type:varchar(20);not null" json:"final_status"`
	Outcome       JourneyOutcome `gorm:"type:varchar(16);not null;index:idx_journey_records_outcome" json:"outcome"`
	EndedAt       time.Time      `gorm:"type:timestamptz;not null" json:"ended_at"`
	SOSDispatched bool           `gorm:"not null;default:false" json:"sos_dispatched"`
}

// TableName 指定表名
func (JourneyRecord) TableName() string {
	return "journey_records"
}

// SOSAttemptStatus 紧急告警发送结果
type SOSAttemptStatus string

const (
	SOSAttemptStatusSuccess SOSAttemptStatus = "success"
	SOSAttemptStatusFailed  SOSAttemptStatus = "failed"
)

// SOSAttempt 每一次向紧急联系人发送告警的尝试
type SOSAttempt struct {
	BaseModel
	JourneyID        string           `gorm:"type:varchar(32);index:idx_sos_attempts_journey" json:"journey_id,omitempty"`
	RequestID        string           `gorm:"type:varchar(64);not null" json:"request_id"`
	ContactPhoneHash string           `gorm:"type:char(64);not null" json:"contact_phone_hash"`
	Latitude         float64          `gorm:"not null" json:"latitude"`
	Longitude        float64          `gorm:"not null" json:"longitude"`
	Placeholder      bool             `gorm:"not null;default:false" json:"placeholder"`
	Manual           bool             `gorm:"not null;default:false" json:"manual"`
	Status           SOSAttemptStatus `gorm:"type:varchar(16);not null" json:"status"`
	ResponseMessage  *string          `gorm:"type:varchar(255)" json:"response_message,omitempty"`
	AttemptedAt      time.Time        `gorm:"type:timestamptz;not null;default:now()" json:"attempted_at"`
}

// TableName 指定表名
func (SOSAttempt) TableName() string {
	return "sos_attempts"
}
