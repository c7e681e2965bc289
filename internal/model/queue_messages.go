package model

// JourneyNotificationMessage 行程提醒延迟消息
// ScheduleToken 与 Redis 中当前的调度令牌一致时才投递，取消或重排后旧消息自动作废
type JourneyNotificationMessage struct {
	MessageID     string       `json:"message_id"` // 消息唯一ID，用于幂等性检查
	ScheduleToken string       `json:"schedule_token"`
	ScheduledAt   string       `json:"scheduled_at"`
	DelaySeconds  int          `json:"delay_seconds"`
	Notification  Notification `json:"notification"`
}
