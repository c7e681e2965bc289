package model

import "time"

// NotificationKind 行程的三类提醒
type NotificationKind string

const (
	NotificationKindCheck   NotificationKind = "check"   // 到达时间：是否已安全到达
	NotificationKindWarning NotificationKind = "warning" // 确认窗口结束：最后警告
	NotificationKindSOS     NotificationKind = "sos"     // 警告窗口结束：紧急告警，不可交互
)

// 通知 ID，与移动端本地通知保持一致
const (
	NotificationIDCheck   = 1001
	NotificationIDWarning = 1002
	NotificationIDSOS     = 1003
)

// 可交互通知的动作类型
const (
	ActionTypeCheck   = "SAFE_ARRIVAL_CHECK"
	ActionTypeWarning = "SAFE_ARRIVAL_WARNING"

	ActionYes = "YES"
	ActionNo  = "NO"
	ActionTap = "tap"
)

// NotificationChannelID 通知渠道
const NotificationChannelID = "safe-arrival"

// Notification 一条待投递的提醒，携带 JourneyID 以便动作回调匹配行程
type Notification struct {
	ID           int              `json:"id"`
	Kind         NotificationKind `json:"kind"`
	JourneyID    string           `json:"journey_id"`
	Title        string           `json:"title"`
	Body         string           `json:"body"`
	At           time.Time        `json:"at"`
	ActionTypeID string           `json:"action_type_id,omitempty"`
	ChannelID    string           `json:"channel_id"`
}

// Interactive 是否带有 YES/NO 动作
func (n Notification) Interactive() bool {
	return n.ActionTypeID != ""
}

// NotificationsFor 为行程生成三条提醒
func NotificationsFor(j *Journey) []Notification {
	return []Notification{
		{
			ID:           NotificationIDCheck,
			Kind:         NotificationKindCheck,
			JourneyID:    j.JourneyID,
			Title:        "Have you reached safely?",
			Body:         "Tap YES to confirm your safe arrival, or NO if you need more time.",
			At:           j.ArrivalTime,
			ActionTypeID: ActionTypeCheck,
			ChannelID:    NotificationChannelID,
		},
		{
			ID:           NotificationIDWarning,
			Kind:         NotificationKindWarning,
			JourneyID:    j.JourneyID,
			Title:        "We're concerned about you",
			Body:         "No response received. Please confirm you are safe. Emergency alerts will be sent shortly.",
			At:           j.CheckExpiry,
			ActionTypeID: ActionTypeWarning,
			ChannelID:    NotificationChannelID,
		},
		{
			ID:        NotificationIDSOS,
			Kind:      NotificationKindSOS,
			JourneyID: j.JourneyID,
			Title:     "Emergency alert being sent",
			Body:      "No safe arrival confirmation received. Emergency contacts are being notified now.",
			At:        j.WarningExpiry,
			ChannelID: NotificationChannelID,
		},
	}
}

// NotificationAction 用户在通知上的操作
type NotificationAction struct {
	JourneyID      string `json:"journey_id"`
	NotificationID int    `json:"notification_id"`
	ActionTypeID   string `json:"action_type_id"`
	ActionID       string `json:"action_id"`
}
