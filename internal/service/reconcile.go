package service

import (
	"time"

	"SafeArrival/internal/model"
)

// Decision 一次对账的结果
type Decision struct {
	Target model.JourneyStatus
	// Dispatch 为 true 表示本次对账首次进入 sos_triggered，需要发送告警
	Dispatch bool
	// Remaining 距离到达时间的倒计时，仅 active 阶段有值
	Remaining time.Duration
}

// Reconcile 按墙上时间重新推导行程应处的阶段
// 从最晚的截止时间往前比较，直接跳到已经过去的最远阶段，不逐级回放
// sos_triggered 一旦进入就保持不变；时钟回拨时其余阶段按新的时间重新推导
func Reconcile(now time.Time, j *model.Journey) Decision {
	if j == nil {
		return Decision{Target: model.JourneyStatusIdle}
	}
	if j.Status == model.JourneyStatusSOSTriggered {
		return Decision{Target: model.JourneyStatusSOSTriggered}
	}

	d := Decision{Target: j.StageAt(now)}
	switch d.Target {
	case model.JourneyStatusSOSTriggered:
		d.Dispatch = true
	case model.JourneyStatusActive:
		d.Remaining = j.ArrivalTime.Sub(now)
	}
	return d
}
