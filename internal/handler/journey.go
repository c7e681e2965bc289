package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	"SafeArrival/internal/service"
	"SafeArrival/pkg/errors"
	"SafeArrival/pkg/response"
)

// GetJourney 查询当前行程快照，读取前会先对账
// GET /v1/journey
func GetJourney(ctx context.Context, c *app.RequestContext) {
	snapshot, err := service.Journey().Snapshot(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// StartJourney 开始行程
// POST /v1/journey
func StartJourney(ctx context.Context, c *app.RequestContext) {
	var req dto.DurationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	d, err := req.Resolve()
	if err != nil {
		response.ErrorWithDetails(ctx, c, errors.InvalidDuration, map[string]interface{}{"reason": err.Error()})
		return
	}

	snapshot, err := service.Journey().Start(ctx, d)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// ExtendJourney 在等待确认阶段延长行程
// POST /v1/journey/extend
func ExtendJourney(ctx context.Context, c *app.RequestContext) {
	var req dto.DurationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	d, err := req.Resolve()
	if err != nil {
		response.ErrorWithDetails(ctx, c, errors.InvalidDuration, map[string]interface{}{"reason": err.Error()})
		return
	}

	snapshot, err := service.Journey().Extend(ctx, d)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// ConfirmJourney 确认平安到达
// POST /v1/journey/confirm
func ConfirmJourney(ctx context.Context, c *app.RequestContext) {
	snapshot, err := service.Journey().Confirm(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// CancelJourney 取消行程
// DELETE /v1/journey
func CancelJourney(ctx context.Context, c *app.RequestContext) {
	snapshot, err := service.Journey().Cancel(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// DismissJourney 告警发出后关闭 SOS 界面
// POST /v1/journey/dismiss
func DismissJourney(ctx context.Context, c *app.RequestContext) {
	snapshot, err := service.Journey().Dismiss(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// ReconcileJourney 前台恢复时主动对账
// POST /v1/journey/reconcile
func ReconcileJourney(ctx context.Context, c *app.RequestContext) {
	snapshot, err := service.Journey().Reconcile(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// CloseExtendPrompt 关闭延长对话框
// POST /v1/journey/extend-prompt/close
func CloseExtendPrompt(ctx context.Context, c *app.RequestContext) {
	journey := service.Journey()
	journey.CloseExtendPrompt()

	snapshot, err := journey.Snapshot(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// HandleNotificationAction 通知按钮回调
// POST /v1/journey/notifications/actions
func HandleNotificationAction(ctx context.Context, c *app.RequestContext) {
	var req dto.NotificationActionRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	if req.JourneyID == "" || req.ActionID == "" {
		response.Error(ctx, c, errors.NotifyAckInvalid)
		return
	}

	snapshot, err := service.Journey().HandleNotificationAction(ctx, model.NotificationAction{
		JourneyID:      req.JourneyID,
		NotificationID: req.NotificationID,
		ActionTypeID:   req.ActionTypeID,
		ActionID:       req.ActionID,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, snapshot)
}

// ListJourneys 分页查询已结束的行程
// GET /v1/journeys
func ListJourneys(ctx context.Context, c *app.RequestContext) {
	var query dto.JourneyListQuery
	if err := c.BindAndValidate(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	items, nextCursor, err := service.History().ListJourneys(ctx, query)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	meta := map[string]interface{}{}
	if nextCursor != "" {
		meta["next_cursor"] = nextCursor
	}
	response.SuccessWithMeta(ctx, c, items, meta)
}
