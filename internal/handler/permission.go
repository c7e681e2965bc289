package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeArrival/internal/model/dto"
	"SafeArrival/internal/service"
	"SafeArrival/pkg/response"
)

// GetPermissions GET /v1/permissions
func GetPermissions(ctx context.Context, c *app.RequestContext) {
	result, err := service.Permission().Get(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// UpdatePermissions 界面上报权限状态，空字段保持不变
// PUT /v1/permissions
func UpdatePermissions(ctx context.Context, c *app.RequestContext) {
	var req dto.PermissionsBody
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Permission().Set(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// RequestPermissions 主动探测权限
// POST /v1/permissions/request
func RequestPermissions(ctx context.Context, c *app.RequestContext) {
	result, err := service.Permission().Request(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
