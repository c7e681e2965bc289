package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeArrival/internal/model/dto"
	"SafeArrival/internal/service"
	"SafeArrival/pkg/response"
)

// SendSOS 紧急按钮，不依赖行程
// POST /v1/sos
func SendSOS(ctx context.Context, c *app.RequestContext) {
	var req dto.ManualSOSRequest
	if len(c.Request.Body()) > 0 {
		if err := c.BindAndValidate(&req); err != nil {
			response.BindError(ctx, c, err)
			return
		}
	}

	result, err := service.SOS().SendManual(ctx, req.Message)
	if err != nil {
		var details map[string]interface{}
		if result != nil {
			details = map[string]interface{}{
				"request_id":    result.RequestID,
				"used_fallback": result.UsedFallback,
			}
		}
		response.ErrorWithDetails(ctx, c, err, details)
		return
	}

	response.Success(ctx, c, result)
}
