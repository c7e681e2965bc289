package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"SafeArrival/internal/handler"
	"SafeArrival/internal/middleware"
)

// Options 路由装配选项
type Options struct {
	IsProduction bool
	// 为空时紧急按钮不限流
	SOSLimiter *middleware.RateLimiter
}

func Register(h *server.Hertz, opts Options) {
	h.Use(middleware.RecoverMiddleware(middleware.NewRecoverConfig(opts.IsProduction)))
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/healthz", handler.Healthz)

	v1 := h.Group("/v1")
	v1.Use(middleware.AuthMiddleware()) // 未开启鉴权时直接放行

	// 当前行程
	journey := v1.Group("/journey")
	{
		journey.GET("", handler.GetJourney)
		journey.POST("", handler.StartJourney)
		journey.DELETE("", handler.CancelJourney)
		journey.POST("/extend", handler.ExtendJourney)
		journey.POST("/confirm", handler.ConfirmJourney)
		journey.POST("/dismiss", handler.DismissJourney)
		journey.POST("/reconcile", handler.ReconcileJourney)
		journey.POST("/extend-prompt/close", handler.CloseExtendPrompt)
		journey.POST("/notifications/actions", handler.HandleNotificationAction)
	}

	// 历史行程
	v1.GET("/journeys", handler.ListJourneys)

	// 紧急按钮
	if opts.SOSLimiter != nil {
		v1.POST("/sos", middleware.RateLimitMiddleware(opts.SOSLimiter), handler.SendSOS)
	} else {
		v1.POST("/sos", handler.SendSOS)
	}

	// 平台权限
	permissions := v1.Group("/permissions")
	{
		permissions.GET("", handler.GetPermissions)
		permissions.PUT("", handler.UpdatePermissions)
		permissions.POST("/request", handler.RequestPermissions)
	}
}
