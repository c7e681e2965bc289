package middleware

import (
	"go.uber.org/zap"

	"SafeArrival/pkg/logger"
)

// Init 初始化所有中间件，authEnabled 为 false 时不校验设备令牌
func Init(authEnabled bool) error {
	authMiddleware = nil
	if authEnabled {
		if err := initAuthMiddleware(); err != nil {
			logger.Logger.Error("Failed to initialize auth middleware", zap.Error(err))
			return err
		}
	}

	logger.Logger.Info("All middlewares initialized successfully", zap.Bool("auth_enabled", authEnabled))
	return nil
}
