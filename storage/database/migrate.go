package database

import (
	"SafeArrival/internal/model"
	"SafeArrival/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 创建行程历史与告警审计表
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.JourneyRecord{},
		&model.SOSAttempt{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
