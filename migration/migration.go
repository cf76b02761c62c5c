package migration

import (
	"strings"

	"github.com/equitylab/gocax/models"
	"github.com/jinzhu/gorm"
	gormigrate "gopkg.in/gormigrate.v1"
)

// Migration contains all of the incremental migrations that the
// database requires to keep its schema up to date with current gocax
// source code.
func Migration(db *gorm.DB) *gormigrate.Gormigrate {
	return gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// initial migration
		{
			ID: "202601121107",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&models.Equity{}).Error; err != nil {
					return err
				}
				if err := tx.AutoMigrate(&models.CorporateAction{}).Error; err != nil {
					return err
				}
				if err := tx.AutoMigrate(&models.HistoryLogEntry{}).Error; err != nil {
					return err
				}
				if err := tx.AutoMigrate(&models.BatchError{}).Error; err != nil {
					return err
				}
				return tx.AutoMigrate(&models.BatchMetric{}).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
		// the due-actions scan filters on status + execution_date
		{
			ID: "202601261415",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("CREATE INDEX idx_actions_due ON corporate_actions (status, execution_date)").Error; err != nil && !strings.Contains(err.Error(), "already exists") {
					return err
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX idx_actions_due").Error; err != nil && !strings.Contains(err.Error(), "does not exist") {
					return err
				}
				return nil
			},
		},
		// rollback cascade scans closed actions per equity
		{
			ID: "202602021010",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("CREATE INDEX idx_actions_equity_status ON corporate_actions (equity_id, status, execution_date)").Error; err != nil && !strings.Contains(err.Error(), "already exists") {
					return err
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX idx_actions_equity_status").Error; err != nil && !strings.Contains(err.Error(), "does not exist") {
					return err
				}
				return nil
			},
		},
		{
			ID: "202603170942",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("ALTER TABLE corporate_actions ADD COLUMN suspend_trading boolean DEFAULT false").Error; err != nil && !strings.Contains(err.Error(), "already exists") {
					return err
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Model(&models.CorporateAction{}).DropColumn("suspend_trading").Error; err != nil && !strings.Contains(err.Error(), "does not exist") {
					return err
				}
				return nil
			},
		},
		{
			ID: "202604081651",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("ALTER TABLE equities ADD COLUMN last_processed_at TIMESTAMP WITH TIME ZONE").Error; err != nil && !strings.Contains(err.Error(), "already exists") {
					return err
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Model(&models.Equity{}).DropColumn("last_processed_at").Error; err != nil && !strings.Contains(err.Error(), "does not exist") {
					return err
				}
				return nil
			},
		},
	})
}
