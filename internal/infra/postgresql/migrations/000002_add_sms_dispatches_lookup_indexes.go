package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addDispatchesLookupIndexes() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_sms_dispatches_lookup_indexes",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_sms_dispatches_to_created ON sms_dispatches (to_number, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_sms_dispatches_status ON sms_dispatches (status) WHERE status <> 'SENT'`,
				`CREATE INDEX IF NOT EXISTS idx_sms_dispatches_correlation_id ON sms_dispatches (correlation_id)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`DROP INDEX IF EXISTS idx_sms_dispatches_correlation_id`,
				`DROP INDEX IF EXISTS idx_sms_dispatches_status`,
				`DROP INDEX IF EXISTS idx_sms_dispatches_to_created`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
