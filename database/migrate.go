package database

import (
	"github.com/yeremiapane/table-service/models"
	"github.com/yeremiapane/table-service/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Table{}); err != nil {
		return err
	}
	utils.InfoLogger.Info("AutoMigrate completed.")

	// rows written before order history existed
	res := db.Exec("UPDATE tables SET order_history = '[]' WHERE order_history IS NULL OR order_history = ''")
	if res.Error != nil {
		utils.ErrorLogger.Errorf("Error backfilling order_history: %v", res.Error)
		return res.Error
	}
	if res.RowsAffected > 0 {
		utils.InfoLogger.Infof("Backfilled order_history on %d tables", res.RowsAffected)
	}
	return nil
}
