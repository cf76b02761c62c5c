package txlevel

import "github.com/jinzhu/gorm"

// Repeatable reports whether tx runs at repeatable read or stronger.
// Code that restores equity snapshots uses it to refuse weaker
// isolation, where the restore and its cascade could observe
// different states.
func Repeatable(tx *gorm.DB) (bool, error) {
	var level struct {
		TransactionIsolation string `json:"transaction_isolation"`
	}

	if err := tx.Raw("SHOW TRANSACTION ISOLATION LEVEL").Scan(&level).Error; err != nil {
		return false, err
	}

	switch level.TransactionIsolation {
	case "repeatable read", "serializable":
		return true, nil
	}
	return false, nil
}
