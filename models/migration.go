package models

import (
	"errors"

	"github.com/mmdatafocus/kitchen_admin/config"
)

func MigrateTable() error {
	db := config.GetDB()
	if db == nil {
		return errors.New("migrate: database is not connected")
	}

	return db.AutoMigrate(
		&EdoActivity{},
		&EdoEventRecord{},
	)
}
