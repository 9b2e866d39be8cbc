package db

import (
	"gorm.io/gorm"

	"github.com/suPer8Hu/recipe-snap/internal/job"
	"github.com/suPer8Hu/recipe-snap/internal/points"
	"github.com/suPer8Hu/recipe-snap/internal/users"
)

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&users.Profile{},
		&points.Account{},
		&job.Job{},
		&job.Feedback{},
	)
}
