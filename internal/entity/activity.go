package entity

import "database/sql"

type Activity struct {
	Base

	UserID string `gorm:"index"`
	User   User   `gorm:"foreignKey:UserID"`

	Name     string
	Type     string
	FilePath string

	// PolarExerciseID is set for activities imported from Polar. The unique
	// index is the backstop against duplicate imports of the same exercise.
	PolarExerciseID sql.NullString `gorm:"uniqueIndex"`
	ImportInfo      Map            `gorm:"type:text"`
}
