package entity

import "time"

// Migration records which versioned migrators already ran.
type Migration struct {
	Version   string `gorm:"primarykey"`
	AppliedAt time.Time
}
