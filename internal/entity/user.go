package entity

import "database/sql"

type User struct {
	Base

	Name    string `gorm:"unique"`
	Email   sql.NullString
	IsAdmin bool
}
