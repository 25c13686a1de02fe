package entity

import "database/sql"

// PolarAccount holds everything the Polar integration keeps per user. The
// client credentials and the access token are stored encrypted, so they are
// only readable through the repository.
type PolarAccount struct {
	Base

	UserID string `gorm:"uniqueIndex"`
	User   User   `gorm:"foreignKey:UserID"`

	ClientID     sql.NullString
	ClientSecret sql.NullString

	State         sql.NullString `gorm:"index"`
	StateIssuedAt sql.NullTime

	AccessToken    sql.NullString
	TokenType      sql.NullString
	TokenScope     sql.NullString
	TokenIssuedAt  sql.NullTime
	TokenExpiresAt sql.NullTime

	XUserID          sql.NullInt64
	PolarUserID      sql.NullInt64 `gorm:"index"`
	MemberID         sql.NullString
	RegistrationDate sql.NullTime

	LastNotificationAt sql.NullTime
	IsLinked           bool
}
