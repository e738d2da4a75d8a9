// Package models defines the database models for the guess store.
package models

import "time"

// UnknownFID is stored when the submitter's social identity is not known.
// The store schema requires a value, so it is never left empty.
const UnknownFID int64 = 1

// GuessRecord is one persisted raffle entry. It is written only after the
// entry transaction has been confirmed on-chain and is never updated.
type GuessRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Timestamp    int64     `gorm:"not null;uniqueIndex:ux_guess_user_ts" json:"timestamp"`
	UserAddress  string    `gorm:"size:64;not null;uniqueIndex:ux_guess_user_ts;index" json:"user_address"`
	FID          int64     `gorm:"column:fid;not null;index" json:"fid"`
	ReadableTime string    `gorm:"size:32;not null" json:"readable_time"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name independent of the struct name.
func (GuessRecord) TableName() string {
	return "guesses"
}

// FIDOrUnknown maps a missing identity to UnknownFID.
func FIDOrUnknown(fid int64) int64 {
	if fid <= 0 {
		return UnknownFID
	}
	return fid
}
