package otp

import "time"

// Record is one ledger entry for an issued passcode. Entries are append-only:
// the verifier deletes them on consumption and never mutates them in place.
// Expired rows stay behind until the email's next successful verification.
type Record struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string    `gorm:"column:email;size:320;not null;index"`
	CodeHash  string    `gorm:"column:code_hash;size:128;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName exposes the table backing the OTP ledger.
func (Record) TableName() string {
	return "otp_records"
}
