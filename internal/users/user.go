package users

import (
	"strings"
	"time"
)

// Provider values recorded on a user at creation time. Informational only:
// the provider never gates which login method an email may use.
const (
	ProviderGoogle = "google"
	ProviderOTP    = "otp"
)

// User is the canonical identity record keyed by email.
type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email     string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;size:320"`
	Picture   string    `gorm:"column:picture;size:512"`
	Provider  string    `gorm:"column:provider;size:32;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing user identities.
func (User) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
