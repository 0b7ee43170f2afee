package users

import (
	"strings"
	"time"
)

// Identity maps a provider login onto the user id stamped on leads, orders
// and audit entries.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (Identity) TableName() string {
	return "user_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
