package notes

import "time"

// Note is a user-owned note. Access is always scoped by user id: a note
// belonging to another user is indistinguishable from one that does not exist.
type Note struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index"`
	Title     string    `gorm:"column:title;size:512;not null"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}
