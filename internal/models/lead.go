package models

import (
	"time"

	"gorm.io/datatypes"
)

// Lead represents a captured sales inquiry from either the Telegram bot
// or the website form.
type Lead struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID string `gorm:"type:text;not null;uniqueIndex"` // Short request id shown to the user.
	Source    string `gorm:"type:text;not null;index"`       // Where the lead came from: consult, order, web.

	UserID   *int64 `gorm:"index"`     // Telegram user id, nil for web leads.
	Username string `gorm:"type:text"` // Telegram username if known.

	Name    string `gorm:"type:text"`          // Contact name.
	Contact string `gorm:"type:text;not null"` // Phone, email or messenger handle.
	Package string `gorm:"type:text"`          // Selected service package, if any.
	Message string `gorm:"type:text"`          // Free-form brief.

	Page string         `gorm:"type:text"` // Page the web form was submitted from.
	UTM  datatypes.JSON `gorm:"type:json"` // UTM parameters captured with the web form.

	IP        string `gorm:"type:text"` // Client address of the web submission.
	UserAgent string `gorm:"type:text"` // Browser user agent of the web submission.

	Delivered bool `gorm:"not null;default:false"` // Whether the notification reached the owner chat.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
