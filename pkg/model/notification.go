package model

import "time"

// Notification is a message shown in a user's inbox.
type Notification struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notificationId"`
	UserID         string    `json:"userId,omitempty"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	Timestamp      time.Time `json:"timestamp"`
}

// NotificationPreferences selects the delivery channels for a user.
type NotificationPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	InApp bool `json:"inApp"`
}

// DefaultNotificationPreferences is applied to users who never saved preferences.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Email: true, SMS: false, InApp: true}
}
