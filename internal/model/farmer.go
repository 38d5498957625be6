package model

// Farmer holds the contact data reminders are delivered to.
type Farmer struct {
	Base
	Name  string `json:"name" db:"name"`
	Phone string `json:"phone,omitempty" db:"phone"`
	Email string `json:"email,omitempty" db:"email"`
}
