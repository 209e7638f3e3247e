package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses.
const (
	SubscriptionTrial    = "trial"
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

type Clinic struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              *string   `json:"phone,omitempty"`
	Address            *string   `json:"address,omitempty"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	Settings           Settings  `json:"settings"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Settings are clinic-wide preferences.
type Settings struct {
	AllowPatientSignup       bool `json:"allowPatientSignup"`
	RequireEmailVerification bool `json:"requireEmailVerification"`
	AutoSendReminders        bool `json:"autoSendReminders"`
	ReminderDaysBefore       int  `json:"reminderDaysBefore"`
}

func DefaultSettings() Settings {
	return Settings{
		AllowPatientSignup:       true,
		RequireEmailVerification: true,
		AutoSendReminders:        true,
		ReminderDaysBefore:       2,
	}
}

type User struct {
	ID                uuid.UUID  `json:"id"`
	ClinicID          uuid.UUID  `json:"clinicId"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Role              string     `json:"role"`
	IsActive          bool       `json:"isActive"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
	ResetTokenHash    *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ClinicPatch carries the editable clinic attributes; nil members are kept.
type ClinicPatch struct {
	Name     *string   `json:"name"`
	Phone    *string   `json:"phone"`
	Address  *string   `json:"address"`
	Settings *Settings `json:"settings"`
}

func (p ClinicPatch) apply(c *Clinic) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Phone != nil {
		c.Phone = p.Phone
	}
	if p.Address != nil {
		c.Address = p.Address
	}
	if p.Settings != nil {
		c.Settings = *p.Settings
	}
}

// UserPatch carries the attributes an admin may change on a user.
type UserPatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"isActive"`
}

func (p UserPatch) apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}
