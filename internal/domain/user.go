package domain

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type NotificationPreference string

const (
	NotifyAll       NotificationPreference = "ALL"
	NotifyImportant NotificationPreference = "IMPORTANT"
	NotifyNone      NotificationPreference = "NONE"
)

type User struct {
	ID                     int                    `json:"id"`
	Email                  string                 `json:"email"`
	Password               string                 `json:"-"` // password hash, never serialized
	FirstName              string                 `json:"first_name"`
	LastName               string                 `json:"last_name"`
	Role                   Role                   `json:"role"`
	NotificationPreference NotificationPreference `json:"notification_preference"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ShouldReceiveNotification reports whether the user's preference admits a
// notification of the given type. IMPORTANT covers only cancellations and
// expiries.
func (u *User) ShouldReceiveNotification(notificationType string) bool {
	switch u.NotificationPreference {
	case NotifyNone:
		return false
	case NotifyImportant:
		return notificationType == "reservation_cancellation" || notificationType == "reservation_expiry"
	default:
		return true
	}
}

type RegisterUserDTO struct {
	Email                  string `json:"email" binding:"required,email"`
	Password               string `json:"password" binding:"required,min=8,max=100"`
	FirstName              string `json:"first_name"`
	LastName               string `json:"last_name"`
	NotificationPreference string `json:"notification_preference,omitempty"`
}

type LoginUserDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenDTO struct {
	Refresh string `json:"refresh" binding:"required"`
}

type UpdateUserDTO struct {
	FirstName              *string `json:"first_name"`
	LastName               *string `json:"last_name"`
	NotificationPreference *string `json:"notification_preference"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=100"`
}

type UserFilterDTO struct {
	Role   *string `form:"role"`
	Search *string `form:"search"`
}

type TokenPairDTO struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AccessTokenDTO struct {
	Access string `json:"access"`
}
