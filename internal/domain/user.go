package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool { return r == RoleBuyer || r == RoleSeller }

type User struct {
	ID           string    `gorm:"primaryKey;size:32"`
	Username     string    `gorm:"uniqueIndex;size:150;not null"`
	Email        string    `gorm:"index;size:254;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	Role         Role      `gorm:"size:10;not null;default:buyer"`
	ProfileImage *string   `gorm:"size:255"`
	PhoneNumber  *string   `gorm:"size:15"`
	IsStaff      bool      `gorm:"not null"`
	IsActive     bool      `gorm:"not null;index"`
	DateJoined   time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// ProfilePatch lists the fields a user may change on their own profile.
// Nil means "leave as is".
type ProfilePatch struct {
	Email        *string
	Role         *Role
	PhoneNumber  *string
	ProfileImage *string
}

func (p ProfilePatch) Apply(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.PhoneNumber != nil {
		if *p.PhoneNumber == "" {
			u.PhoneNumber = nil
		} else {
			v := *p.PhoneNumber
			u.PhoneNumber = &v
		}
	}
	if p.ProfileImage != nil {
		v := *p.ProfileImage
		u.ProfileImage = &v
	}
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, q string, offset, limit int) ([]User, int64, error)
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	SetStaff(ctx context.Context, username string, staff bool) (bool, error)
}

// UserView is the public representation; it never carries the password hash.
type UserView struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Role         Role    `json:"role"`
	ProfileImage *string `json:"profile_image"`
	PhoneNumber  *string `json:"phone_number"`
}

func NewUserView(u *User, url func(string) string) UserView {
	v := UserView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		PhoneNumber: u.PhoneNumber,
	}
	if u.ProfileImage != nil && *u.ProfileImage != "" {
		s := url(*u.ProfileImage)
		v.ProfileImage = &s
	}
	return v
}
