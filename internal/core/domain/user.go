package domain

import "time"

type UserID string

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatar_url"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the client view of a user. It never carries credentials.
type Profile struct {
	ID          UserID    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Role        UserRole  `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

// PublicProfile drops the email for viewers other than the user and admins.
func (u *User) PublicProfile() Profile {
	p := u.Profile()
	p.Email = ""
	return p
}

// Viewer identifies who is asking. The zero value is an anonymous visitor.
type Viewer struct {
	UserID UserID
	Role   UserRole
}

func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}
