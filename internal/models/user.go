package models

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleSuperadmin
}

// UserAccount is a stored credential. The username is the map key in the
// users file and is not repeated inside the record.
type UserAccount struct {
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	Username  string     `json:"username"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
