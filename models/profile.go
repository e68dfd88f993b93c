package models

// Role is the access role of a profile
type Role string

// Profile roles
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile holds the per-user record, including the reward point balance
type Profile struct {
	ID       string `json:"id" bson:"_id" gorm:"primaryKey;size:64"`
	FullName string `json:"fullName" bson:"fullName"`
	Username string `json:"username,omitempty" bson:"username,omitempty"`
	Email    string `json:"email,omitempty" bson:"email,omitempty"`
	Points   int64  `json:"points" bson:"points" gorm:"not null;default:0"`
	Role     Role   `json:"role" bson:"role" gorm:"size:16;default:user"`
}

// RoleOrDefault returns the profile role, falling back to RoleUser when unset
func (p *Profile) RoleOrDefault() Role {
	if p == nil || p.Role == "" {
		return RoleUser
	}
	return p.Role
}
