package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent        UserRole = "STUDENT"
	RoleAdvisor        UserRole = "ADVISOR"
	RoleSecretary      UserRole = "SECRETARY"
	RoleDean           UserRole = "DEAN"
	RoleStudentAffairs UserRole = "STUDENT_AFFAIRS"
)

// ReviewChain is the fixed order of approver roles a graduation application
// passes through after the student finalizes it.
var ReviewChain = []UserRole{RoleAdvisor, RoleSecretary, RoleDean}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Department   string     `db:"department" json:"department"`
	Faculty      string     `db:"faculty" json:"faculty"`
	StudentID    *string    `db:"student_id" json:"student_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
