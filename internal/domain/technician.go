package domain

import "time"

// StaffRole enumerates internal maintenance-staff roles.
type StaffRole string

const (
	StaffRoleTechnician StaffRole = "TECHNICIAN"
	StaffRoleSupervisor StaffRole = "SUPERVISOR"
	StaffRoleManager    StaffRole = "MANAGER"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// Technician models a maintenance staff member.
type Technician struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	TeamID       *string
	Trades       []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
