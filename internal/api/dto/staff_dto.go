package dto

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest payload for initiating reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest payload for confirming reset.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AssignRequest payload for explicit assignment endpoints.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	TeamID     *string `json:"team_id,omitempty"`
}

// CreateTechnicianRequest payload.
type CreateTechnicianRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	TeamID   *string  `json:"team_id"`
	Trades   []string `json:"trades"`
}

// UpdateTechnicianRequest payload.
type UpdateTechnicianRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	TeamID *string  `json:"team_id"`
	Trades []string `json:"trades"`
	Active bool     `json:"active"`
}

// CreateTeamRequest payload.
type CreateTeamRequest struct {
	Name        string `json:"name"`
	Trade       string `json:"trade"`
	Description string `json:"description"`
}

// CreateAssetRequest payload.
type CreateAssetRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}
