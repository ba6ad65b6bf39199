package domain

import "time"

// Team represents a maintenance crew responsible for a set of assets.
type Team struct {
	ID          string
	Name        string
	Trade       string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
