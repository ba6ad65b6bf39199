package domain

import "time"

// Asset represents a maintained piece of equipment or facility area.
type Asset struct {
	ID          string
	Name        string
	Location    string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
