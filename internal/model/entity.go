package model

import "time"

// Entity is a registered company as returned by the registry profile endpoint.
// It is immutable once fetched within a run; a new fetch replaces it wholesale.
type Entity struct {
	Number           string    `json:"company_number"`
	Name             string    `json:"company_name"`
	Status           string    `json:"company_status"`
	IncorporatedOn   time.Time `json:"date_of_creation"`
	OfficerIDs       []string  `json:"officer_ids,omitempty"`
	Jurisdiction     string    `json:"jurisdiction,omitempty"`
	RegisteredOffice string    `json:"registered_office,omitempty"`
}

// Officer is a person associated with one or more entities.
// ID may be empty for pre-digital records that never received a registry identifier.
type Officer struct {
	ID           string        `json:"officer_id,omitempty"`
	Name         string        `json:"name"`
	Appointments []Appointment `json:"appointments,omitempty"`
}

// Appointment links an officer to an entity with a role.
type Appointment struct {
	EntityNumber string `json:"company_number"`
	Role         string `json:"role"`
	Active       bool   `json:"active"`
}
