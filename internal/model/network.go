package model

import "time"

// NetworkEdge records one officer–entity relationship discovered during
// network expansion. Depth is the breadth-first level at which the entity was
// first discovered (0 = seed) and is never revised afterwards.
type NetworkEdge struct {
	OfficerID    string    `json:"officer_id"`
	OfficerName  string    `json:"officer_name,omitempty"`
	EntityNumber string    `json:"company_number"`
	EntityName   string    `json:"company_name,omitempty"`
	Role         string    `json:"role,omitempty"`
	Depth        int       `json:"depth"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// EdgeKey uniquely identifies an edge for deduplication.
type EdgeKey struct {
	OfficerID    string
	EntityNumber string
}

// Key returns the dedupe key for the edge.
func (e NetworkEdge) Key() EdgeKey {
	return EdgeKey{OfficerID: e.OfficerID, EntityNumber: e.EntityNumber}
}

// FrontierItem is an entity awaiting breadth-first expansion.
type FrontierItem struct {
	EntityNumber string `json:"company_number"`
	Depth        int    `json:"depth"`
}
