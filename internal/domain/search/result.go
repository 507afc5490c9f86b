package search

import "github.com/google/uuid"

type Result struct {
	EntityType       EntityType `json:"entityType"`
	EntityID         uuid.UUID  `json:"entityId"`
	OrganizationID   uuid.UUID  `json:"organizationId"`
	OrganizationName string     `json:"organizationName"`
	Name             string     `json:"name"`
	Snippet          string     `json:"snippet"`
	Score            float64    `json:"score"`
	IsEnabled        bool       `json:"isEnabled"`
}

type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

type Status struct {
	IndexingEnabled bool   `json:"indexingEnabled"`
	Entries         int64  `json:"entries"`
	Model           string `json:"model"`
	Dimension       int    `json:"dimension"`
	Configured      bool   `json:"configured"`
}
