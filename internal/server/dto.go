package server

import "shootboard/internal/domain"

// CreatedResponse carries the id the store assigned.
type CreatedResponse struct {
	ID string `json:"id"`
}

type UpdatedResponse struct {
	ID     string `json:"id"`
	Fields int    `json:"fields"`
}

type EventsResponse struct {
	Items []domain.Event `json:"items"`
}
