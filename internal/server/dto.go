package server

import (
	"encoding/json"

	"craftline/internal/domain"
)

type CreateProjectRequest struct {
	CustomerRequest string `json:"customer_request" example:"I need a new PP650 vacuum unit with installation."`
}

type RejectRequest struct {
	Reason string `json:"reason,omitempty" example:"quote misses the second hose"`
}

type ProjectResponse struct {
	ID               string         `json:"project_id"`
	CustomerRequest  string         `json:"customer_request"`
	Status           string         `json:"status"`
	ExtractedDetails map[string]any `json:"extracted_details,omitempty"`
	QuoteDraft       map[string]any `json:"quote_draft,omitempty"`
	AvailabilityInfo map[string]any `json:"availability_info,omitempty"`
	EmailDraft       string         `json:"email_draft,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:              p.ID,
		CustomerRequest: p.CustomerRequest,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	resp.ExtractedDetails = decodeColumn(p.ExtractedDetails)
	resp.QuoteDraft = decodeColumn(p.QuoteDraft)
	resp.AvailabilityInfo = decodeColumn(p.AvailabilityInfo)
	if p.EmailDraft != nil {
		resp.EmailDraft = *p.EmailDraft
	}
	return resp
}

// decodeColumn renders a stored payload column as an object, or wraps it raw
// when the column holds text that is not valid JSON.
func decodeColumn(raw *string) map[string]any {
	if raw == nil || *raw == "" {
		return nil
	}
	p, err := domain.DecodePayload(raw)
	if err != nil {
		return map[string]any{"raw": *raw}
	}
	return p
}

func mapProjects(in []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(in))
	for _, p := range in {
		out = append(out, projectResponse(p))
	}
	return out
}

type EventResponse struct {
	ID        int64           `json:"id"`
	TS        string          `json:"ts"`
	Type      string          `json:"type"`
	ProjectID string          `json:"project_id"`
	ActorID   string          `json:"actor_id"`
	Payload   json.RawMessage `json:"payload"`
}

func mapEvents(in []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, e := range in {
		payload := json.RawMessage([]byte("{}"))
		if e.Payload != "" && json.Valid([]byte(e.Payload)) {
			payload = json.RawMessage([]byte(e.Payload))
		}
		out = append(out, EventResponse{
			ID:        e.ID,
			TS:        e.TS,
			Type:      e.Type,
			ProjectID: e.ProjectID,
			ActorID:   e.ActorID,
			Payload:   payload,
		})
	}
	return out
}

type PricingResponse struct {
	ItemType string  `json:"item_type"`
	Material string  `json:"material"`
	UnitCost float64 `json:"unit_cost"`
	Unit     string  `json:"unit,omitempty"`
}

func mapPricing(in []domain.PricingEntry) []PricingResponse {
	out := make([]PricingResponse, 0, len(in))
	for _, e := range in {
		out = append(out, PricingResponse(e))
	}
	return out
}
