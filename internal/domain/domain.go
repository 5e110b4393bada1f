package domain

import "encoding/json"

// Project is one customer inquiry and its evolving record through the
// quoting workflow. The four payload columns hold serialized JSON that the
// store and state machine treat as opaque text; only collaborators and the
// human reviewer interpret their contents.
type Project struct {
	ID               string  `json:"project_id"`
	CustomerRequest  string  `json:"customer_request"`
	Status           string  `json:"status" enum:"intake,details_extracted,details_approved,quoted,quote_approved,availability_checked,email_drafted"`
	ExtractedDetails *string `json:"extracted_details,omitempty"`
	QuoteDraft       *string `json:"quote_draft,omitempty"`
	AvailabilityInfo *string `json:"availability_info,omitempty"`
	EmailDraft       *string `json:"email_draft,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

// Updatable project fields. These are the only column names accepted by the
// store's field-selective update and referenced by the transition table.
const (
	FieldStatus           = "status"
	FieldExtractedDetails = "extracted_details"
	FieldQuoteDraft       = "quote_draft"
	FieldAvailabilityInfo = "availability_info"
	FieldEmailDraft       = "email_draft"
)

// PayloadField returns the stored serialized payload for one of the four
// payload field names, or nil for unknown names.
func (p Project) PayloadField(name string) *string {
	switch name {
	case FieldExtractedDetails:
		return p.ExtractedDetails
	case FieldQuoteDraft:
		return p.QuoteDraft
	case FieldAvailabilityInfo:
		return p.AvailabilityInfo
	case FieldEmailDraft:
		return p.EmailDraft
	}
	return nil
}

// PricingEntry is immutable reference data used as quoting context.
type PricingEntry struct {
	ItemType string  `json:"item_type"`
	Material string  `json:"material"`
	UnitCost float64 `json:"unit_cost"`
	Unit     string  `json:"unit,omitempty"`
}

// Event is one audit-log entry for a project.
type Event struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	ActorID   string `json:"actor_id"`
	Payload   string `json:"payload_json"`
}

// Payload is an open-schema structured value produced by a collaborator.
// The core serializes and transports it without inspecting field names.
type Payload map[string]any

// Encode serializes a payload for storage.
func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload parses a stored payload column. A nil or empty column
// decodes to nil.
func DecodePayload(raw *string) (Payload, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(*raw), &p); err != nil {
		return nil, err
	}
	return p, nil
}
