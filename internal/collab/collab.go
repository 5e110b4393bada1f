// Package collab defines the four automated collaborators that produce the
// workflow's stage payloads, plus mock and LLM-backed implementations.
package collab

import (
	"context"
	"fmt"

	"craftline/internal/domain"
)

// Stage names used in errors and audit events.
const (
	StageAnalyze      = "analyze_request"
	StageQuote        = "generate_quote"
	StageAvailability = "check_availability"
	StageDraftEmail   = "draft_email"
)

// CollaboratorError reports a stage whose collaborator could not produce a
// payload. The project record is left untouched when this is returned.
type CollaboratorError struct {
	Stage string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Stage, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// RequestAnalyzer extracts structured details from a free-form customer
// request.
type RequestAnalyzer interface {
	AnalyzeRequest(ctx context.Context, customerRequest string) (domain.Payload, error)
}

// QuoteGenerator produces an itemized quote from approved details and the
// pricing catalog. It sees nothing else of the project record.
type QuoteGenerator interface {
	GenerateQuote(ctx context.Context, details domain.Payload, catalog []domain.PricingEntry) (domain.Payload, error)
}

// AvailabilityOracle suggests scheduling slots for the requested service
// types. It always answers; a request with no services gets empty slots.
type AvailabilityOracle interface {
	CheckAvailability(ctx context.Context, serviceTypes string) (domain.Payload, error)
}

// EmailDrafter composes the customer-facing email from the full approved
// record.
type EmailDrafter interface {
	DraftEmail(ctx context.Context, customerRequest string, details, quote, availability domain.Payload) (string, error)
}

// Set bundles one collaborator per automated stage.
type Set struct {
	Analyzer RequestAnalyzer
	Quoter   QuoteGenerator
	Oracle   AvailabilityOracle
	Drafter  EmailDrafter
}
