package state_test

import (
	"errors"
	"testing"

	"craftline/internal/domain"
	"craftline/internal/state"
)

func strptr(s string) *string { return &s }

func TestNextSkipsCheckpoints(t *testing.T) {
	cases := map[string]string{
		state.Intake:              state.DetailsExtracted,
		state.DetailsApproved:     state.Quoted,
		state.QuoteApproved:       state.AvailabilityChecked,
		state.AvailabilityChecked: state.EmailDrafted,
	}
	for from, want := range cases {
		got, ok := state.Next(from)
		if !ok || got != want {
			t.Fatalf("Next(%s) = %q, %v; want %q", from, got, ok, want)
		}
	}
	for _, checkpoint := range []string{state.DetailsExtracted, state.Quoted, state.EmailDrafted} {
		if _, ok := state.Next(checkpoint); ok {
			t.Fatalf("Next(%s) should not be automated", checkpoint)
		}
	}
}

func TestApprovalAndRejectionTargets(t *testing.T) {
	if to, ok := state.ApprovalTarget(state.DetailsExtracted); !ok || to != state.DetailsApproved {
		t.Fatalf("approval from details_extracted: %q, %v", to, ok)
	}
	if to, ok := state.ApprovalTarget(state.Quoted); !ok || to != state.QuoteApproved {
		t.Fatalf("approval from quoted: %q, %v", to, ok)
	}
	if to, ok := state.RejectionTarget(state.DetailsExtracted); !ok || to != state.Intake {
		t.Fatalf("rejection from details_extracted: %q, %v", to, ok)
	}
	if to, ok := state.RejectionTarget(state.Quoted); !ok || to != state.DetailsApproved {
		t.Fatalf("rejection from quoted: %q, %v", to, ok)
	}
	if _, ok := state.ApprovalTarget(state.Intake); ok {
		t.Fatalf("intake has nothing to approve")
	}
	if _, ok := state.RejectionTarget(state.EmailDrafted); ok {
		t.Fatalf("terminal status has nothing to reject")
	}
}

func TestValidateTransitionProducedField(t *testing.T) {
	p := domain.Project{Status: state.Intake}

	err := state.ValidateTransition(p, state.DetailsExtracted, map[string]any{
		domain.FieldStatus: state.DetailsExtracted,
	})
	var se *state.StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError for missing produced field, got %v", err)
	}

	err = state.ValidateTransition(p, state.DetailsExtracted, map[string]any{
		domain.FieldStatus:           state.DetailsExtracted,
		domain.FieldExtractedDetails: "",
	})
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError for empty produced field, got %v", err)
	}

	err = state.ValidateTransition(p, state.DetailsExtracted, map[string]any{
		domain.FieldStatus:           state.DetailsExtracted,
		domain.FieldExtractedDetails: `{"item_requested":"power_unit"}`,
	})
	if err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
}

func TestValidateTransitionRequiredField(t *testing.T) {
	p := domain.Project{Status: state.DetailsExtracted}

	err := state.ValidateTransition(p, state.DetailsApproved, map[string]any{
		domain.FieldStatus: state.DetailsApproved,
	})
	var se *state.StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError when extracted_details unset, got %v", err)
	}

	p.ExtractedDetails = strptr(`{"item_requested":"power_unit"}`)
	err = state.ValidateTransition(p, state.DetailsApproved, map[string]any{
		domain.FieldStatus: state.DetailsApproved,
	})
	if err != nil {
		t.Fatalf("expected approval to validate, got %v", err)
	}
}

func TestValidateTransitionClearedField(t *testing.T) {
	p := domain.Project{
		Status:           state.DetailsExtracted,
		ExtractedDetails: strptr(`{"item_requested":"power_unit"}`),
	}

	err := state.ValidateTransition(p, state.Intake, map[string]any{
		domain.FieldStatus: state.Intake,
	})
	var se *state.StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError when cleared field absent, got %v", err)
	}

	err = state.ValidateTransition(p, state.Intake, map[string]any{
		domain.FieldStatus:           state.Intake,
		domain.FieldExtractedDetails: `{"kept":"value"}`,
	})
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError when cleared field rewritten, got %v", err)
	}

	err = state.ValidateTransition(p, state.Intake, map[string]any{
		domain.FieldStatus:           state.Intake,
		domain.FieldExtractedDetails: nil,
	})
	if err != nil {
		t.Fatalf("expected rejection to validate, got %v", err)
	}
}

func TestValidateTransitionRejectsUnknownEdges(t *testing.T) {
	var se *state.StateError

	err := state.ValidateTransition(domain.Project{Status: state.Intake}, state.Quoted, map[string]any{
		domain.FieldStatus:     state.Quoted,
		domain.FieldQuoteDraft: `{}`,
	})
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError for intake -> quoted, got %v", err)
	}

	err = state.ValidateTransition(domain.Project{Status: state.EmailDrafted}, state.Intake, map[string]any{
		domain.FieldStatus: state.Intake,
	})
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError from terminal status, got %v", err)
	}

	err = state.ValidateTransition(domain.Project{Status: state.Intake}, "archived", nil)
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError for unknown status, got %v", err)
	}
}

func TestValidateTransitionStatusFieldMismatch(t *testing.T) {
	p := domain.Project{
		Status:           state.DetailsExtracted,
		ExtractedDetails: strptr(`{}`),
	}
	err := state.ValidateTransition(p, state.DetailsApproved, map[string]any{
		domain.FieldStatus: state.Quoted,
	})
	var se *state.StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError for status field mismatch, got %v", err)
	}
}
