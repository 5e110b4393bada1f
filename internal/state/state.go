package state

import (
	"fmt"

	"craftline/internal/domain"
)

// Workflow statuses, in order of progress. Even-numbered hops are produced
// by collaborators, the two checkpoints advance only on human approval.
const (
	Intake              = "intake"
	DetailsExtracted    = "details_extracted"
	DetailsApproved     = "details_approved"
	Quoted              = "quoted"
	QuoteApproved       = "quote_approved"
	AvailabilityChecked = "availability_checked"
	EmailDrafted        = "email_drafted"
)

// StateError reports a transition the workflow does not allow.
type StateError struct {
	From   string
	To     string
	Reason string
}

func (e *StateError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("invalid transition from %q: %s", e.From, e.Reason)
	}
	return fmt.Sprintf("invalid transition %q -> %q: %s", e.From, e.To, e.Reason)
}

// transition describes one legal edge. produces names the payload field the
// edge must carry, requires names a field that must already be set on the
// record, clears names a field the edge must reset to NULL.
type transition struct {
	produces string
	requires string
	clears   string
}

var transitions = map[[2]string]transition{
	{Intake, DetailsExtracted}:           {produces: domain.FieldExtractedDetails},
	{DetailsExtracted, DetailsApproved}:  {requires: domain.FieldExtractedDetails},
	{DetailsExtracted, Intake}:           {clears: domain.FieldExtractedDetails},
	{DetailsApproved, Quoted}:            {produces: domain.FieldQuoteDraft, requires: domain.FieldExtractedDetails},
	{Quoted, QuoteApproved}:              {requires: domain.FieldQuoteDraft},
	{Quoted, DetailsApproved}:            {clears: domain.FieldQuoteDraft},
	{QuoteApproved, AvailabilityChecked}: {produces: domain.FieldAvailabilityInfo, requires: domain.FieldQuoteDraft},
	{AvailabilityChecked, EmailDrafted}:  {produces: domain.FieldEmailDraft, requires: domain.FieldAvailabilityInfo},
}

// automated maps each status whose next hop is collaborator work to that
// next status. Checkpoints and the terminal status are absent.
var automated = map[string]string{
	Intake:              DetailsExtracted,
	DetailsApproved:     Quoted,
	QuoteApproved:       AvailabilityChecked,
	AvailabilityChecked: EmailDrafted,
}

// approvals maps each checkpoint status to the status approval moves it to.
var approvals = map[string]string{
	DetailsExtracted: DetailsApproved,
	Quoted:           QuoteApproved,
}

// rejections maps each checkpoint status to the status rejection returns it to.
var rejections = map[string]string{
	DetailsExtracted: Intake,
	Quoted:           DetailsApproved,
}

// Valid reports whether s names a known status.
func Valid(s string) bool {
	switch s {
	case Intake, DetailsExtracted, DetailsApproved, Quoted, QuoteApproved, AvailabilityChecked, EmailDrafted:
		return true
	}
	return false
}

// Terminal reports whether s is the final status.
func Terminal(s string) bool {
	return s == EmailDrafted
}

// Next returns the status an automated advance moves to from s. The second
// return is false when s is a checkpoint or terminal.
func Next(s string) (string, bool) {
	to, ok := automated[s]
	return to, ok
}

// ApprovalTarget returns the status an approval at checkpoint s moves to.
func ApprovalTarget(s string) (string, bool) {
	to, ok := approvals[s]
	return to, ok
}

// RejectionTarget returns the status a rejection at checkpoint s returns to.
func RejectionTarget(s string) (string, bool) {
	to, ok := rejections[s]
	return to, ok
}

// ValidateTransition checks that moving p to status `to` while writing
// `fields` respects the transition table. fields holds the column updates
// that will accompany the status change; a produced field must be present
// and non-empty, a cleared field must be present and nil.
func ValidateTransition(p domain.Project, to string, fields map[string]any) error {
	if !Valid(to) {
		return &StateError{From: p.Status, To: to, Reason: "unknown status"}
	}
	t, ok := transitions[[2]string{p.Status, to}]
	if !ok {
		if Terminal(p.Status) {
			return &StateError{From: p.Status, To: to, Reason: "workflow already complete"}
		}
		return &StateError{From: p.Status, To: to, Reason: "no such edge"}
	}
	if st, ok := fields[domain.FieldStatus]; ok {
		if s, _ := st.(string); s != to {
			return &StateError{From: p.Status, To: to, Reason: "status field disagrees with target"}
		}
	}
	if t.requires != "" {
		if v := p.PayloadField(t.requires); v == nil || *v == "" {
			return &StateError{From: p.Status, To: to, Reason: fmt.Sprintf("%s not set", t.requires)}
		}
	}
	if t.produces != "" {
		v, ok := fields[t.produces]
		if !ok || v == nil {
			return &StateError{From: p.Status, To: to, Reason: fmt.Sprintf("%s missing from update", t.produces)}
		}
		if s, isStr := v.(string); isStr && s == "" {
			return &StateError{From: p.Status, To: to, Reason: fmt.Sprintf("%s empty", t.produces)}
		}
	}
	if t.clears != "" {
		v, ok := fields[t.clears]
		if !ok {
			return &StateError{From: p.Status, To: to, Reason: fmt.Sprintf("%s must be cleared", t.clears)}
		}
		if v != nil {
			return &StateError{From: p.Status, To: to, Reason: fmt.Sprintf("%s must be cleared, not rewritten", t.clears)}
		}
	}
	return nil
}
