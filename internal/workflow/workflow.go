package workflow

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"craftline/internal/collab"
	"craftline/internal/config"
	"craftline/internal/domain"
	"craftline/internal/events"
	"craftline/internal/pricing"
	"craftline/internal/repo"
	"craftline/internal/state"
)

// Workflow orchestrates the quoting pipeline: collaborators produce stage
// payloads, humans approve or reject at the two checkpoints, and every
// mutation lands in one transaction together with its audit event.
type Workflow struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Collabs collab.Set
	Catalog []domain.PricingEntry
	Now     func() time.Time
}

// New seeds the pricing catalog (skipping rows already present) and loads
// the catalog snapshot collaborators quote against.
func New(ctx context.Context, db *sql.DB, cfg *config.Config, set collab.Set) (Workflow, error) {
	w := Workflow{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Collabs: set,
		Now:     time.Now,
	}
	if err := w.Repo.SeedPricing(ctx, pricing.Default()); err != nil {
		return Workflow{}, err
	}
	catalog, err := w.Repo.ListPricing(ctx)
	if err != nil {
		return Workflow{}, err
	}
	w.Catalog = catalog
	return w, nil
}

func (w Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Start records a new customer request in intake.
func (w Workflow) Start(ctx context.Context, customerRequest, actorID string) (domain.Project, error) {
	if strings.TrimSpace(customerRequest) == "" {
		return domain.Project{}, errors.New("customer request is required")
	}
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := w.Repo.CreateProject(ctx, tx, customerRequest, w.now())
	if err != nil {
		return domain.Project{}, err
	}
	if err := w.Events.Append(ctx, tx, "project.created", p.ID, actorID, events.EventPayload{"status": p.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// Get returns the current project record.
func (w Workflow) Get(ctx context.Context, id string) (domain.Project, error) {
	return w.Repo.GetProject(ctx, id)
}

// List returns projects, optionally filtered by status.
func (w Workflow) List(ctx context.Context, status string) ([]domain.Project, error) {
	if status != "" && !state.Valid(status) {
		return nil, &state.StateError{From: status, Reason: "unknown status"}
	}
	return w.Repo.ListProjects(ctx, status)
}

// Advance runs the collaborator for the project's current stage and moves
// the record forward. At a checkpoint or the terminal status it returns a
// StateError without invoking anything, so retries are harmless.
func (w Workflow) Advance(ctx context.Context, id, actorID string) (domain.Project, error) {
	p, err := w.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	to, ok := state.Next(p.Status)
	if !ok {
		if state.Terminal(p.Status) {
			return domain.Project{}, &state.StateError{From: p.Status, Reason: "workflow already complete"}
		}
		return domain.Project{}, &state.StateError{From: p.Status, Reason: "awaiting human review"}
	}

	var (
		field string
		value string
	)
	switch p.Status {
	case state.Intake:
		details, cerr := w.Collabs.Analyzer.AnalyzeRequest(ctx, p.CustomerRequest)
		if cerr != nil {
			return domain.Project{}, w.stageFailed(ctx, p, collab.StageAnalyze, actorID, cerr)
		}
		field = domain.FieldExtractedDetails
		value, err = details.Encode()
	case state.DetailsApproved:
		details, derr := domain.DecodePayload(p.ExtractedDetails)
		if derr != nil {
			return domain.Project{}, derr
		}
		quote, cerr := w.Collabs.Quoter.GenerateQuote(ctx, details, w.Catalog)
		if cerr != nil {
			return domain.Project{}, w.stageFailed(ctx, p, collab.StageQuote, actorID, cerr)
		}
		field = domain.FieldQuoteDraft
		value, err = quote.Encode()
	case state.QuoteApproved:
		quote, derr := domain.DecodePayload(p.QuoteDraft)
		if derr != nil {
			return domain.Project{}, derr
		}
		avail, cerr := w.Collabs.Oracle.CheckAvailability(ctx, ServiceTypes(quote))
		if cerr != nil {
			return domain.Project{}, w.stageFailed(ctx, p, collab.StageAvailability, actorID, cerr)
		}
		field = domain.FieldAvailabilityInfo
		value, err = avail.Encode()
	case state.AvailabilityChecked:
		details, derr := domain.DecodePayload(p.ExtractedDetails)
		if derr != nil {
			return domain.Project{}, derr
		}
		quote, derr := domain.DecodePayload(p.QuoteDraft)
		if derr != nil {
			return domain.Project{}, derr
		}
		avail, derr := domain.DecodePayload(p.AvailabilityInfo)
		if derr != nil {
			return domain.Project{}, derr
		}
		email, cerr := w.Collabs.Drafter.DraftEmail(ctx, p.CustomerRequest, details, quote, avail)
		if cerr != nil {
			return domain.Project{}, w.stageFailed(ctx, p, collab.StageDraftEmail, actorID, cerr)
		}
		field = domain.FieldEmailDraft
		value = email
	}
	if err != nil {
		return domain.Project{}, err
	}

	fields := map[string]any{
		domain.FieldStatus: to,
		field:              value,
	}
	if err := state.ValidateTransition(p, to, fields); err != nil {
		return domain.Project{}, err
	}
	return w.commitTransition(ctx, p, to, actorID, fields, "stage.completed", events.EventPayload{
		"from":     p.Status,
		"to":       to,
		"produced": field,
	})
}

// Approve moves a checkpointed project forward on the reviewer's say-so.
func (w Workflow) Approve(ctx context.Context, id, actorID string) (domain.Project, error) {
	p, err := w.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	to, ok := state.ApprovalTarget(p.Status)
	if !ok {
		return domain.Project{}, &state.StateError{From: p.Status, Reason: "nothing awaiting approval"}
	}
	fields := map[string]any{domain.FieldStatus: to}
	if err := state.ValidateTransition(p, to, fields); err != nil {
		return domain.Project{}, err
	}
	return w.commitTransition(ctx, p, to, actorID, fields, "project.approved", events.EventPayload{
		"from": p.Status,
		"to":   to,
	})
}

// Reject discards the payload under review and returns the project to the
// status that produced it. The discarded payload is preserved in the event
// log.
func (w Workflow) Reject(ctx context.Context, id, actorID, reason string) (domain.Project, error) {
	p, err := w.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	to, ok := state.RejectionTarget(p.Status)
	if !ok {
		return domain.Project{}, &state.StateError{From: p.Status, Reason: "nothing awaiting review"}
	}
	var cleared string
	switch p.Status {
	case state.DetailsExtracted:
		cleared = domain.FieldExtractedDetails
	case state.Quoted:
		cleared = domain.FieldQuoteDraft
	}
	discarded := ""
	if v := p.PayloadField(cleared); v != nil {
		discarded = *v
	}
	fields := map[string]any{
		domain.FieldStatus: to,
		cleared:            nil,
	}
	if err := state.ValidateTransition(p, to, fields); err != nil {
		return domain.Project{}, err
	}
	return w.commitTransition(ctx, p, to, actorID, fields, "project.rejected", events.EventPayload{
		"from":      p.Status,
		"to":        to,
		"reason":    reason,
		"discarded": discarded,
	})
}

func (w Workflow) commitTransition(ctx context.Context, p domain.Project, to, actorID string, fields map[string]any, evtType string, payload events.EventPayload) (domain.Project, error) {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := w.Repo.UpdateProjectFields(ctx, tx, p.ID, fields, w.now()); err != nil {
		return domain.Project{}, err
	}
	if err := w.Events.Append(ctx, tx, evtType, p.ID, actorID, payload); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return w.Repo.GetProject(ctx, p.ID)
}

// stageFailed records the failure in the event log and leaves the project
// record untouched. The returned error is the collaborator's.
func (w Workflow) stageFailed(ctx context.Context, p domain.Project, stage, actorID string, cerr error) error {
	_ = w.Events.Append(ctx, nil, "stage.failed", p.ID, actorID, events.EventPayload{
		"stage":  stage,
		"status": p.Status,
		"error":  cerr.Error(),
	})
	var ce *collab.CollaboratorError
	if errors.As(cerr, &ce) {
		return cerr
	}
	return &collab.CollaboratorError{Stage: stage, Err: cerr}
}

// ServiceTypes extracts the service-like item names from a quote payload,
// comma-joined for the availability check.
func ServiceTypes(quote domain.Payload) string {
	if quote == nil {
		return ""
	}
	items, ok := quote["quote_items"].([]any)
	if !ok {
		return ""
	}
	var names []string
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := item["item"].(string)
		lower := strings.ToLower(name)
		if strings.Contains(lower, "service") ||
			strings.Contains(lower, "installation") ||
			strings.Contains(lower, "tune-up") ||
			strings.Contains(lower, "repair") {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
