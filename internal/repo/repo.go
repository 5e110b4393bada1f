package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"craftline/internal/domain"
	"craftline/internal/state"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// StorageError wraps a database failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

const projectColumns = `project_id,customer_request,status,extracted_details,quote_draft,availability_info,email_draft,created_at,updated_at`

func scanProject(scan func(...any) error) (domain.Project, error) {
	var p domain.Project
	var details, quote, avail, email sql.NullString
	err := scan(&p.ID, &p.CustomerRequest, &p.Status, &details, &quote, &avail, &email, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, storage("scan project", err)
	}
	if details.Valid {
		p.ExtractedDetails = &details.String
	}
	if quote.Valid {
		p.QuoteDraft = &quote.String
	}
	if avail.Valid {
		p.AvailabilityInfo = &avail.String
	}
	if email.Valid {
		p.EmailDraft = &email.String
	}
	return p, nil
}

// CreateProject inserts a fresh record in intake with a generated id.
func (r Repo) CreateProject(ctx context.Context, tx *sql.Tx, customerRequest string, now time.Time) (domain.Project, error) {
	p := domain.Project{
		ID:              uuid.New().String(),
		CustomerRequest: customerRequest,
		Status:          state.Intake,
		CreatedAt:       now.UTC().Format(time.RFC3339),
	}
	p.UpdatedAt = p.CreatedAt
	_, err := r.exec(ctx, tx, `INSERT INTO projects(project_id,customer_request,status,created_at,updated_at) VALUES (?,?,?,?,?)`,
		p.ID, p.CustomerRequest, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.Project{}, storage("insert project", err)
	}
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id=?`, id)
	return scanProject(row.Scan)
}

// GetProjectTx reads a record inside an open transaction.
func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) ListProjects(ctx context.Context, status string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, project_id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage("list projects", err)
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

var updatableFields = map[string]bool{
	domain.FieldStatus:           true,
	domain.FieldExtractedDetails: true,
	domain.FieldQuoteDraft:       true,
	domain.FieldAvailabilityInfo: true,
	domain.FieldEmailDraft:       true,
}

// UpdateProjectFields applies a field-selective update as a single UPDATE.
// Columns not named in fields keep their stored values. A nil value writes
// NULL. Zero rows affected means the record does not exist.
func (r Repo) UpdateProjectFields(ctx context.Context, tx *sql.Tx, id string, fields map[string]any, now time.Time) error {
	if len(fields) == 0 {
		return nil
	}
	var (
		sets []string
		args []any
	)
	for _, name := range []string{domain.FieldStatus, domain.FieldExtractedDetails, domain.FieldQuoteDraft, domain.FieldAvailabilityInfo, domain.FieldEmailDraft} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		sets = append(sets, name+"=?")
		args = append(args, v)
	}
	if len(sets) != len(fields) {
		for name := range fields {
			if !updatableFields[name] {
				return storage("update project", fmt.Errorf("unknown field %q", name))
			}
		}
	}
	sets = append(sets, "updated_at=?")
	args = append(args, now.UTC().Format(time.RFC3339), id)
	res, err := r.exec(ctx, tx, fmt.Sprintf(`UPDATE projects SET %s WHERE project_id=?`, strings.Join(sets, ",")), args...)
	if err != nil {
		return storage("update project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.DB.ExecContext(ctx, query, args...)
}

// SeedPricing inserts catalog rows, skipping any (item_type, material) pair
// already present. Safe to run on every startup.
func (r Repo) SeedPricing(ctx context.Context, entries []domain.PricingEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return storage("seed pricing", err)
	}
	defer tx.Rollback()
	for _, e := range entries {
		var unit any
		if e.Unit != "" {
			unit = e.Unit
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO pricing(item_type,material,unit_cost,unit) VALUES (?,?,?,?)`,
			e.ItemType, e.Material, e.UnitCost, unit); err != nil {
			return storage("seed pricing", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storage("seed pricing", err)
	}
	return nil
}

func (r Repo) ListPricing(ctx context.Context) ([]domain.PricingEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT item_type,material,unit_cost,COALESCE(unit,'') FROM pricing ORDER BY item_type, material`)
	if err != nil {
		return nil, storage("list pricing", err)
	}
	defer rows.Close()
	var res []domain.PricingEntry
	for rows.Next() {
		var e domain.PricingEntry
		if err := rows.Scan(&e.ItemType, &e.Material, &e.UnitCost, &e.Unit); err != nil {
			return nil, storage("scan pricing", err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage("list events", err)
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.ActorID, &payload); err != nil {
			return nil, storage("scan event", err)
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID, scoped to a project when
// projectID is non-empty.
func (r Repo) LatestEventID(ctx context.Context, projectID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	row := r.DB.QueryRowContext(ctx, query, args...)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, storage("latest event id", err)
	}
	return id, nil
}
