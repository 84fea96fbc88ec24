package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/delivery-issue-service/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// IssueFilter captures listing predicates. One optional field per supported
// predicate; translation to SQL happens in buildIssueListQuery only.
type IssueFilter struct {
	ReporterID  *string
	Status      *domain.IssueStatus
	Severity    *domain.IssueSeverity
	Type        *domain.IssueType
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// IssuePage is one page of a cursor-paginated listing.
type IssuePage struct {
	Items      []domain.Issue
	NextCursor *string
	HasMore    bool
	Limit      int
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	Update(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter, cursor *Cursor, limit int) (*IssuePage, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates the repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (tracking_number, type, severity, status, title, description, reporter_id, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		issue.TrackingNumber,
		issue.Type,
		issue.Severity,
		issue.Status,
		issue.Title,
		issue.Description,
		issue.ReporterID,
		issue.AssigneeID,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET severity=$1, status=$2, assignee_id=$3, resolved_at=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query,
		issue.Severity,
		issue.Status,
		issue.AssigneeID,
		issue.ResolvedAt,
		issue.ID,
	).Scan(&issue.UpdatedAt); err != nil {
		return err
	}
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	const query = `
        SELECT id, tracking_number, type, severity, status, title, description,
               reporter_id, assignee_id, created_at, updated_at, resolved_at
        FROM issues WHERE id=$1`
	var issue domain.Issue
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&issue.ID,
		&issue.TrackingNumber,
		&issue.Type,
		&issue.Severity,
		&issue.Status,
		&issue.Title,
		&issue.Description,
		&issue.ReporterID,
		&issue.AssigneeID,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

// List returns one page ordered strictly descending on (created_at, id). The
// id tie-break makes the order total, so pages never skip or duplicate rows
// whose timestamps collide. One extra row is fetched to detect hasMore.
func (r *issueRepository) List(ctx context.Context, filter IssueFilter, cursor *Cursor, limit int) (*IssuePage, error) {
	limit = ClampLimit(limit)
	query, args := buildIssueListQuery(filter, cursor, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanIssues(rows)
	if err != nil {
		return nil, err
	}

	page := &IssuePage{Limit: limit}
	if len(items) > limit {
		page.HasMore = true
		items = items[:limit]
	}
	page.Items = items
	if page.HasMore && len(items) > 0 {
		last := items[len(items)-1]
		token := EncodeCursor(last.CreatedAt, last.ID)
		page.NextCursor = &token
	}
	return page, nil
}

// ClampLimit bounds a requested page size to [1, 100], defaulting to 20.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// buildIssueListQuery is the single translation point from filter struct to
// SQL. fetch already includes the over-fetch row.
func buildIssueListQuery(filter IssueFilter, cursor *Cursor, fetch int) (string, []any) {
	base := `SELECT id, tracking_number, type, severity, status, title, description,
                    reporter_id, assignee_id, created_at, updated_at, resolved_at
             FROM issues`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		clauses = append(clauses, fmt.Sprintf("severity=$%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(tracking_number) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt)
		tArg := len(args)
		args = append(args, cursor.ID)
		idArg := len(args)
		clauses = append(clauses, fmt.Sprintf("(created_at, id) < ($%d, $%d)", tArg, idArg))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d`,
		base, strings.Join(clauses, " AND "), fetch)
	return query, args
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		var issue domain.Issue
		if err := rows.Scan(
			&issue.ID,
			&issue.TrackingNumber,
			&issue.Type,
			&issue.Severity,
			&issue.Status,
			&issue.Title,
			&issue.Description,
			&issue.ReporterID,
			&issue.AssigneeID,
			&issue.CreatedAt,
			&issue.UpdatedAt,
			&issue.ResolvedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, issue)
	}
	return result, rows.Err()
}
