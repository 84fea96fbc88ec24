package service_test

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/delivery-issue-service/internal/domain"
	"github.com/spec-kit/delivery-issue-service/internal/repository"
)

// In-memory fakes implementing the repository interfaces.

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

type fakeSessionRepo struct {
	byHash map[string]*domain.RefreshToken
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byHash: make(map[string]*domain.RefreshToken)}
}

func (f *fakeSessionRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now()
	clone := *token
	f.byHash[token.TokenHash] = &clone
	return nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	token, ok := f.byHash[tokenHash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *token
	return &clone, nil
}

func (f *fakeSessionRepo) Revoke(_ context.Context, tokenHash string) error {
	if token, ok := f.byHash[tokenHash]; ok {
		token.Revoked = true
	}
	return nil
}

func (f *fakeSessionRepo) RevokeAllForUser(_ context.Context, userID string) error {
	for _, token := range f.byHash {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (f *fakeSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	delete(f.byHash, tokenHash)
	return nil
}

func (f *fakeSessionRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	var purged int64
	for hash, token := range f.byHash {
		if token.Revoked || !token.ExpiresAt.After(now) {
			delete(f.byHash, hash)
			purged++
		}
	}
	return purged, nil
}

type fakeIssueRepo struct {
	issues      map[string]*domain.Issue
	lastFilter  *repository.IssueFilter
	updateCalls int
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[string]*domain.Issue)}
}

func (f *fakeIssueRepo) Create(_ context.Context, issue *domain.Issue) error {
	issue.ID = uuid.NewString()
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	clone := *issue
	f.issues[issue.ID] = &clone
	return nil
}

func (f *fakeIssueRepo) Update(_ context.Context, issue *domain.Issue) error {
	f.updateCalls++
	if _, ok := f.issues[issue.ID]; !ok {
		return pgx.ErrNoRows
	}
	issue.UpdatedAt = time.Now()
	clone := *issue
	f.issues[issue.ID] = &clone
	return nil
}

func (f *fakeIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *issue
	return &clone, nil
}

func (f *fakeIssueRepo) List(_ context.Context, filter repository.IssueFilter, cursor *repository.Cursor, limit int) (*repository.IssuePage, error) {
	f.lastFilter = &filter
	limit = repository.ClampLimit(limit)

	matched := make([]domain.Issue, 0, len(f.issues))
	for _, issue := range f.issues {
		if !matchesFilter(issue, filter) {
			continue
		}
		matched = append(matched, *issue)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if cursor != nil {
		kept := matched[:0]
		for _, issue := range matched {
			if issue.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if issue.CreatedAt.Equal(cursor.CreatedAt) && issue.ID >= cursor.ID {
				continue
			}
			kept = append(kept, issue)
		}
		matched = kept
	}

	page := &repository.IssuePage{Limit: limit}
	if len(matched) > limit {
		page.HasMore = true
		matched = matched[:limit]
	}
	page.Items = matched
	if page.HasMore && len(matched) > 0 {
		last := matched[len(matched)-1]
		token := repository.EncodeCursor(last.CreatedAt, last.ID)
		page.NextCursor = &token
	}
	return page, nil
}

func matchesFilter(issue *domain.Issue, filter repository.IssueFilter) bool {
	if filter.ReporterID != nil && issue.ReporterID != *filter.ReporterID {
		return false
	}
	if filter.Status != nil && issue.Status != *filter.Status {
		return false
	}
	if filter.Severity != nil && issue.Severity != *filter.Severity {
		return false
	}
	if filter.Type != nil && issue.Type != *filter.Type {
		return false
	}
	if filter.CreatedFrom != nil && issue.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && issue.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		needle := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		haystack := strings.ToLower(issue.Title + " " + issue.Description + " " + issue.TrackingNumber)
		if needle != "" && !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
