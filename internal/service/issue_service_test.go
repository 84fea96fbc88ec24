package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/domain"
	"github.com/spec-kit/delivery-issue-service/internal/service"
)

func principal(users *fakeUserRepo, role domain.Role) *auth.Principal {
	user := &domain.User{
		Name:  "someone",
		Email: uuid.NewString() + "@example.com",
		Role:  role,
	}
	_ = users.Create(context.Background(), user)
	return &auth.Principal{User: user, Role: role}
}

func newIssueService(users *fakeUserRepo, issues *fakeIssueRepo) *service.IssueService {
	return service.NewIssueService(service.IssueDependencies{
		IssueRepo: issues,
		UserRepo:  users,
	})
}

func TestCreateDefaultsSeverityAndStatus(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	reporter := principal(users, domain.RoleCustomer)

	issue, err := svc.Create(context.Background(), reporter, service.IssueCreateInput{
		TrackingNumber: "PKG-1001",
		Type:           domain.IssueTypeDamaged,
		Description:    "box arrived crushed",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IssueSeverityMedium, issue.Severity)
	assert.Equal(t, domain.IssueStatusOpen, issue.Status)
	assert.Equal(t, reporter.User.ID, issue.ReporterID)
	assert.NotEmpty(t, issue.Title)
	assert.Nil(t, issue.ResolvedAt)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	users := newFakeUserRepo()
	svc := newIssueService(users, newFakeIssueRepo())
	reporter := principal(users, domain.RoleCustomer)

	_, err := svc.Create(context.Background(), reporter, service.IssueCreateInput{
		TrackingNumber: "PKG-1001",
		Type:           domain.IssueType("EXPLODED"),
		Description:    "boom",
	})
	code, status := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetCustomerCannotReadOthersIssue(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	owner := principal(users, domain.RoleCustomer)
	stranger := principal(users, domain.RoleCustomer)
	supporter := principal(users, domain.RoleSupport)

	issue, err := svc.Create(context.Background(), owner, service.IssueCreateInput{
		TrackingNumber: "PKG-2002",
		Type:           domain.IssueTypeLost,
		Description:    "never arrived",
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), stranger, issue.ID)
	code, status := domainCode(t, err)
	assert.Equal(t, "FORBIDDEN", code)
	assert.Equal(t, http.StatusForbidden, status)

	got, err := svc.Get(context.Background(), owner, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, got.ID)

	got, err = svc.Get(context.Background(), supporter, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, got.ID)
}

func TestGetUnknownIssueNotFound(t *testing.T) {
	users := newFakeUserRepo()
	svc := newIssueService(users, newFakeIssueRepo())
	supporter := principal(users, domain.RoleSupport)

	_, err := svc.Get(context.Background(), supporter, uuid.NewString())
	code, status := domainCode(t, err)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListScopesCustomersToOwnIssues(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	customer := principal(users, domain.RoleCustomer)
	supporter := principal(users, domain.RoleSupport)

	_, err := svc.List(context.Background(), customer, service.IssueListInput{})
	require.NoError(t, err)
	require.NotNil(t, issues.lastFilter.ReporterID)
	assert.Equal(t, customer.User.ID, *issues.lastFilter.ReporterID)

	_, err = svc.List(context.Background(), supporter, service.IssueListInput{})
	require.NoError(t, err)
	assert.Nil(t, issues.lastFilter.ReporterID)
}

func TestListMalformedCursorRejected(t *testing.T) {
	users := newFakeUserRepo()
	svc := newIssueService(users, newFakeIssueRepo())
	supporter := principal(users, domain.RoleSupport)

	_, err := svc.List(context.Background(), supporter, service.IssueListInput{Cursor: "not-a-cursor"})
	code, status := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListPagination(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	reporter := principal(users, domain.RoleCustomer)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		issue, err := svc.Create(context.Background(), reporter, service.IssueCreateInput{
			TrackingNumber: "PKG-300" + string(rune('0'+i)),
			Type:           domain.IssueTypeDelayed,
			Description:    "running late",
		})
		require.NoError(t, err)
		// Spread creation times so ordering is deterministic.
		issues.issues[issue.ID].CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}

	first, err := svc.List(context.Background(), reporter, service.IssueListInput{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	assert.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[2].CreatedAt))

	second, err := svc.List(context.Background(), reporter, service.IssueListInput{Limit: 3, Cursor: *first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.False(t, second.HasMore)
	assert.Nil(t, second.NextCursor)

	seen := make(map[string]struct{})
	for _, issue := range append(first.Items, second.Items...) {
		_, dup := seen[issue.ID]
		assert.False(t, dup)
		seen[issue.ID] = struct{}{}
	}
	assert.Len(t, seen, 5)
}

func TestTriageTerminalStatusStampsResolvedAt(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	reporter := principal(users, domain.RoleCustomer)
	supporter := principal(users, domain.RoleSupport)

	issue, err := svc.Create(context.Background(), reporter, service.IssueCreateInput{
		TrackingNumber: "PKG-4004",
		Type:           domain.IssueTypeDamaged,
		Description:    "dented corner",
	})
	require.NoError(t, err)

	resolved := domain.IssueStatusResolved
	updated, err := svc.Triage(context.Background(), supporter, issue.ID, service.IssueTriageInput{
		Severity: domain.IssueSeverityHigh,
		Status:   &resolved,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueSeverityHigh, updated.Severity)
	require.NotNil(t, updated.ResolvedAt)
	stamped := *updated.ResolvedAt

	// Reopening keeps the old resolution timestamp.
	open := domain.IssueStatusOpen
	updated, err = svc.Triage(context.Background(), supporter, issue.ID, service.IssueTriageInput{
		Severity: domain.IssueSeverityHigh,
		Status:   &open,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusOpen, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
	assert.True(t, updated.ResolvedAt.Equal(stamped))
}

func TestTriageUnknownAssigneeRejectedBeforeUpdate(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	reporter := principal(users, domain.RoleCustomer)
	supporter := principal(users, domain.RoleSupport)

	issue, err := svc.Create(context.Background(), reporter, service.IssueCreateInput{
		TrackingNumber: "PKG-5005",
		Type:           domain.IssueTypeWrongAddress,
		Description:    "delivered next door",
	})
	require.NoError(t, err)

	ghost := uuid.NewString()
	_, err = svc.Triage(context.Background(), supporter, issue.ID, service.IssueTriageInput{
		Severity:   domain.IssueSeverityLow,
		AssigneeID: &ghost,
	})
	code, status := domainCode(t, err)
	assert.Equal(t, "INVALID_REFERENCE", code)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Zero(t, issues.updateCalls)

	// The stored row is untouched.
	stored, err := issues.GetByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueSeverityMedium, stored.Severity)
	assert.Nil(t, stored.AssigneeID)
}

func TestTriageAssignsSupportUser(t *testing.T) {
	users := newFakeUserRepo()
	issues := newFakeIssueRepo()
	svc := newIssueService(users, issues)
	reporter := principal(users, domain.RoleCustomer)
	supporter := principal(users, domain.RoleSupport)

	issue, err := svc.Create(context.Background(), reporter, service.IssueCreateInput{
		TrackingNumber: "PKG-6006",
		Type:           domain.IssueTypeOther,
		Description:    "label unreadable",
	})
	require.NoError(t, err)

	updated, err := svc.Triage(context.Background(), supporter, issue.ID, service.IssueTriageInput{
		Severity:   domain.IssueSeverityCritical,
		AssigneeID: &supporter.User.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, supporter.User.ID, *updated.AssigneeID)
	assert.Equal(t, domain.IssueStatusOpen, updated.Status)
	assert.Nil(t, updated.ResolvedAt)
}

func TestTriageInvalidSeverityRejected(t *testing.T) {
	users := newFakeUserRepo()
	svc := newIssueService(users, newFakeIssueRepo())
	supporter := principal(users, domain.RoleSupport)

	_, err := svc.Triage(context.Background(), supporter, uuid.NewString(), service.IssueTriageInput{
		Severity: domain.IssueSeverity("APOCALYPTIC"),
	})
	code, _ := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
}

func TestTriageUnknownIssueNotFound(t *testing.T) {
	users := newFakeUserRepo()
	svc := newIssueService(users, newFakeIssueRepo())
	supporter := principal(users, domain.RoleSupport)

	_, err := svc.Triage(context.Background(), supporter, uuid.NewString(), service.IssueTriageInput{
		Severity: domain.IssueSeverityLow,
	})
	code, status := domainCode(t, err)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, http.StatusNotFound, status)
}
