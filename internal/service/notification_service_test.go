package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/jobs"
)

type stubNotificationStore struct {
	mu      sync.Mutex
	stored  []*models.Notification
	markErr error
	marked  []string
	unread  int
}

func (s *stubNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, n)
	return nil
}

func (s *stubNotificationStore) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.stored {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *stubNotificationStore) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	return nil
}

func (s *stubNotificationStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return s.unread, nil
}

func (s *stubNotificationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type stubRoleDirectory struct {
	byRole map[models.UserRole][]models.User
}

func (s *stubRoleDirectory) ListByRole(ctx context.Context, role models.UserRole, department string) ([]models.User, error) {
	var out []models.User
	for _, u := range s.byRole[role] {
		if department == "" || u.Department == department {
			out = append(out, u)
		}
	}
	return out, nil
}

func newNotificationFixture(t *testing.T) (*NotificationService, *stubNotificationStore) {
	t.Helper()
	store := &stubNotificationStore{}
	users := &stubRoleDirectory{byRole: map[models.UserRole][]models.User{
		models.RoleAdvisor: {
			{ID: "advisor-1", Role: models.RoleAdvisor, Department: "Computer Engineering"},
			{ID: "advisor-2", Role: models.RoleAdvisor, Department: "Mathematics"},
		},
	}}
	svc := NewNotificationService(store, users, jobs.QueueConfig{Workers: 1, BufferSize: 8, MaxRetries: 1}, zap.NewNop())
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, store
}

func TestNotificationServiceNotifyDeliversAsync(t *testing.T) {
	svc, store := newNotificationFixture(t)

	svc.Notify("student-1", models.NotificationTypeDecision, "Decision recorded", "Your application was approved.")

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "student-1", store.stored[0].RecipientID)
	assert.Equal(t, models.NotificationTypeDecision, store.stored[0].Type)
}

func TestNotificationServiceNotifyRoleScopedFanOut(t *testing.T) {
	svc, store := newNotificationFixture(t)

	svc.NotifyRole(context.Background(), models.RoleAdvisor, "Computer Engineering",
		models.NotificationTypeStatusChange, "Awaiting review", "An application reached your step.")

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "advisor-1", store.stored[0].RecipientID)
}

func TestNotificationServiceNotifyRoleUnscopedFanOut(t *testing.T) {
	svc, store := newNotificationFixture(t)

	svc.NotifyRole(context.Background(), models.RoleAdvisor, "",
		models.NotificationTypeStatusChange, "Awaiting review", "An application reached your step.")

	require.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestNotificationServiceListWithUnreadCount(t *testing.T) {
	svc, store := newNotificationFixture(t)
	store.stored = []*models.Notification{
		{ID: "n-1", RecipientID: "student-1", Subject: "one"},
		{ID: "n-2", RecipientID: "someone-else", Subject: "two"},
	}
	store.unread = 1

	list, unread, err := svc.List(context.Background(), "student-1", 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, unread)
}

func TestNotificationServiceMarkReadMissing(t *testing.T) {
	svc, store := newNotificationFixture(t)
	store.markErr = sql.ErrNoRows

	err := svc.MarkRead(context.Background(), "n-404", "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
