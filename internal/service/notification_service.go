package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

type notificationUserRepository interface {
	ListByRole(ctx context.Context, role models.UserRole, department string) ([]models.User, error)
}

// NotificationService persists in-app notices and dispatches them off the
// request path through a worker queue. A notification failure never fails the
// workflow action that produced it.
type NotificationService struct {
	repo   notificationRepository
	users  notificationUserRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationRepository, users notificationUserRepository, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, users: users, logger: logger}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, queueCfg)
	return s
}

// Start spins up the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues one notice for a single recipient. Errors are logged, not
// propagated.
func (s *NotificationService) Notify(recipientID, notifType, subject, body string) {
	n := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        notifType,
		Subject:     subject,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: notifType, Payload: n}); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("recipient_id", recipientID),
			zap.String("type", notifType),
			zap.Error(err))
	}
}

// NotifyRole fans one notice out to every active holder of a role, optionally
// scoped to a department.
func (s *NotificationService) NotifyRole(ctx context.Context, role models.UserRole, department, notifType, subject, body string) {
	users, err := s.users.ListByRole(ctx, role, department)
	if err != nil {
		s.logger.Warn("failed to resolve notification recipients",
			zap.String("role", string(role)),
			zap.Error(err))
		return
	}
	for _, u := range users {
		s.Notify(u.ID, notifType, subject, body)
	}
}

// List returns a recipient's notifications with the unread badge count.
func (s *NotificationService) List(ctx context.Context, recipientID string, limit int) ([]models.Notification, int, error) {
	list, err := s.repo.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return list, unread, nil
}

// MarkRead acknowledges one notification for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.repo.MarkRead(ctx, id, recipientID, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found or already read")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(*models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification %s: %w", n.ID, err)
	}
	s.logger.Debug("notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("recipient_id", n.RecipientID),
		zap.String("type", n.Type))
	return nil
}
