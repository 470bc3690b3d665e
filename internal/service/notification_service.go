package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deskhand/helpdesk-service/internal/cache"
	"github.com/deskhand/helpdesk-service/internal/config"
	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/observability"
	"github.com/deskhand/helpdesk-service/internal/repository"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

// NotificationService creates notifications for domain events while merging
// floods of near-identical events into a single row with a counter.
type NotificationService struct {
	notifications repository.NotificationRepository
	unread        *cache.UnreadCounter
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           config.NotificationConfig
	now           func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(repo repository.NotificationRepository, unread *cache.UnreadCounter, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		notifications: repo,
		unread:        unread,
		logger:        logger,
		metrics:       metrics,
		cfg:           cfg,
		now:           time.Now,
	}
}

// NotifyInput describes a single notification event.
type NotifyInput struct {
	UserID   string
	Type     domain.NotificationType
	Title    string
	Message  string
	Category domain.NotificationCategory
	Metadata map[string]any
}

// Notify records the event for the user. If an identical event (same type,
// byte-for-byte title and message, matching ticketId) already exists within
// the dedup window, the existing row absorbs it: group_count is bumped and
// created_at refreshed so it resurfaces as latest. A missing ticketId on
// either side matches anything.
//
// The dedup scan is check-then-act; concurrent identical events may
// occasionally produce two rows instead of a merge. That is acceptable; a
// notification is never lost.
func (s *NotificationService) Notify(ctx context.Context, input NotifyInput) (*domain.Notification, error) {
	if input.UserID == "" || input.Type == "" || input.Title == "" {
		return nil, apperrors.NewValidationError("user_id, type and title required", nil)
	}
	if input.Category == "" {
		input.Category = domain.NotificationCategoryInfo
	}

	now := s.now()
	windowStart := now.Add(-s.cfg.DedupWindow())
	scanLimit := s.cfg.DedupScanLimit
	if scanLimit <= 0 {
		scanLimit = 10
	}

	recent, err := s.notifications.ListRecentByUserAndType(ctx, input.UserID, input.Type, windowStart, scanLimit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	incomingTicketID, _ := metadataTicketID(input.Metadata)
	for i := range recent {
		existing := &recent[i]
		if existing.Title != input.Title || existing.Message != input.Message {
			continue
		}
		existingTicketID, hasExisting := existing.TicketID()
		hasIncoming := incomingTicketID != ""
		if hasExisting && hasIncoming && existingTicketID != incomingTicketID {
			continue
		}

		if existing.Metadata == nil {
			existing.Metadata = map[string]any{}
		}
		existing.Metadata[domain.MetaGroupCount] = existing.GroupCount() + 1
		existing.Metadata[domain.MetaLastGroupedAt] = now.Format(time.RFC3339)
		existing.CreatedAt = now
		existing.IsRead = false

		if err := s.notifications.UpdateGrouping(ctx, existing); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.metrics.RecordNotification(true)
		s.unread.Invalidate(ctx, input.UserID)
		return existing, nil
	}

	notification := &domain.Notification{
		UserID:   input.UserID,
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Category: input.Category,
		Metadata: input.Metadata,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordNotification(false)
	s.unread.Invalidate(ctx, input.UserID)
	return notification, nil
}

// List returns the user's feed.
func (s *NotificationService) List(ctx context.Context, userID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	result, err := s.notifications.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// MarkRead flips a single notification. Ownership is checked inside the
// lookup predicate, so a foreign id surfaces as NotFound rather than
// Forbidden; existence of other users' notifications is never confirmed.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.notifications.MarkRead(ctx, id, userID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
	}
	s.unread.Invalidate(ctx, userID)
	return nil
}

// MarkAllRead flips every unread notification for the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.unread.Invalidate(ctx, userID)
	return count, nil
}

// Archive hides a notification from the default feed. Same ownership
// semantics as MarkRead.
func (s *NotificationService) Archive(ctx context.Context, id, userID string) error {
	ok, err := s.notifications.Archive(ctx, id, userID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
	}
	s.unread.Invalidate(ctx, userID)
	return nil
}

// UnreadCount returns the badge counter, served from the cache when warm.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := s.unread.Get(ctx, userID); ok {
		return count, nil
	}
	count, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.unread.Set(ctx, userID, count)
	return count, nil
}

// SweepArchived deletes archived notifications older than the retention age.
func (s *NotificationService) SweepArchived(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.RetentionAge())
	deleted, err := s.notifications.DeleteArchivedBefore(ctx, cutoff)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if deleted > 0 {
		s.logger.Info("retention sweep removed archived notifications", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// RegisterHandlers subscribes the engine to domain events. Handlers run
// after the primary transition committed; their errors are logged and
// swallowed so a notification failure never rolls anything back.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.handleStatusChanged)
	dispatcher.Subscribe(events.EventTicketReopened, s.handleTicketReopened)
	dispatcher.Subscribe(events.EventAssignmentRequested, s.handleAssignmentRequested)
	dispatcher.Subscribe(events.EventAssignmentAccepted, s.handleAssignmentAccepted)
	dispatcher.Subscribe(events.EventAssignmentRejected, s.handleAssignmentRejected)
	dispatcher.Subscribe(events.EventChatMessagePosted, s.handleChatMessagePosted)
}

func (s *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Type:     domain.NotificationTicketCreated,
		Title:    "Ticket created",
		Message:  fmt.Sprintf("Ticket %s has been opened", payload.TicketNumber),
		Category: domain.NotificationCategorySuccess,
		Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
	})
	return nil
}

func (s *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Type:     domain.NotificationStatusChanged,
		Title:    "Ticket status updated",
		Message:  fmt.Sprintf("Ticket %s is now %s", payload.TicketNumber, payload.NewStatus),
		Category: domain.NotificationCategoryInfo,
		Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
	})
	return nil
}

func (s *NotificationService) handleTicketReopened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	recipients := []string{payload.CreatorID}
	if payload.AssigneeID != nil {
		recipients = append(recipients, *payload.AssigneeID)
	}
	for _, userID := range recipients {
		s.deliver(ctx, NotifyInput{
			UserID:   userID,
			Type:     domain.NotificationTicketReopened,
			Title:    "Ticket reopened",
			Message:  fmt.Sprintf("Ticket %s has been reopened", payload.TicketNumber),
			Category: domain.NotificationCategoryWarning,
			Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
		})
	}
	return nil
}

func (s *NotificationService) handleAssignmentRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssignmentRequestedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Type:     domain.NotificationAssignmentRequested,
		Title:    "Agent claimed your ticket",
		Message:  fmt.Sprintf("An agent requested assignment on ticket %s", payload.TicketNumber),
		Category: domain.NotificationCategoryInfo,
		Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
	})
	return nil
}

func (s *NotificationService) handleAssignmentAccepted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssignmentAcceptedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Type:     domain.NotificationTicketAssigned,
		Title:    "Ticket assigned",
		Message:  fmt.Sprintf("Ticket %s is now handled by an agent", payload.TicketNumber),
		Category: domain.NotificationCategorySuccess,
		Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
	})
	s.deliver(ctx, NotifyInput{
		UserID:   payload.AgentID,
		Type:     domain.NotificationAssignmentAccepted,
		Title:    "Assignment accepted",
		Message:  fmt.Sprintf("You are now assigned to ticket %s", payload.TicketNumber),
		Category: domain.NotificationCategorySuccess,
		Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
	})
	return nil
}

func (s *NotificationService) handleAssignmentRejected(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssignmentRejectedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Type:     domain.NotificationAssignmentRejected,
		Title:    "Assignment declined",
		Message:  fmt.Sprintf("An agent declined ticket %s; it remains in the queue", payload.TicketNumber),
		Category: domain.NotificationCategoryWarning,
		Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
	})
	return nil
}

func (s *NotificationService) handleChatMessagePosted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ChatMessagePostedPayload)
	if !ok {
		return nil
	}
	// Notify the other side of the conversation, never the sender.
	recipients := make([]string, 0, 2)
	if payload.CreatorID != payload.SenderID {
		recipients = append(recipients, payload.CreatorID)
	}
	if payload.AssigneeID != nil && *payload.AssigneeID != payload.SenderID {
		recipients = append(recipients, *payload.AssigneeID)
	}
	for _, userID := range recipients {
		s.deliver(ctx, NotifyInput{
			UserID:   userID,
			Type:     domain.NotificationCommentAdded,
			Title:    "New comment",
			Message:  fmt.Sprintf("Ticket %s has a new message", payload.TicketNumber),
			Category: domain.NotificationCategoryInfo,
			Metadata: map[string]any{domain.MetaTicketID: event.TicketID},
		})
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, input NotifyInput) {
	if _, err := s.Notify(ctx, input); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("user_id", input.UserID),
			zap.String("type", string(input.Type)),
			zap.Error(err))
	}
}

func metadataTicketID(metadata map[string]any) (string, bool) {
	if metadata == nil {
		return "", false
	}
	id, ok := metadata[domain.MetaTicketID].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
