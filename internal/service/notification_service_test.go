package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskhand/helpdesk-service/internal/cache"
	"github.com/deskhand/helpdesk-service/internal/config"
	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/observability"
	"github.com/deskhand/helpdesk-service/internal/repository"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

func newNotificationFixture(t *testing.T) (*NotificationService, *fakeNotificationRepo, *time.Time) {
	t.Helper()
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, cache.NewUnreadCounter(nil), zap.NewNop(), observability.NewMetrics(), config.NotificationConfig{
		DedupWindowMinutes: 10,
		DedupScanLimit:     10,
		RetentionDays:      30,
	})
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	repo.now = svc.now
	return svc, repo, &clock
}

func ticketCreatedInput(userID, ticketID string) NotifyInput {
	return NotifyInput{
		UserID:   userID,
		Type:     domain.NotificationTicketCreated,
		Title:    "Ticket created",
		Message:  "Ticket HD-1 has been opened",
		Category: domain.NotificationCategorySuccess,
		Metadata: map[string]any{domain.MetaTicketID: ticketID},
	}
}

func TestNotifyDedup(t *testing.T) {
	ctx := context.Background()

	t.Run("identical events within the window merge", func(t *testing.T) {
		svc, repo, clock := newNotificationFixture(t)

		first, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		assert.Equal(t, 1, first.GroupCount())

		*clock = clock.Add(2 * time.Minute)
		second, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.GroupCount())

		*clock = clock.Add(3 * time.Minute)
		third, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, third.ID)
		assert.Equal(t, 3, third.GroupCount())
		assert.Equal(t, *clock, third.CreatedAt)
		assert.False(t, third.IsRead)

		rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("outside the window a new row is created", func(t *testing.T) {
		svc, repo, clock := newNotificationFixture(t)

		_, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)

		*clock = clock.Add(11 * time.Minute)
		_, err = svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)

		rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("different message never merges", func(t *testing.T) {
		svc, repo, _ := newNotificationFixture(t)

		_, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)

		other := ticketCreatedInput("user-1", "t1")
		other.Message = "Ticket HD-2 has been opened"
		_, err = svc.Notify(ctx, other)
		require.NoError(t, err)

		rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("different ticket never merges", func(t *testing.T) {
		svc, repo, _ := newNotificationFixture(t)

		_, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		_, err = svc.Notify(ctx, ticketCreatedInput("user-1", "t2"))
		require.NoError(t, err)

		rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("missing ticketId matches anything", func(t *testing.T) {
		svc, repo, _ := newNotificationFixture(t)

		withTicket := ticketCreatedInput("user-1", "t1")
		_, err := svc.Notify(ctx, withTicket)
		require.NoError(t, err)

		noTicket := ticketCreatedInput("user-1", "")
		noTicket.Metadata = nil
		merged, err := svc.Notify(ctx, noTicket)
		require.NoError(t, err)
		assert.Equal(t, 2, merged.GroupCount())

		rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("different users never merge", func(t *testing.T) {
		svc, _, _ := newNotificationFixture(t)

		first, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		second, err := svc.Notify(ctx, ticketCreatedInput("user-2", "t1"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		svc, _, _ := newNotificationFixture(t)
		_, err := svc.Notify(ctx, NotifyInput{UserID: "user-1"})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})
}

func TestNotificationFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("mark read enforces ownership via NotFound", func(t *testing.T) {
		svc, _, _ := newNotificationFixture(t)
		created, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)

		err = svc.MarkRead(ctx, created.ID, "user-2")
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

		require.NoError(t, svc.MarkRead(ctx, created.ID, "user-1"))
		count, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("mark all read returns the count", func(t *testing.T) {
		svc, _, _ := newNotificationFixture(t)
		_, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		_, err = svc.Notify(ctx, ticketCreatedInput("user-1", "t2"))
		require.NoError(t, err)

		marked, err := svc.MarkAllRead(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), marked)
	})

	t.Run("archived rows leave the default feed", func(t *testing.T) {
		svc, _, _ := newNotificationFixture(t)
		created, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)

		require.NoError(t, svc.Archive(ctx, created.ID, "user-1"))
		rows, err := svc.List(ctx, "user-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Empty(t, rows)

		all, err := svc.List(ctx, "user-1", repository.NotificationFilter{IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("archive enforces ownership via NotFound", func(t *testing.T) {
		svc, _, _ := newNotificationFixture(t)
		created, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)

		err = svc.Archive(ctx, created.ID, "user-2")
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})

	t.Run("archived rows do not absorb merges", func(t *testing.T) {
		svc, repo, _ := newNotificationFixture(t)
		created, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		require.NoError(t, svc.Archive(ctx, created.ID, "user-1"))

		fresh, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, fresh.ID)
		assert.Equal(t, 1, fresh.GroupCount())

		rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestSweepArchived(t *testing.T) {
	ctx := context.Background()
	svc, repo, clock := newNotificationFixture(t)

	old, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t1"))
	require.NoError(t, err)
	require.NoError(t, svc.Archive(ctx, old.ID, "user-1"))

	*clock = clock.Add(31 * 24 * time.Hour)
	recent, err := svc.Notify(ctx, ticketCreatedInput("user-1", "t2"))
	require.NoError(t, err)
	require.NoError(t, svc.Archive(ctx, recent.ID, "user-1"))

	deleted, err := svc.SweepArchived(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows, err := repo.ListByUser(ctx, "user-1", repository.NotificationFilter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, recent.ID, rows[0].ID)
}

func TestNotificationHandlers(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newNotificationFixture(t)
	dispatcher := newRecordingDispatcher()
	svc.RegisterHandlers(dispatcher)

	assigneeID := "agent-1"

	t.Run("chat message notifies the other side only", func(t *testing.T) {
		err := dispatcher.Publish(ctx, events.Event{
			Type:     events.EventChatMessagePosted,
			TicketID: "t1",
			ActorID:  assigneeID,
			Payload: events.ChatMessagePostedPayload{
				MessageID:    "m1",
				TicketNumber: "HD-1",
				CreatorID:    "client-1",
				AssigneeID:   &assigneeID,
				SenderID:     assigneeID,
			},
		})
		require.NoError(t, err)

		clientRows, err := repo.ListByUser(ctx, "client-1", repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Len(t, clientRows, 1)
		assert.Equal(t, domain.NotificationCommentAdded, clientRows[0].Type)

		agentRows, err := repo.ListByUser(ctx, assigneeID, repository.NotificationFilter{})
		require.NoError(t, err)
		assert.Empty(t, agentRows)
	})

	t.Run("accepted assignment notifies creator and agent", func(t *testing.T) {
		err := dispatcher.Publish(ctx, events.Event{
			Type:     events.EventAssignmentAccepted,
			TicketID: "t2",
			ActorID:  assigneeID,
			Payload: events.AssignmentAcceptedPayload{
				RequestID:    "r1",
				TicketNumber: "HD-2",
				CreatorID:    "client-2",
				AgentID:      assigneeID,
			},
		})
		require.NoError(t, err)

		creatorRows, err := repo.ListByUser(ctx, "client-2", repository.NotificationFilter{})
		require.NoError(t, err)
		require.Len(t, creatorRows, 1)
		assert.Equal(t, domain.NotificationTicketAssigned, creatorRows[0].Type)

		agentRows, err := repo.ListByUser(ctx, assigneeID, repository.NotificationFilter{})
		require.NoError(t, err)
		require.Len(t, agentRows, 1)
		assert.Equal(t, domain.NotificationAssignmentAccepted, agentRows[0].Type)
	})
}
