package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	apperrors "github.com/deskhand/helpdesk-service/pkg/util"
)

func newAssignmentFixture(t *testing.T, users ...*domain.User) (*AssignmentService, *fakeTicketRepo, *fakeAssignmentRepo, *recordingDispatcher) {
	t.Helper()
	tickets := newFakeTicketRepo()
	assignments := newFakeAssignmentRepo()
	dispatcher := newRecordingDispatcher()
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo:     tickets,
		AssignmentRepo: assignments,
		UserRepo:       newFakeUserRepo(users...),
		HistoryRepo:    newFakeHistoryRepo(),
		Dispatcher:     dispatcher,
	})
	return svc, tickets, assignments, dispatcher
}

func seedOpenTicket(t *testing.T, tickets *fakeTicketRepo, categoryID string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Number:     "HD-CLAIM01",
		CreatorID:  "client-1",
		CategoryID: categoryID,
		Title:      "seeded",
		Status:     domain.TicketStatusNew,
		Priority:   domain.TicketPriorityMedium,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))
	return ticket
}

func TestClaimTicket(t *testing.T) {
	ctx := context.Background()
	agent := &domain.User{ID: "agent-1", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}

	t.Run("eligible agent gets a pending request", func(t *testing.T) {
		svc, tickets, _, dispatcher := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		request, err := svc.ClaimTicket(ctx, agent, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStatePending, request.State)
		assert.Equal(t, agent.ID, request.AgentID)
		assert.Equal(t, agent.ID, request.RequestedBy)
		assert.Len(t, dispatcher.eventsOfType(events.EventAssignmentRequested), 1)

		// Claiming does not assign yet.
		stored, err := tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.AssigneeID)
	})

	t.Run("skill mismatch is Forbidden", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-network")

		_, err := svc.ClaimTicket(ctx, agent, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("assigned ticket is Conflict", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		won, err := tickets.AssignIfUnassigned(ctx, ticket.ID, "agent-9")
		require.NoError(t, err)
		require.True(t, won)

		_, err = svc.ClaimTicket(ctx, agent, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("second claim on same ticket is Conflict", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		_, err := svc.ClaimTicket(ctx, agent, ticket.ID)
		require.NoError(t, err)
		_, err = svc.ClaimTicket(ctx, agent, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("client cannot claim", func(t *testing.T) {
		client := &domain.User{ID: "client-1", Role: domain.RoleClient, Active: true}
		svc, tickets, _, _ := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		_, err := svc.ClaimTicket(ctx, client, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("inactive agent cannot claim", func(t *testing.T) {
		inactive := &domain.User{ID: "agent-2", Role: domain.RoleAgent, Skills: []string{"cat-hw"}}
		svc, tickets, _, _ := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		_, err := svc.ClaimTicket(ctx, inactive, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})
}

func TestAcceptAssignment(t *testing.T) {
	ctx := context.Background()
	agentA := &domain.User{ID: "agent-a", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}
	agentB := &domain.User{ID: "agent-b", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}

	t.Run("accept assigns and normalizes New to Open", func(t *testing.T) {
		svc, tickets, assignments, dispatcher := newAssignmentFixture(t, agentA)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		require.NoError(t, assignments.Create(ctx, &domain.AssignmentRequest{
			TicketID: ticket.ID, AgentID: agentA.ID, State: domain.AssignmentStatePending, RequestedBy: agentA.ID,
		}))

		updated, err := svc.AcceptAssignment(ctx, agentA, ticket.ID, nil)
		require.NoError(t, err)
		require.NotNil(t, updated.AssigneeID)
		assert.Equal(t, agentA.ID, *updated.AssigneeID)
		assert.Equal(t, domain.TicketStatusOpen, updated.Status)
		assert.Len(t, dispatcher.eventsOfType(events.EventAssignmentAccepted), 1)
	})

	t.Run("no pending request is NotFound", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, agentA)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		_, err := svc.AcceptAssignment(ctx, agentA, ticket.ID, nil)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})

	t.Run("winning accept closes out rival pending requests", func(t *testing.T) {
		svc, tickets, assignments, _ := newAssignmentFixture(t, agentA, agentB)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		for _, agent := range []*domain.User{agentA, agentB} {
			require.NoError(t, assignments.Create(ctx, &domain.AssignmentRequest{
				TicketID: ticket.ID, AgentID: agent.ID, State: domain.AssignmentStatePending, RequestedBy: agent.ID,
			}))
		}

		_, err := svc.AcceptAssignment(ctx, agentA, ticket.ID, nil)
		require.NoError(t, err)

		requests, err := assignments.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, requests, 2)
		for _, request := range requests {
			switch request.AgentID {
			case agentA.ID:
				assert.Equal(t, domain.AssignmentStateAccepted, request.State)
			case agentB.ID:
				assert.Equal(t, domain.AssignmentStateRejected, request.State)
				assert.NotNil(t, request.RespondedAt)
			}
		}
	})

	t.Run("accept after losing the race is Conflict", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, agentA)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		won, err := tickets.AssignIfUnassigned(ctx, ticket.ID, "agent-9")
		require.NoError(t, err)
		require.True(t, won)

		_, err = svc.AcceptAssignment(ctx, agentA, ticket.ID, nil)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("two racing accepts produce one winner", func(t *testing.T) {
		svc, tickets, assignments, _ := newAssignmentFixture(t, agentA, agentB)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		for _, agent := range []*domain.User{agentA, agentB} {
			require.NoError(t, assignments.Create(ctx, &domain.AssignmentRequest{
				TicketID: ticket.ID, AgentID: agent.ID, State: domain.AssignmentStatePending, RequestedBy: agent.ID,
			}))
		}

		results := make([]error, 2)
		var wg sync.WaitGroup
		for i, agent := range []*domain.User{agentA, agentB} {
			wg.Add(1)
			go func(i int, agent *domain.User) {
				defer wg.Done()
				_, results[i] = svc.AcceptAssignment(ctx, agent, ticket.ID, nil)
			}(i, agent)
		}
		wg.Wait()

		var wins, conflicts int
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case apperrors.IsCode(err, "CONFLICT"):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, conflicts)

		stored, err := tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.AssigneeID)
	})
}

func TestRejectAssignment(t *testing.T) {
	ctx := context.Background()
	agent := &domain.User{ID: "agent-1", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}

	t.Run("reject leaves the ticket untouched", func(t *testing.T) {
		svc, tickets, assignments, dispatcher := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		require.NoError(t, assignments.Create(ctx, &domain.AssignmentRequest{
			TicketID: ticket.ID, AgentID: agent.ID, State: domain.AssignmentStatePending, RequestedBy: agent.ID,
		}))

		note := "on vacation"
		request, err := svc.RejectAssignment(ctx, agent, ticket.ID, &note)
		require.NoError(t, err)
		assert.Equal(t, domain.AssignmentStateRejected, request.State)
		require.NotNil(t, request.RespondedAt)

		stored, err := tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.AssigneeID)
		assert.Equal(t, domain.TicketStatusNew, stored.Status)
		assert.Len(t, dispatcher.eventsOfType(events.EventAssignmentRejected), 1)
	})

	t.Run("resolving twice is Conflict", func(t *testing.T) {
		svc, tickets, assignments, _ := newAssignmentFixture(t, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		require.NoError(t, assignments.Create(ctx, &domain.AssignmentRequest{
			TicketID: ticket.ID, AgentID: agent.ID, State: domain.AssignmentStatePending, RequestedBy: agent.ID,
		}))

		_, err := svc.RejectAssignment(ctx, agent, ticket.ID, nil)
		require.NoError(t, err)
		_, err = svc.RejectAssignment(ctx, agent, ticket.ID, nil)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})
}

func TestAssignDirect(t *testing.T) {
	ctx := context.Background()
	admin := &domain.User{ID: "admin-1", Role: domain.RoleAdmin, Active: true}
	agent := &domain.User{ID: "agent-1", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}
	client := &domain.User{ID: "client-1", Role: domain.RoleClient, Active: true}

	t.Run("admin assigns and request is born Accepted", func(t *testing.T) {
		svc, tickets, assignments, _ := newAssignmentFixture(t, admin, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		updated, err := svc.AssignDirect(ctx, admin, ticket.ID, agent.ID, nil)
		require.NoError(t, err)
		require.NotNil(t, updated.AssigneeID)
		assert.Equal(t, agent.ID, *updated.AssigneeID)
		assert.Equal(t, domain.TicketStatusOpen, updated.Status)

		requests, err := assignments.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, domain.AssignmentStateAccepted, requests[0].State)
		assert.Equal(t, admin.ID, requests[0].RequestedBy)
		assert.NotNil(t, requests[0].RespondedAt)
	})

	t.Run("direct assign rejects outstanding claims", func(t *testing.T) {
		other := &domain.User{ID: "agent-2", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}
		svc, tickets, assignments, _ := newAssignmentFixture(t, admin, agent, other)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		require.NoError(t, assignments.Create(ctx, &domain.AssignmentRequest{
			TicketID: ticket.ID, AgentID: other.ID, State: domain.AssignmentStatePending, RequestedBy: other.ID,
		}))

		_, err := svc.AssignDirect(ctx, admin, ticket.ID, agent.ID, nil)
		require.NoError(t, err)

		requests, err := assignments.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, requests, 2)
		for _, request := range requests {
			if request.AgentID == other.ID {
				assert.Equal(t, domain.AssignmentStateRejected, request.State)
			}
		}
	})

	t.Run("non-admin is Forbidden", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, admin, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		_, err := svc.AssignDirect(ctx, agent, ticket.ID, agent.ID, nil)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("target must be an active agent", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, admin, agent, client)
		ticket := seedOpenTicket(t, tickets, "cat-hw")

		_, err := svc.AssignDirect(ctx, admin, ticket.ID, client.ID, nil)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("already assigned is Conflict", func(t *testing.T) {
		svc, tickets, _, _ := newAssignmentFixture(t, admin, agent)
		ticket := seedOpenTicket(t, tickets, "cat-hw")
		won, err := tickets.AssignIfUnassigned(ctx, ticket.ID, "agent-9")
		require.NoError(t, err)
		require.True(t, won)

		_, err = svc.AssignDirect(ctx, admin, ticket.ID, agent.ID, nil)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})
}

func TestListClaimable(t *testing.T) {
	ctx := context.Background()
	agent := &domain.User{ID: "agent-1", Role: domain.RoleAgent, Skills: []string{"cat-hw"}, Active: true}

	svc, tickets, _, _ := newAssignmentFixture(t, agent)
	inSkill := seedOpenTicket(t, tickets, "cat-hw")
	seedOpenTicket(t, tickets, "cat-network")

	assigned := seedOpenTicket(t, tickets, "cat-hw")
	won, err := tickets.AssignIfUnassigned(ctx, assigned.ID, "agent-9")
	require.NoError(t, err)
	require.True(t, won)

	claimable, err := svc.ListClaimable(ctx, agent, 50, 0)
	require.NoError(t, err)
	require.Len(t, claimable, 1)
	assert.Equal(t, inSkill.ID, claimable[0].ID)
}
