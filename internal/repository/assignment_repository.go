package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhand/helpdesk-service/internal/domain"
)

// AssignmentRepository stores agent claims on tickets.
type AssignmentRepository interface {
	Create(ctx context.Context, request *domain.AssignmentRequest) error
	GetByID(ctx context.Context, id string) (*domain.AssignmentRequest, error)
	// GetActiveByTicket returns the single Pending or Accepted request for a
	// ticket, or pgx.ErrNoRows.
	GetActiveByTicket(ctx context.Context, ticketID string) (*domain.AssignmentRequest, error)
	GetPendingByTicketAndAgent(ctx context.Context, ticketID, agentID string) (*domain.AssignmentRequest, error)
	// Resolve moves a request out of Pending, guarded on state='PENDING'.
	// Returns false when the request was already terminal.
	Resolve(ctx context.Context, id string, state domain.AssignmentState, note *string) (bool, error)
	// RejectOtherPending closes out every Pending request on the ticket except
	// the given one. Rival claims lose once an assignment is committed.
	RejectOtherPending(ctx context.Context, ticketID, requestID string) (int64, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AssignmentRequest, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

const assignmentColumns = `id, ticket_id, agent_id, state, requested_by, response_note, created_at, responded_at`

func (r *assignmentRepository) Create(ctx context.Context, request *domain.AssignmentRequest) error {
	const query = `
        INSERT INTO assignment_requests (ticket_id, agent_id, state, requested_by, response_note, responded_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		request.TicketID,
		request.AgentID,
		request.State,
		request.RequestedBy,
		request.ResponseNote,
		request.RespondedAt,
	).Scan(&request.ID, &request.CreatedAt)
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*domain.AssignmentRequest, error) {
	const query = `SELECT ` + assignmentColumns + ` FROM assignment_requests WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *assignmentRepository) GetActiveByTicket(ctx context.Context, ticketID string) (*domain.AssignmentRequest, error) {
	const query = `SELECT ` + assignmentColumns + `
        FROM assignment_requests
        WHERE ticket_id=$1 AND state IN ('PENDING','ACCEPTED')
        ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *assignmentRepository) GetPendingByTicketAndAgent(ctx context.Context, ticketID, agentID string) (*domain.AssignmentRequest, error) {
	const query = `SELECT ` + assignmentColumns + `
        FROM assignment_requests
        WHERE ticket_id=$1 AND agent_id=$2 AND state='PENDING'
        ORDER BY created_at DESC LIMIT 1`
	var request domain.AssignmentRequest
	if err := r.pool.QueryRow(ctx, query, ticketID, agentID).Scan(
		&request.ID,
		&request.TicketID,
		&request.AgentID,
		&request.State,
		&request.RequestedBy,
		&request.ResponseNote,
		&request.CreatedAt,
		&request.RespondedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *assignmentRepository) Resolve(ctx context.Context, id string, state domain.AssignmentState, note *string) (bool, error) {
	const query = `
        UPDATE assignment_requests SET state=$2, response_note=$3, responded_at=NOW()
        WHERE id=$1 AND state='PENDING'`
	cmd, err := r.pool.Exec(ctx, query, id, state, note)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *assignmentRepository) RejectOtherPending(ctx context.Context, ticketID, requestID string) (int64, error) {
	const query = `
        UPDATE assignment_requests SET state='REJECTED', responded_at=NOW()
        WHERE ticket_id=$1 AND id<>$2 AND state='PENDING'`
	cmd, err := r.pool.Exec(ctx, query, ticketID, requestID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AssignmentRequest, error) {
	const query = `SELECT ` + assignmentColumns + `
        FROM assignment_requests WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRequest
	for rows.Next() {
		var request domain.AssignmentRequest
		if err := rows.Scan(
			&request.ID,
			&request.TicketID,
			&request.AgentID,
			&request.State,
			&request.RequestedBy,
			&request.ResponseNote,
			&request.CreatedAt,
			&request.RespondedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}

func (r *assignmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.AssignmentRequest, error) {
	var request domain.AssignmentRequest
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&request.ID,
		&request.TicketID,
		&request.AgentID,
		&request.State,
		&request.RequestedBy,
		&request.ResponseNote,
		&request.CreatedAt,
		&request.RespondedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}
