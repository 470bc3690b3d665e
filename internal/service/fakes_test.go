package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/repository"
)

// In-memory repositories for service tests. The ticket fake reproduces the
// compare-and-set semantics of AssignIfUnassigned under a mutex so race tests
// are meaningful.

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

// UpdateStatus mirrors the column-restricted SQL statement: only the fields
// the status state machine owns are written back.
func (r *fakeTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = ticket.Status
	stored.Satisfaction = ticket.Satisfaction
	stored.ClosedAt = ticket.ClosedAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.Number == number {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.CategoryID != nil && ticket.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Unassigned && ticket.AssigneeID != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *fakeTicketRepo) AssignIfUnassigned(_ context.Context, ticketID, agentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.AssigneeID != nil {
		return false, nil
	}
	assignee := agentID
	ticket.AssigneeID = &assignee
	if ticket.Status == domain.TicketStatusNew {
		ticket.Status = domain.TicketStatusOpen
	}
	ticket.UpdatedAt = time.Now()
	return true, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeAssignmentRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.AssignmentRequest
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{requests: make(map[string]*domain.AssignmentRequest)}
}

func (r *fakeAssignmentRepo) Create(_ context.Context, request *domain.AssignmentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.CreatedAt = time.Now()
	copied := *request
	r.requests[request.ID] = &copied
	return nil
}

func (r *fakeAssignmentRepo) GetByID(_ context.Context, id string) (*domain.AssignmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *request
	return &copied, nil
}

func (r *fakeAssignmentRepo) GetActiveByTicket(_ context.Context, ticketID string) (*domain.AssignmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.TicketID == ticketID &&
			(request.State == domain.AssignmentStatePending || request.State == domain.AssignmentStateAccepted) {
			copied := *request
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) GetPendingByTicketAndAgent(_ context.Context, ticketID, agentID string) (*domain.AssignmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.TicketID == ticketID && request.AgentID == agentID && request.State == domain.AssignmentStatePending {
			copied := *request
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) Resolve(_ context.Context, id string, state domain.AssignmentState, note *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok || request.State != domain.AssignmentStatePending {
		return false, nil
	}
	request.State = state
	request.ResponseNote = note
	now := time.Now()
	request.RespondedAt = &now
	return true, nil
}

func (r *fakeAssignmentRepo) RejectOtherPending(_ context.Context, ticketID, requestID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, request := range r.requests {
		if request.TicketID == ticketID && request.ID != requestID && request.State == domain.AssignmentStatePending {
			request.State = domain.AssignmentStateRejected
			now := time.Now()
			request.RespondedAt = &now
			count++
		}
	}
	return count, nil
}

func (r *fakeAssignmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AssignmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AssignmentRequest
	for _, request := range r.requests {
		if request.TicketID == ticketID {
			result = append(result, *request)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	history.CreatedAt = time.Now()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeCategoryRepo struct {
	mu         sync.Mutex
	categories map[string]*domain.Category
}

func newFakeCategoryRepo(categories ...*domain.Category) *fakeCategoryRepo {
	repo := &fakeCategoryRepo{categories: make(map[string]*domain.Category)}
	for _, category := range categories {
		repo.categories[category.ID] = category
	}
	return repo
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	category, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *category
	return &copied, nil
}

func (r *fakeCategoryRepo) List(_ context.Context) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Category
	for _, category := range r.categories {
		result = append(result, *category)
	}
	return result, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListAgentsBySkill(_ context.Context, categoryID string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Role == domain.RoleAgent && user.Active && user.HasSkill(categoryID) {
			result = append(result, *user)
		}
	}
	return result, nil
}

type fakeChatMessageRepo struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
}

func newFakeChatMessageRepo() *fakeChatMessageRepo {
	return &fakeChatMessageRepo{}
}

func (r *fakeChatMessageRepo) Create(_ context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = time.Now()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeChatMessageRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ChatMessage
	for _, message := range r.messages {
		if message.TicketID == ticketID {
			result = append(result, message)
		}
	}
	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type fakeNotificationRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Notification
	// now stands in for the database NOW() default on insert.
	now func() time.Time
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{rows: make(map[string]*domain.Notification), now: time.Now}
}

func (r *fakeNotificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = r.now()
	}
	copied := *notification
	r.rows[notification.ID] = &copied
	return nil
}

func (r *fakeNotificationRepo) ListRecentByUserAndType(_ context.Context, userID string, notifType domain.NotificationType, since time.Time, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, row := range r.rows {
		if row.UserID != userID || row.Type != notifType || row.IsArchived {
			continue
		}
		if row.CreatedAt.Before(since) {
			continue
		}
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeNotificationRepo) UpdateGrouping(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[notification.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *notification
	copied.IsRead = false
	r.rows[notification.ID] = &copied
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, row := range r.rows {
		if row.UserID != userID {
			continue
		}
		if filter.UnreadOnly && row.IsRead {
			continue
		}
		if !filter.IncludeArchived && row.IsArchived {
			continue
		}
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return false, nil
	}
	row.IsRead = true
	return true, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.rows {
		if row.UserID == userID && !row.IsRead {
			row.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Archive(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return false, nil
	}
	row.IsArchived = true
	return true, nil
}

func (r *fakeNotificationRepo) UnreadCount(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.rows {
		if row.UserID == userID && !row.IsRead && !row.IsArchived {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) DeleteArchivedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, row := range r.rows {
		if row.IsArchived && row.CreatedAt.Before(cutoff) {
			delete(r.rows, id)
			count++
		}
	}
	return count, nil
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu       sync.Mutex
	events   []events.Event
	handlers map[events.EventType][]events.EventHandler
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{handlers: make(map[events.EventType][]events.EventHandler)}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	handlers := append([]events.EventHandler{}, d.handlers[event.Type]...)
	d.mu.Unlock()
	for _, handler := range handlers {
		_ = handler(ctx, event)
	}
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *recordingDispatcher) eventsOfType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}
