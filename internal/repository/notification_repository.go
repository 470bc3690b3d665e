package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhand/helpdesk-service/internal/domain"
)

// NotificationFilter captures feed listing parameters.
type NotificationFilter struct {
	UnreadOnly      bool
	IncludeArchived bool
	Limit           int
	Offset          int
}

// NotificationRepository stores per-user notification rows.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	// ListRecentByUserAndType returns non-archived rows for the dedup scan,
	// newest first, created at or after since.
	ListRecentByUserAndType(ctx context.Context, userID string, notifType domain.NotificationType, since time.Time, limit int) ([]domain.Notification, error)
	// UpdateGrouping persists a dedup merge: metadata bookkeeping plus the
	// refreshed created_at.
	UpdateGrouping(ctx context.Context, notification *domain.Notification) error
	ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error)
	// MarkRead flips is_read for a row owned by userID. Ownership is part of
	// the predicate; a miss is indistinguishable from absence.
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Archive(ctx context.Context, id, userID string) (bool, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, user_id, type, title, message, category, metadata, is_read, is_archived, created_at`

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, type, title, message, category, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.Category,
		notification.Metadata,
	).Scan(&notification.ID, &notification.CreatedAt)
}

func (r *notificationRepository) ListRecentByUserAndType(ctx context.Context, userID string, notifType domain.NotificationType, since time.Time, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
        SELECT %s FROM notifications
        WHERE user_id=$1 AND type=$2 AND is_archived=FALSE AND created_at >= $3
        ORDER BY created_at DESC LIMIT %d`, notificationColumns, limit)
	rows, err := r.pool.Query(ctx, query, userID, notifType, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) UpdateGrouping(ctx context.Context, notification *domain.Notification) error {
	const query = `
        UPDATE notifications SET metadata=$2, created_at=$3, is_read=FALSE
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, notification.ID, notification.Metadata, notification.CreatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error) {
	clauses := []string{"user_id=$1"}
	if filter.UnreadOnly {
		clauses = append(clauses, "is_read=FALSE")
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "is_archived=FALSE")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, strings.Join(clauses, " AND "), limit, offset)
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	const query = `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND is_read=FALSE`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) Archive(ctx context.Context, id, userID string) (bool, error) {
	const query = `UPDATE notifications SET is_archived=TRUE WHERE id=$1 AND user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read=FALSE AND is_archived=FALSE`
	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notifications WHERE is_archived=TRUE AND created_at < $1`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	var result []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.Category,
			&notification.Metadata,
			&notification.IsRead,
			&notification.IsArchived,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, notification)
	}
	return result, rows.Err()
}
