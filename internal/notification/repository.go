package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Repository is the transactional store contract for notification rows.
// All reads and mutations that act on behalf of a caller take the caller's
// user id so recipient isolation is enforced at the store boundary, not by
// call-site discipline.
type Repository interface {
	// CreateBatch persists all rows in a single transaction; either every
	// row commits or none do.
	CreateBatch(ctx context.Context, batch []*Notification) error

	// List returns the caller's rows matching the filter plus the total
	// match count computed before paging.
	List(ctx context.Context, userID string, f *Filter) ([]*Notification, int, error)

	// Counts returns total, unread and read counts for the caller from a
	// single snapshot query.
	Counts(ctx context.Context, userID string) (total, unread, read int, err error)

	// GetByID returns the caller's row, or nil when it does not exist, is
	// soft-deleted, or belongs to another user.
	GetByID(ctx context.Context, userID, id string) (*Notification, error)

	// UpdateState applies a bulk read/unread transition and reports how
	// many rows changed. With setAll the id list is ignored; otherwise only
	// the caller's rows among ids are touched.
	UpdateState(ctx context.Context, userID string, setAll bool, ids []string, state State) (int64, error)

	// SoftDelete marks the caller's row deleted and reports whether a row
	// was affected.
	SoftDelete(ctx context.Context, userID, id string) (bool, error)
}

const notificationColumns = "id, content, type, action_type, action, created_date, created_by, user_id, state, deleted"

// PostgresRepository implements Repository over a plain *sql.DB.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateBatch(ctx context.Context, batch []*Notification) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range batch {
		if _, err := stmt.ExecContext(ctx,
			n.ID, n.Content, n.Type, n.ActionType, n.Action,
			n.CreatedDate, n.CreatedBy, n.UserID, n.State, n.Deleted,
		); err != nil {
			return fmt.Errorf("failed to insert notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) List(ctx context.Context, userID string, f *Filter) ([]*Notification, int, error) {
	where, args := buildPredicates(userID, f)

	var count int
	countQuery := "SELECT COUNT(*) FROM notifications WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + notificationColumns + " FROM notifications WHERE " + where +
		" ORDER BY " + orderClause(f) + pagingClause(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, count, rows.Err()
}

func (r *PostgresRepository) Counts(ctx context.Context, userID string) (int, int, int, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE state = $2),
		       COUNT(*) FILTER (WHERE state = $3)
		FROM notifications
		WHERE user_id = $1 AND deleted = FALSE
	`
	var total, unread, read int
	err := r.db.QueryRowContext(ctx, query, userID, StateUnread, StateRead).Scan(&total, &unread, &read)
	if err != nil {
		return 0, 0, 0, err
	}
	return total, unread, read, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*Notification, error) {
	query := "SELECT " + notificationColumns + ` FROM notifications
		WHERE id = $1 AND user_id = $2 AND deleted = FALSE`
	row := r.db.QueryRowContext(ctx, query, id, userID)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) UpdateState(ctx context.Context, userID string, setAll bool, ids []string, state State) (int64, error) {
	var res sql.Result
	var err error

	if setAll {
		res, err = r.db.ExecContext(ctx, `
			UPDATE notifications SET state = $1
			WHERE user_id = $2 AND deleted = FALSE
		`, state, userID)
	} else {
		if len(ids) == 0 {
			return 0, nil
		}
		res, err = r.db.ExecContext(ctx, `
			UPDATE notifications SET state = $1
			WHERE user_id = $2 AND deleted = FALSE AND id = ANY($3)
		`, state, userID, pq.Array(ids))
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET deleted = TRUE
		WHERE id = $1 AND user_id = $2 AND deleted = FALSE
	`, id, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (*Notification, error) {
	var n Notification
	err := s.Scan(
		&n.ID, &n.Content, &n.Type, &n.ActionType, &n.Action,
		&n.CreatedDate, &n.CreatedBy, &n.UserID, &n.State, &n.Deleted,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
