package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"substitute_sms_notifier/internal/domain/sms"
)

var (
	ErrHistoryRecordExists = fmt.Errorf("sms history record already exists")
	ErrHistoryTableMissing = fmt.Errorf("sent_messages table does not exist")
)

const undefinedTable = "42P01"

const createSentMessagesTable = `CREATE TABLE IF NOT EXISTS sent_messages (
    id            TEXT PRIMARY KEY,
    teacher_name  TEXT NOT NULL,
    teacher_phone TEXT NOT NULL,
    message       TEXT NOT NULL,
    sent_at       TIMESTAMPTZ NOT NULL,
    status        TEXT NOT NULL
)`

// PostgresHistoryRepository mirrors the SMS history into the sent_messages table.
type PostgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// EnsureSchema creates the sent_messages table when it is missing.
func (r *PostgresHistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSentMessagesTable); err != nil {
		return fmt.Errorf("error creating sent_messages table: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) Append(ctx context.Context, msg *sms.SentMessage) error {
	query := `INSERT INTO sent_messages (id, teacher_name, teacher_phone, message, sent_at, status)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT (id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.TeacherName, msg.TeacherPhone, msg.Message, time.UnixMilli(msg.Timestamp).UTC(), string(msg.Status))
	if err != nil {
		return fmt.Errorf("error inserting sent message: %w", mapError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking inserted sent message: %w", err)
	}
	if rows == 0 {
		return ErrHistoryRecordExists
	}
	return nil
}

func (r *PostgresHistoryRepository) List(ctx context.Context) ([]*sms.SentMessage, error) {
	query := `SELECT id, teacher_name, teacher_phone, message, sent_at, status
               FROM sent_messages ORDER BY sent_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing sent messages: %w", mapError(err))
	}
	defer rows.Close()

	var msgs []*sms.SentMessage
	for rows.Next() {
		var (
			m      sms.SentMessage
			sentAt time.Time
			status string
		)
		if err := rows.Scan(&m.ID, &m.TeacherName, &m.TeacherPhone, &m.Message, &sentAt, &status); err != nil {
			return nil, fmt.Errorf("error scanning sent message: %w", err)
		}
		m.Timestamp = sentAt.UnixMilli()
		m.Status = sms.Status(status)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sent messages: %w", err)
	}
	return msgs, nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%w: %v", ErrHistoryTableMissing, err)
	}
	return err
}
