package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dizimo_backend/internal/channel"
	"dizimo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opBeginAttempt = "automation.repository.logs.begin_attempt"
	opFinalize     = "automation.repository.logs.finalize"
	opInsertManual = "automation.repository.logs.insert_manual"
	opGetLog       = "automation.repository.logs.get"
	opListLogs     = "automation.repository.logs.list"

	pgUniqueViolation = "23505"
)

const logColumns = `id, rule_id, user_id, user_email, user_name, notification_type,
	channel, status, origin, recipient, subject, message_content, error_message,
	send_date, created_at`

// LogRepository persists the append-only delivery log.
type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// BeginAutomaticAttempt inserts the pending gate row. The partial unique
// index on (rule_id, user_id, channel, send_date) for automatic rows is the
// concurrency gate: a unique violation means another runner already claimed
// this send today and the caller must count a skip, not an error.
func (r *LogRepository) BeginAutomaticAttempt(ctx context.Context, p AttemptParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notification_logs
			(rule_id, user_id, user_email, user_name, notification_type,
			 channel, status, origin, recipient, subject, message_content, send_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, p.RuleID, p.UserID, p.UserEmail, p.UserName, p.NotificationType,
		string(p.Channel), string(LogStatusPending), string(OriginAutomatic),
		p.Recipient, p.Subject, p.MessageContent, p.SendDate,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return uuid.Nil, ErrDuplicateSend
		}
		return uuid.Nil, apperr.Internal(fmt.Sprintf("insert delivery attempt failed: %v", err)).WithOp(opBeginAttempt)
	}
	return id, nil
}

// FinalizeAttempt records the dispatch outcome on the gate row previously
// inserted by BeginAutomaticAttempt.
func (r *LogRepository) FinalizeAttempt(ctx context.Context, id uuid.UUID, status LogStatus, errorMessage *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_logs
		SET status = $2, error_message = $3
		WHERE id = $1
	`, id, string(status), errorMessage)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("finalize delivery attempt failed: %v", err)).WithOp(opFinalize)
	}
	return nil
}

// InsertManualAttempt appends a resend row with its final status. Manual rows
// fall outside the uniqueness gate; operators may duplicate at will.
func (r *LogRepository) InsertManualAttempt(ctx context.Context, p AttemptParams, status LogStatus, errorMessage *string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notification_logs
			(rule_id, user_id, user_email, user_name, notification_type,
			 channel, status, origin, recipient, subject, message_content,
			 error_message, send_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, p.RuleID, p.UserID, p.UserEmail, p.UserName, p.NotificationType,
		string(p.Channel), string(status), string(OriginManual),
		p.Recipient, p.Subject, p.MessageContent, errorMessage, p.SendDate,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, apperr.Internal(fmt.Sprintf("insert manual attempt failed: %v", err)).WithOp(opInsertManual)
	}
	return id, nil
}

func (r *LogRepository) GetByID(ctx context.Context, id uuid.UUID) (LogEntry, error) {
	var entry LogEntry
	var kind, status, origin string
	err := r.pool.QueryRow(ctx, `
		SELECT `+logColumns+`
		FROM notification_logs
		WHERE id = $1
	`, id).Scan(
		&entry.ID, &entry.RuleID, &entry.UserID, &entry.UserEmail, &entry.UserName,
		&entry.NotificationType, &kind, &status, &origin, &entry.Recipient,
		&entry.Subject, &entry.MessageContent, &entry.ErrorMessage,
		&entry.SendDate, &entry.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LogEntry{}, ErrLogNotFound
	}
	if err != nil {
		return LogEntry{}, apperr.Internal(fmt.Sprintf("get log entry failed: %v", err)).WithOp(opGetLog)
	}
	entry.Channel, entry.Status, entry.Origin = channel.Kind(kind), LogStatus(status), LogOrigin(origin)
	return entry, nil
}

// List returns a filtered page of log entries plus the total match count.
func (r *LogRepository) List(ctx context.Context, f LogFilter) ([]LogEntry, int, error) {
	where, args := buildLogFilter(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM notification_logs` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count log entries failed: %v", err)).WithOp(opListLogs)
	}

	limit := f.Limit
	if limit < 1 {
		limit = 20
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT ` + logColumns + ` FROM notification_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list log entries failed: %v", err)).WithOp(opListLogs)
	}
	defer rows.Close()

	items := make([]LogEntry, 0, limit)
	for rows.Next() {
		var entry LogEntry
		var kind, status, origin string
		if err := rows.Scan(
			&entry.ID, &entry.RuleID, &entry.UserID, &entry.UserEmail, &entry.UserName,
			&entry.NotificationType, &kind, &status, &origin, &entry.Recipient,
			&entry.Subject, &entry.MessageContent, &entry.ErrorMessage,
			&entry.SendDate, &entry.CreatedAt,
		); err != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan log entry failed: %v", err)).WithOp(opListLogs)
		}
		entry.Channel, entry.Status, entry.Origin = channel.Kind(kind), LogStatus(status), LogOrigin(origin)
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate log entries failed: %v", err)).WithOp(opListLogs)
	}

	return items, total, nil
}

func buildLogFilter(f LogFilter) (string, []any) {
	conditions := make([]string, 0, 6)
	args := make([]any, 0, 6)

	addCondition := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		addCondition(`(user_name ILIKE $%[1]d OR user_email ILIKE $%[1]d OR message_content ILIKE $%[1]d)`, "%"+search+"%")
	}
	if f.Channel != "" {
		addCondition(`channel = $%d`, f.Channel)
	}
	if f.Status != "" {
		addCondition(`status = $%d`, f.Status)
	}
	if f.TypePrefix != "" {
		addCondition(`notification_type LIKE $%d`, f.TypePrefix+"%")
	}
	if f.From != nil {
		addCondition(`created_at >= $%d`, *f.From)
	}
	if f.To != nil {
		addCondition(`created_at <= $%d`, *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var _ DeliveryLog = (*LogRepository)(nil)
