// Package billing reads tithe schedules and payment history from the
// transactions table. Transactions are written by the payment flow; the
// automation engine only consumes them.
package billing

import (
	"context"
	"fmt"
	"time"

	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opSnapshots = "billing.repository.snapshots"

// Repository implements the automation engine's billing port over pgx.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Snapshots resolves each member's open tithe (earliest pending due date and
// its amount) and last completed payment in two passes over transactions.
func (r *Repository) Snapshots(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]ports.BillingSnapshot, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]ports.BillingSnapshot{}, nil
	}

	snapshots := make(map[uuid.UUID]ports.BillingSnapshot, len(userIDs))

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (user_id) user_id, due_date, amount_cents
		FROM transactions
		WHERE user_id = ANY($1) AND status = 'pending'
		ORDER BY user_id, due_date ASC
	`, userIDs)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("query open tithes failed: %v", err)).WithOp(opSnapshots)
	}
	for rows.Next() {
		var userID uuid.UUID
		var dueDate time.Time
		var amountCents int64
		if err := rows.Scan(&userID, &dueDate, &amountCents); err != nil {
			rows.Close()
			return nil, apperr.Internal(fmt.Sprintf("scan open tithe failed: %v", err)).WithOp(opSnapshots)
		}
		due := dueDate
		snapshots[userID] = ports.BillingSnapshot{NextDueDate: &due, AmountCents: amountCents}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate open tithes failed: %v", err)).WithOp(opSnapshots)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT DISTINCT ON (user_id) user_id, amount_cents, paid_at
		FROM transactions
		WHERE user_id = ANY($1) AND status = 'paid'
		ORDER BY user_id, paid_at DESC
	`, userIDs)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("query payment history failed: %v", err)).WithOp(opSnapshots)
	}
	defer rows.Close()
	for rows.Next() {
		var userID uuid.UUID
		var amountCents int64
		var paidAt time.Time
		if err := rows.Scan(&userID, &amountCents, &paidAt); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan payment failed: %v", err)).WithOp(opSnapshots)
		}
		snap := snapshots[userID]
		paid := paidAt
		snap.LastPaidAt = &paid
		if snap.NextDueDate == nil {
			snap.AmountCents = amountCents
		}
		snapshots[userID] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate payments failed: %v", err)).WithOp(opSnapshots)
	}

	return snapshots, nil
}

var _ ports.BillingLedger = (*Repository)(nil)
