package repository

import (
	"context"
	"fmt"

	"dizimo_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opListActive = "automation.repository.rules.list_active"
	opListRules  = "automation.repository.rules.list"
)

const ruleColumns = `id, name, event_trigger, days_offset, message_template,
	send_via_email, send_via_whatsapp, is_active, created_at`

// RuleRepository reads notification rules from Postgres.
type RuleRepository struct {
	pool *pgxpool.Pool
}

func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM notification_rules
		WHERE is_active = TRUE
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list active rules failed: %v", err)).WithOp(opListActive)
	}
	defer rows.Close()

	return scanRules(rows, opListActive)
}

func (r *RuleRepository) ListActiveByTrigger(ctx context.Context, trigger Trigger) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM notification_rules
		WHERE is_active = TRUE AND event_trigger = $1
		ORDER BY created_at ASC
	`, string(trigger))
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list rules by trigger failed: %v", err)).WithOp(opListActive)
	}
	defer rows.Close()

	return scanRules(rows, opListActive)
}

func (r *RuleRepository) List(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM notification_rules
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list rules failed: %v", err)).WithOp(opListRules)
	}
	defer rows.Close()

	return scanRules(rows, opListRules)
}

func scanRules(rows pgx.Rows, op string) ([]Rule, error) {
	rules := make([]Rule, 0)
	for rows.Next() {
		var rule Rule
		var trigger string
		if err := rows.Scan(
			&rule.ID, &rule.Name, &trigger, &rule.DaysOffset, &rule.MessageTemplate,
			&rule.SendViaEmail, &rule.SendViaWhatsapp, &rule.IsActive, &rule.CreatedAt,
		); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan rule failed: %v", err)).WithOp(op)
		}
		rule.EventTrigger = Trigger(trigger)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate rules failed: %v", err)).WithOp(op)
	}
	return rules, nil
}

var _ RuleStore = (*RuleRepository)(nil)
