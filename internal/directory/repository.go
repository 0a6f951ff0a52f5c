// Package directory exposes member identity and contact data to the rest of
// the service. Member records are written by the admin UI; this module only
// reads them.
package directory

import (
	"context"
	"errors"
	"fmt"

	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opListMembers = "directory.repository.list_members"
	opGetMember   = "directory.repository.get_member"
)

const memberColumns = `u.id, u.full_name, u.email,
	COALESCE(u.whatsapp_phone, ''), COALESCE(u.locale, ''),
	c.name, c.payment_link_url`

// Repository reads members from the users table joined with their church.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListActiveMembers(ctx context.Context) ([]ports.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+memberColumns+`
		FROM users u
		JOIN churches c ON c.id = u.church_id
		WHERE u.is_active = true
		ORDER BY u.full_name
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list active members failed: %v", err)).WithOp(opListMembers)
	}
	defer rows.Close()

	members := make([]ports.Member, 0, 64)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan member failed: %v", err)).WithOp(opListMembers)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate members failed: %v", err)).WithOp(opListMembers)
	}
	return members, nil
}

func (r *Repository) GetMember(ctx context.Context, id uuid.UUID) (ports.Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM users u
		JOIN churches c ON c.id = u.church_id
		WHERE u.id = $1
	`, id)
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.Member{}, ports.ErrMemberNotFound
	}
	if err != nil {
		return ports.Member{}, apperr.Internal(fmt.Sprintf("get member failed: %v", err)).WithOp(opGetMember)
	}
	return m, nil
}

func scanMember(row pgx.Row) (ports.Member, error) {
	var m ports.Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Locale, &m.ChurchName, &m.PaymentLinkURL)
	return m, err
}

var _ ports.UserDirectory = (*Repository)(nil)
