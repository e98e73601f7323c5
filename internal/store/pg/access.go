package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizhub.io/internal/access"
	"bizhub.io/internal/permission"
)

func (s *Store) Setting(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `select value from app_settings where key = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) PutSetting(ctx context.Context, key string, value []byte, updatedBy string) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into app_settings (key, value, updated_by, updated_at)
		values ($1, $2, $3, now())
		on conflict (key) do update
		set value = excluded.value, updated_by = excluded.updated_by, updated_at = now()
	`, key, value, updatedBy)
	return err
}

const invitationColumns = `id, token, email, role, invited_by, expires_at, status,
	coalesce(notes, ''), accepted_at, coalesce(accepted_by_user_id, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (access.Invitation, error) {
	var (
		inv        access.Invitation
		role       string
		status     string
		acceptedAt sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.Token, &inv.Email, &role, &inv.InvitedBy, &inv.ExpiresAt, &status,
		&inv.Notes, &acceptedAt, &inv.AcceptedByUserID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return access.Invitation{}, err
	}
	inv.Role = permission.Role(role)
	inv.Status = access.InvitationStatus(status)
	if acceptedAt.Valid {
		at := acceptedAt.Time
		inv.AcceptedAt = &at
	}
	return inv, nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv access.Invitation) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into invitations (id, token, email, role, invited_by, expires_at, status, notes, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, inv.ID, inv.Token, inv.Email, string(inv.Role), inv.InvitedBy, inv.ExpiresAt, string(inv.Status),
		nullIfEmpty(inv.Notes), inv.CreatedAt, inv.UpdatedAt)
	return translate(err)
}

func (s *Store) InvitationByToken(ctx context.Context, token string) (access.Invitation, error) {
	if s.db == nil {
		return access.Invitation{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+invitationColumns+` from invitations where token = $1`, token)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Invitation{}, access.ErrNotFound
	}
	return inv, err
}

func (s *Store) ListInvitations(ctx context.Context, filter access.InvitationFilter, now time.Time) ([]access.Invitation, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.InvitedBy != "" {
		args = append(args, filter.InvitedBy)
		where = append(where, fmt.Sprintf("invited_by = $%d", len(args)))
	}
	if !filter.IncludeExpired {
		args = append(args, now)
		where = append(where, fmt.Sprintf("expires_at >= $%d", len(args)))
	}
	query := `select ` + invitationColumns + ` from invitations`
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	query += ` order by created_at desc, id desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []access.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) MarkInvitationExpired(ctx context.Context, token string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		update invitations set status = 'expired', updated_at = $2
		where token = $1 and status = 'pending'
	`, token, at)
	return err
}

func (s *Store) AcceptInvitation(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update invitations
		set status = 'accepted', accepted_at = $3, accepted_by_user_id = $2, updated_at = $3
		where token = $1 and status = 'pending' and expires_at >= $3
	`, token, userID, at)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

func (s *Store) RevokeInvitation(ctx context.Context, token string, at time.Time) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update invitations set status = 'revoked', updated_at = $2
		where token = $1 and status = 'pending'
	`, token, at)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

func (s *Store) ExpirePendingInvitations(ctx context.Context, before time.Time) (int, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update invitations set status = 'expired', updated_at = $1
		where status = 'pending' and expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CreateUser inserts an account row. Duplicate emails map to access.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, id, email string, role permission.Role, dept permission.Department) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, role, department)
		values ($1, $2, $3, $4)
	`, id, strings.ToLower(strings.TrimSpace(email)), string(role), string(dept))
	return translate(err)
}

func (s *Store) PermissionOverrides(ctx context.Context, userID string) ([]permission.Override, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select permission, effect from permission_overrides
		where user_id = $1
		order by permission
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Override
	for rows.Next() {
		var raw, effect string
		if err := rows.Scan(&raw, &effect); err != nil {
			return nil, err
		}
		p, err := permission.ParsePermission(raw)
		if err != nil {
			return nil, fmt.Errorf("override %q for %s: %w", raw, userID, err)
		}
		e, err := permission.ParseEffect(effect)
		if err != nil {
			return nil, fmt.Errorf("override %q for %s: %w", raw, userID, err)
		}
		out = append(out, permission.Override{Permission: p, Effect: e})
	}
	return out, rows.Err()
}

func (s *Store) PutPermissionOverride(ctx context.Context, userID string, o permission.Override, setBy string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into permission_overrides (user_id, permission, effect, set_by, updated_at)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, permission) do update
		set effect = excluded.effect, set_by = excluded.set_by, updated_at = excluded.updated_at
	`, userID, o.Permission.String(), string(o.Effect), setBy, at)
	return translate(err)
}

func (s *Store) DeletePermissionOverride(ctx context.Context, userID string, p permission.Permission) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from permission_overrides where user_id = $1 and permission = $2`, userID, p.String())
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	return nil
}
