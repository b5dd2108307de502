// internal/acl/store.go
//
// Model- and object-level permission queries.
//
// Context
// -------
// The permission model lives in the application database:
//
//	role               (id PK, name, enabled)
//	role_acl           (role_id, model, action, permitted)
//	user_role          (user_id, role_id)
//	object_permission  (user_id, model, object_id, perm)
//
// View plugins need answers to four questions:
//  1. Which role names does user X have?                   → `UserRoles()`
//  2. May any of those roles perform action A on model M?  → `RoleAllowed()`
//  3. Which `access_*` permission does the user hold on M? → `AccessPerm()`
//  4. Grant / revoke that permission on one object.        → `Assign`, `Remove`
//
// A permission string has the form `<action>_<model>`, e.g. `delete_book`
// or `access_book`.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
// • Max line length 100 columns.
package acl

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/ajaxviews/internal/auth"
)

// ErrNoPermission is returned when a user holds no access permission that
// could be granted on an object.
var ErrNoPermission = errors.New("acl: no access permission for model")

// accessPrefix marks the per-object visibility permission.
const accessPrefix = "access_"

// UserRoles returns the role names bound to userID.  Disabled roles are
// filtered out.
func UserRoles(ctx context.Context, db *sql.DB, userID int64) ([]string, error) {
	const q = `SELECT r.name
                 FROM user_role ur
                 JOIN role r ON r.id = ur.role_id
                WHERE ur.user_id = ? AND r.enabled = TRUE`

	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]string, 0, 4)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// RoleAllowed reports whether any of the candidate roles is permitted for
// model + action.  Empty roles slice returns false, nil.
func RoleAllowed(ctx context.Context, db *sql.DB, roles []string, model, action string) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	q, args, err := sqlx.In(`SELECT 1
            FROM role_acl ra
            JOIN role r ON r.id = ra.role_id
           WHERE r.name IN (?)
             AND ra.model = ?
             AND ra.action = ?
             AND ra.permitted = TRUE
           LIMIT 1`, roles, model, action)
	if err != nil {
		return false, err
	}

	var dummy int
	err = db.QueryRowContext(ctx, q, args...).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

/*──────────────────────────── Store ────────────────────────────────────────*/

// Store answers permission questions for the view plugins.  Safe for
// concurrent use; it holds nothing but the pool.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// HasModelPerm reports whether u may perform action on model through any
// of its roles.  The anonymous user never has model permissions.
func (s *Store) HasModelPerm(ctx context.Context, u *auth.User, model, action string) (bool, error) {
	if !u.IsAuthenticated() {
		return false, nil
	}
	roles, err := UserRoles(ctx, s.db.DB, u.ID)
	if err != nil {
		return false, err
	}
	return RoleAllowed(ctx, s.db.DB, roles, model, action)
}

// AccessPerm returns the first `access_*` action the user's roles grant on
// model, or "" when none.
func (s *Store) AccessPerm(ctx context.Context, u *auth.User, model string) (string, error) {
	if !u.IsAuthenticated() {
		return "", nil
	}
	const q = `SELECT ra.action
                 FROM role_acl ra
                 JOIN role r ON r.id = ra.role_id
                 JOIN user_role ur ON ur.role_id = r.id
                WHERE ur.user_id = ?
                  AND r.enabled = TRUE
                  AND ra.model = ?
                  AND ra.action LIKE 'access\_%'
                  AND ra.permitted = TRUE
                ORDER BY ra.action
                LIMIT 1`
	var action string
	err := s.db.QueryRowxContext(ctx, q, u.ID, model).Scan(&action)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return action, err
}

// hasObjectPerm reports whether the user already holds perm on the object.
func (s *Store) hasObjectPerm(ctx context.Context, u *auth.User, model string, objectID any, perm string) (bool, error) {
	const q = `SELECT COUNT(*) FROM object_permission
                WHERE user_id = ? AND model = ? AND object_id = ? AND perm = ?`
	var n int
	if err := s.db.GetContext(ctx, &n, q, u.ID, model, objectID, perm); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Assign grants the user's access permission on one object.  It reports
// whether a row was written; an existing grant is left untouched.
func (s *Store) Assign(ctx context.Context, u *auth.User, model string, objectID any) (bool, error) {
	perm, err := s.AccessPerm(ctx, u, model)
	if err != nil {
		return false, err
	}
	if perm == "" {
		return false, ErrNoPermission
	}
	has, err := s.hasObjectPerm(ctx, u, model, objectID, perm)
	if err != nil || has {
		return false, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO object_permission (user_id, model, object_id, perm) VALUES (?, ?, ?, ?)`,
		u.ID, model, objectID, perm)
	return err == nil, err
}

// Remove revokes the user's access permission on one object.  It reports
// whether a grant existed.
func (s *Store) Remove(ctx context.Context, u *auth.User, model string, objectID any) (bool, error) {
	perm, err := s.AccessPerm(ctx, u, model)
	if err != nil {
		return false, err
	}
	if perm == "" {
		return false, ErrNoPermission
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM object_permission WHERE user_id = ? AND model = ? AND object_id = ? AND perm = ?`,
		u.ID, model, objectID, perm)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ObjectScope returns a SQL predicate (and its args) restricting pkColumn
// to objects the user holds an access permission on.  The anonymous user
// gets a predicate that matches nothing.
func (s *Store) ObjectScope(u *auth.User, model, pkColumn string) (string, []any) {
	if !u.IsAuthenticated() {
		return "1 = 0", nil
	}
	var b strings.Builder
	b.WriteString(pkColumn)
	b.WriteString(` IN (SELECT object_id FROM object_permission WHERE user_id = ? AND model = ? AND perm LIKE 'access\_%')`)
	return b.String(), []any{u.ID, model}
}
